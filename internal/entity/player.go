package entity

import (
	"fmt"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
)

const MaxPV = 100

type Slot string

const (
	SlotP1 Slot = "p1"
	SlotP2 Slot = "p2"

	// Draw is recorded as the winner when both players fall in the same turn.
	Draw Slot = "draw"
)

var Slots = [2]Slot{SlotP1, SlotP2}

func (that Slot) Valid() bool {
	return that == SlotP1 || that == SlotP2
}

func (that Slot) Opponent() Slot {
	switch that {
	case SlotP1:
		return SlotP2
	case SlotP2:
		return SlotP1
	default:
		return ""
	}
}

// Action is what a player does in a turn. The zero value ActionNone means nothing was submitted yet.
type Action string

const (
	ActionNone   Action = ""
	ActionAttack Action = "attack"
	ActionDefend Action = "defend"
	ActionHeal   Action = "heal"
)

func ParseAction(s string) (Action, error) {
	action := Action(s)
	if !action.Valid() {
		return ActionNone, fmt.Errorf("%w: %q", apperror.ErrInvalidAction, s)
	}

	return action, nil
}

func (that Action) IsSet() bool {
	return that != ActionNone
}

func (that Action) Valid() bool {
	switch that {
	case ActionAttack, ActionDefend, ActionHeal:
		return true
	default:
		return false
	}
}

type PlayerStatus string

const (
	PlayerConnected PlayerStatus = "connected"
	PlayerForfeited PlayerStatus = "forfeited"
)

type Player struct {
	Pseudo       string       `json:"pseudo"`
	PV           int          `json:"pv"`
	Action       Action       `json:"action,omitempty"`
	ActedAt      int64        `json:"actedAt,omitempty"`
	LastAction   Action       `json:"lastAction,omitempty"`
	Status       PlayerStatus `json:"status"`
	LastSeen     int64        `json:"lastSeen,omitempty"`
	HealCooldown int          `json:"healCooldown,omitempty"`
	AI           bool         `json:"ai,omitempty"`
}

func NewPlayer(pseudo string, now int64) *Player {
	return &Player{
		Pseudo:   pseudo,
		PV:       MaxPV,
		Status:   PlayerConnected,
		LastSeen: now,
	}
}

func (that *Player) HasActed() bool {
	return that.Action.IsSet()
}

func (that *Player) IsForfeited() bool {
	return that.Status == PlayerForfeited
}
