package entity

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusForfeited Status = "forfeited"
)

type Mode string

const (
	ModePvP Mode = "pvp"
	ModeAI  Mode = "ai"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

var (
	ErrUnknownMatchStatus = errors.New("unknown match status")
	ErrUnknownDifficulty  = errors.New("unknown difficulty")

	codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return d, nil
	case "":
		return DifficultyNormal, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
}

func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: %q", apperror.ErrInvalidCode, code)
	}

	return nil
}

type Match struct {
	Code                string           `json:"code"`
	Players             map[Slot]*Player `json:"players"`
	Turn                Slot             `json:"turn"`
	Status              Status           `json:"status"`
	History             []string         `json:"history"`
	Winner              Slot             `json:"winner,omitempty"`
	Loser               Slot             `json:"loser,omitempty"`
	CreatedAt           int64            `json:"createdAt"`
	LastTurnProcessedAt int64            `json:"lastTurnProcessedAt"`
	EndedAt             int64            `json:"endedAt,omitempty"`
	TurnNumber          int              `json:"turnNumber"`
	Rev                 int64            `json:"rev"`
	Difficulty          Difficulty       `json:"difficulty,omitempty"`
	Mode                Mode             `json:"mode"`
}

// NewMatch opens a player-vs-player match waiting for its second player.
func NewMatch(code, pseudo string, now int64) *Match {
	return &Match{
		Code:                code,
		Players:             map[Slot]*Player{SlotP1: NewPlayer(pseudo, now)},
		Turn:                SlotP1,
		Status:              StatusWaiting,
		History:             []string{pseudo + " opened the duel"},
		CreatedAt:           now,
		LastTurnProcessedAt: now,
		TurnNumber:          1,
		Mode:                ModePvP,
	}
}

// NewAIMatch starts a match against the AI right away; the human always holds p1.
func NewAIMatch(code, pseudo string, difficulty Difficulty, now int64) *Match {
	bot := NewPlayer(botPseudo(difficulty), now)
	bot.AI = true

	return &Match{
		Code:                code,
		Players:             map[Slot]*Player{SlotP1: NewPlayer(pseudo, now), SlotP2: bot},
		Turn:                SlotP1,
		Status:              StatusPlaying,
		History:             []string{fmt.Sprintf("%s challenged the %s AI", pseudo, difficulty)},
		CreatedAt:           now,
		LastTurnProcessedAt: now,
		TurnNumber:          1,
		Difficulty:          difficulty,
		Mode:                ModeAI,
	}
}

func botPseudo(difficulty Difficulty) string {
	switch difficulty {
	case DifficultyEasy:
		return "Rookie Bot"
	case DifficultyHard:
		return "Champion Bot"
	default:
		return "Duelist Bot"
	}
}

func (that *Match) Player(slot Slot) *Player {
	if that.Players == nil {
		return nil
	}

	return that.Players[slot]
}

func (that *Match) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Match) IsPlaying() bool {
	return that.Status == StatusPlaying
}

func (that *Match) IsTerminal() bool {
	return that.Status == StatusFinished || that.Status == StatusForfeited
}

func (that *Match) IsAI() bool {
	return that.Mode == ModeAI
}

func (that *Match) ConfirmPlaying() error {
	switch that.Status {
	case StatusPlaying:
		return nil
	case StatusWaiting, StatusFinished, StatusForfeited:
		return fmt.Errorf("%w: status %s", apperror.ErrMatchNotPlaying, that.Status)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMatchStatus, that.Status)
	}
}

// BothActed reports whether the current turn is complete and ready for resolution.
func (that *Match) BothActed() bool {
	p1, p2 := that.Player(SlotP1), that.Player(SlotP2)

	return p1 != nil && p2 != nil && p1.HasActed() && p2.HasActed()
}

// ExpectedActor returns the slot that has to submit next. The turn slot leads the round,
// the other slot responds once the leader's action is recorded.
func (that *Match) ExpectedActor() (Slot, bool) {
	if !that.IsPlaying() || that.BothActed() {
		return "", false
	}

	leader := that.Player(that.Turn)
	if leader == nil {
		return "", false
	}

	if !leader.HasActed() {
		return that.Turn, true
	}

	if that.Player(that.Turn.Opponent()) == nil {
		return "", false
	}

	return that.Turn.Opponent(), true
}

// AISlot returns the slot driven by the AI pseudo-client, if any.
func (that *Match) AISlot() (Slot, bool) {
	for _, slot := range Slots {
		if p := that.Player(slot); p != nil && p.AI {
			return slot, true
		}
	}

	return "", false
}

// Custodian is the slot responsible for deleting the match once it is over.
func (that *Match) Custodian() Slot {
	if aiSlot, ok := that.AISlot(); ok {
		return aiSlot.Opponent()
	}

	if that.Status == StatusForfeited && that.Winner.Valid() {
		return that.Winner
	}

	return SlotP1
}

// ForfeitedSlot returns the first slot whose player is marked forfeited.
func (that *Match) ForfeitedSlot() (Slot, bool) {
	for _, slot := range Slots {
		if p := that.Player(slot); p != nil && p.IsForfeited() {
			return slot, true
		}
	}

	return "", false
}

func (that *Match) AppendHistory(lines ...string) {
	that.History = append(that.History, lines...)
}
