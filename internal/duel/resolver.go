package duel

import (
	"fmt"

	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

const (
	AttackDamage   = 10
	DefendedDamage = 5
	HealAmount     = 15

	// HealCooldownTurns is bookkeeping read by the AI; the resolver does not enforce it.
	HealCooldownTurns = 3
)

// Outcome is the result of resolving one complete turn.
type Outcome struct {
	PV       map[entity.Slot]int
	Log      []string
	NextTurn entity.Slot
	Status   entity.Status
	Winner   entity.Slot
	Loser    entity.Slot
}

func (that Outcome) IsTerminal() bool {
	return that.Status == entity.StatusFinished
}

// Resolve applies both submitted actions to the current health values. It returns false
// when the match is not playing or one of the actions is still missing.
func Resolve(m *entity.Match) (Outcome, bool) {
	if !m.IsPlaying() || !m.BothActed() {
		return Outcome{}, false
	}

	pv := map[entity.Slot]int{
		entity.SlotP1: m.Player(entity.SlotP1).PV,
		entity.SlotP2: m.Player(entity.SlotP2).PV,
	}

	logLines := []string{fmt.Sprintf("--- Turn %d ---", m.TurnNumber)}

	// both deltas read the pre-resolution snapshot
	for _, slot := range entity.Slots {
		self := m.Player(slot)
		target := m.Player(slot.Opponent())

		switch self.Action {
		case entity.ActionAttack:
			damage := AttackDamage
			if target.Action == entity.ActionDefend {
				damage = DefendedDamage
				logLines = append(logLines, fmt.Sprintf("%s attacks, %s blocks half: %d damage", self.Pseudo, target.Pseudo, damage))
			} else {
				logLines = append(logLines, fmt.Sprintf("%s attacks %s: %d damage", self.Pseudo, target.Pseudo, damage))
			}
			pv[slot.Opponent()] -= damage
		case entity.ActionDefend:
			logLines = append(logLines, fmt.Sprintf("%s raises a guard", self.Pseudo))
		case entity.ActionHeal:
			pv[slot] += HealAmount
			logLines = append(logLines, fmt.Sprintf("%s heals for %d", self.Pseudo, HealAmount))
		}
	}

	for slot, value := range pv {
		pv[slot] = clamp(value)
	}

	outcome := Outcome{
		PV:     pv,
		Status: entity.StatusPlaying,
	}

	p1Down, p2Down := pv[entity.SlotP1] <= 0, pv[entity.SlotP2] <= 0

	switch {
	case p1Down && p2Down:
		outcome.Status = entity.StatusFinished
		outcome.Winner = entity.Draw
		logLines = append(logLines, "Both duelists fall. It's a draw!")
	case p1Down || p2Down:
		loser := entity.SlotP1
		if p2Down {
			loser = entity.SlotP2
		}
		outcome.Status = entity.StatusFinished
		outcome.Winner = loser.Opponent()
		outcome.Loser = loser
		logLines = append(logLines, fmt.Sprintf("%s wins the duel!", m.Player(outcome.Winner).Pseudo))
	default:
		outcome.NextTurn = m.Turn.Opponent()
		logLines = append(logLines, fmt.Sprintf("%s leads turn %d", m.Player(outcome.NextTurn).Pseudo, m.TurnNumber+1))
	}

	outcome.Log = logLines

	return outcome, true
}

// Apply writes the outcome into the match: health, status, history, and clears both
// actions so the next turn starts empty.
func Apply(m *entity.Match, outcome Outcome, now int64) {
	for _, slot := range entity.Slots {
		p := m.Player(slot)
		p.PV = outcome.PV[slot]
		p.LastAction = p.Action

		switch {
		case p.Action == entity.ActionHeal:
			p.HealCooldown = HealCooldownTurns
		case p.HealCooldown > 0:
			p.HealCooldown--
		}

		p.Action = entity.ActionNone
		p.ActedAt = 0
	}

	m.AppendHistory(outcome.Log...)
	m.TurnNumber++
	m.LastTurnProcessedAt = now
	m.Status = outcome.Status

	if outcome.IsTerminal() {
		m.Winner = outcome.Winner
		m.Loser = outcome.Loser
		m.EndedAt = now

		return
	}

	m.Turn = outcome.NextTurn
}

func clamp(pv int) int {
	return max(0, min(entity.MaxPV, pv))
}
