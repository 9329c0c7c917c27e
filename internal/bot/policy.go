package bot

import (
	"math/rand"

	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

const (
	lowHealth = 35
	lethal    = 10
)

// Input is everything a policy may look at. Policies keep no state between calls.
type Input struct {
	OwnPV              int
	OpponentPV         int
	OpponentLastAction entity.Action
	Difficulty         entity.Difficulty
	HealCooldown       int
}

// Policy picks the AI's action for a turn.
type Policy func(rng *rand.Rand, in Input) entity.Action

type weights struct {
	attack int
	defend int
	heal   int
}

// Decide is the default policy: a weighted random choice whose weights depend on the
// difficulty tier and the state of the duel.
func Decide(rng *rand.Rand, in Input) entity.Action {
	var w weights

	switch in.Difficulty {
	case entity.DifficultyEasy:
		w = easy(in)
	case entity.DifficultyHard:
		if in.OpponentPV <= lethal {
			return entity.ActionAttack
		}
		w = hard(in)
	default:
		w = normal(in)
	}

	if !canHeal(in) {
		w.heal = 0
	}

	return pick(rng, w)
}

func easy(_ Input) weights {
	return weights{attack: 50, defend: 30, heal: 20}
}

func normal(in Input) weights {
	w := weights{attack: 60, defend: 20, heal: 20}

	if in.OwnPV <= lowHealth {
		w = weights{attack: 30, defend: 20, heal: 50}
	}

	if in.OpponentLastAction == entity.ActionAttack {
		w.defend += 20
	}

	return w
}

func hard(in Input) weights {
	switch {
	case in.OwnPV <= lethal && in.OpponentLastAction == entity.ActionAttack:
		return weights{attack: 10, defend: 50, heal: 40}
	case in.OwnPV <= lowHealth:
		return weights{attack: 15, defend: 25, heal: 60}
	case in.OpponentLastAction == entity.ActionDefend:
		// a guarded opponent only takes half, build health instead
		return weights{attack: 45, defend: 15, heal: 40}
	case in.OwnPV > in.OpponentPV:
		return weights{attack: 75, defend: 20, heal: 5}
	default:
		return weights{attack: 65, defend: 25, heal: 10}
	}
}

func canHeal(in Input) bool {
	return in.HealCooldown <= 0 && in.OwnPV < entity.MaxPV
}

func pick(rng *rand.Rand, w weights) entity.Action {
	total := w.attack + w.defend + w.heal
	if total <= 0 {
		return entity.ActionDefend
	}

	roll := rng.Intn(total)

	switch {
	case roll < w.attack:
		return entity.ActionAttack
	case roll < w.attack+w.defend:
		return entity.ActionDefend
	default:
		return entity.ActionHeal
	}
}

// NewRand returns a seeded source for Decide.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint: gosec // game randomness, not crypto
}

// InputFor builds the policy input for the given slot of a match.
func InputFor(m *entity.Match, slot entity.Slot) Input {
	self, opponent := m.Player(slot), m.Player(slot.Opponent())

	in := Input{Difficulty: m.Difficulty}
	if self != nil {
		in.OwnPV = self.PV
		in.HealCooldown = self.HealCooldown
	}
	if opponent != nil {
		in.OpponentPV = opponent.PV
		// only the resolved action, never the one pending this turn
		in.OpponentLastAction = opponent.LastAction
	}

	return in
}
