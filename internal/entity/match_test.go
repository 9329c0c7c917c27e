package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
)

func playingMatch() *Match {
	m := NewMatch("arena", "alice", 1000)
	m.Players[SlotP2] = NewPlayer("bob", 1000)
	m.Status = StatusPlaying

	return m
}

func TestMatchStatusMethods(t *testing.T) {
	t.Run("New match is waiting with the creator in p1", func(t *testing.T) {
		// Given: a freshly created match
		m := NewMatch("arena", "alice", 1000)

		// When: inspecting its state
		creator := m.Player(SlotP1)

		// Then: it waits for an opponent and the creator leads the first turn
		assert.True(t, m.IsWaiting())
		assert.Nil(t, m.Player(SlotP2))
		require.NotNil(t, creator)
		assert.Equal(t, MaxPV, creator.PV)
		assert.Equal(t, SlotP1, m.Turn)
		assert.Equal(t, 1, m.TurnNumber)
	})

	t.Run("AI match starts playing with the bot in p2", func(t *testing.T) {
		// Given: an AI match on hard difficulty
		m := NewAIMatch("solo", "alice", DifficultyHard, 1000)

		// When: looking up the AI slot
		slot, ok := m.AISlot()

		// Then: the bot holds p2 and the human is the custodian
		assert.True(t, m.IsPlaying())
		assert.True(t, ok)
		assert.Equal(t, SlotP2, slot)
		assert.Equal(t, SlotP1, m.Custodian())
	})

	t.Run("Terminal statuses", func(t *testing.T) {
		// Given: finished and forfeited matches
		finished := &Match{Status: StatusFinished}
		forfeited := &Match{Status: StatusForfeited}

		// Then: both are terminal, a playing match is not
		assert.True(t, finished.IsTerminal())
		assert.True(t, forfeited.IsTerminal())
		assert.False(t, playingMatch().IsTerminal())
	})
}

func TestMatch_ConfirmPlaying(t *testing.T) {
	t.Run("Returns nil when the match is playing", func(t *testing.T) {
		assert.NoError(t, playingMatch().ConfirmPlaying())
	})

	t.Run("Returns ErrMatchNotPlaying for waiting and terminal matches", func(t *testing.T) {
		for _, status := range []Status{StatusWaiting, StatusFinished, StatusForfeited} {
			m := &Match{Status: status}

			assert.ErrorIs(t, m.ConfirmPlaying(), apperror.ErrMatchNotPlaying, status)
		}
	})

	t.Run("Returns ErrUnknownMatchStatus for garbage", func(t *testing.T) {
		m := &Match{Status: "sleeping"}

		assert.ErrorIs(t, m.ConfirmPlaying(), ErrUnknownMatchStatus)
	})
}

func TestMatch_ExpectedActor(t *testing.T) {
	t.Run("Leader acts first", func(t *testing.T) {
		// Given: a playing match where p2 leads the round
		m := playingMatch()
		m.Turn = SlotP2

		// When: asking who acts
		slot, ok := m.ExpectedActor()

		// Then: p2 is expected
		assert.True(t, ok)
		assert.Equal(t, SlotP2, slot)
	})

	t.Run("Responder acts once the leader is recorded", func(t *testing.T) {
		// Given: p1 leads and already attacked
		m := playingMatch()
		m.Players[SlotP1].Action = ActionAttack

		// When: asking who acts
		slot, ok := m.ExpectedActor()

		// Then: p2 has to respond
		assert.True(t, ok)
		assert.Equal(t, SlotP2, slot)
	})

	t.Run("Nobody acts once both actions are in", func(t *testing.T) {
		// Given: both actions recorded
		m := playingMatch()
		m.Players[SlotP1].Action = ActionAttack
		m.Players[SlotP2].Action = ActionHeal

		// When: asking who acts
		_, ok := m.ExpectedActor()

		// Then: the turn is waiting for resolution
		assert.False(t, ok)
		assert.True(t, m.BothActed())
	})

	t.Run("Nobody acts while waiting", func(t *testing.T) {
		_, ok := NewMatch("arena", "alice", 1).ExpectedActor()

		assert.False(t, ok)
	})
}

func TestMatch_Custodian(t *testing.T) {
	t.Run("Creator deletes a finished match", func(t *testing.T) {
		m := playingMatch()
		m.Status = StatusFinished
		m.Winner = SlotP2

		assert.Equal(t, SlotP1, m.Custodian())
	})

	t.Run("Winner deletes a forfeited match", func(t *testing.T) {
		m := playingMatch()
		m.Status = StatusForfeited
		m.Winner = SlotP2

		assert.Equal(t, SlotP2, m.Custodian())
	})
}

func TestParsers(t *testing.T) {
	t.Run("ParseAction accepts the three actions only", func(t *testing.T) {
		action, err := ParseAction("heal")
		require.NoError(t, err)
		assert.Equal(t, ActionHeal, action)

		_, err = ParseAction("dance")
		require.ErrorIs(t, err, apperror.ErrInvalidAction)

		_, err = ParseAction("")
		require.ErrorIs(t, err, apperror.ErrInvalidAction)
	})

	t.Run("ParseDifficulty defaults to normal", func(t *testing.T) {
		d, err := ParseDifficulty("")
		require.NoError(t, err)
		assert.Equal(t, DifficultyNormal, d)

		_, err = ParseDifficulty("nightmare")
		require.ErrorIs(t, err, ErrUnknownDifficulty)
	})

	t.Run("ValidateCode", func(t *testing.T) {
		require.NoError(t, ValidateCode("room_42-b"))
		require.ErrorIs(t, ValidateCode(""), apperror.ErrInvalidCode)
		require.ErrorIs(t, ValidateCode("has space"), apperror.ErrInvalidCode)
		require.ErrorIs(t, ValidateCode("a/b"), apperror.ErrInvalidCode)
	})

	t.Run("Slot opponent", func(t *testing.T) {
		assert.Equal(t, SlotP2, SlotP1.Opponent())
		assert.Equal(t, SlotP1, SlotP2.Opponent())
		assert.Equal(t, Slot(""), Draw.Opponent())
	})
}
