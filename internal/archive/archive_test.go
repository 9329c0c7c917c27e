package archive_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/duel-backend/internal/archive"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/testing/suite"
)

func finishedMatch(code string, endedAt int64) *entity.Match {
	m := entity.NewMatch(code, "alice", 1_000)
	m.Players[entity.SlotP2] = entity.NewPlayer("bob", 1_000)
	m.Status = entity.StatusFinished
	m.Players[entity.SlotP1].PV = 20
	m.Players[entity.SlotP2].PV = 0
	m.Winner = entity.SlotP1
	m.Loser = entity.SlotP2
	m.TurnNumber = 11
	m.EndedAt = endedAt
	m.AppendHistory("--- Turn 10 ---", "alice wins")

	return m
}

func TestFromMatch(t *testing.T) {
	t.Run("Keeps the outcome and both players", func(t *testing.T) {
		result := archive.FromMatch(finishedMatch("arena", 61_000))

		assert.NotEmpty(t, result.ID)
		assert.Equal(t, "arena", result.Code)
		assert.Equal(t, "p1", result.Winner)
		assert.Equal(t, "alice", result.P1Pseudo)
		assert.Equal(t, 0, result.P2PV)
		assert.Equal(t, 10, result.Turns)
		assert.Equal(t, time.Minute, result.EndedAt.Sub(result.StartedAt))
		assert.Equal(t, "alice opened the duel\n--- Turn 10 ---\nalice wins", result.History)
	})

	t.Run("Waiting match without p2", func(t *testing.T) {
		result := archive.FromMatch(entity.NewMatch("arena", "alice", 1_000))

		assert.Empty(t, result.P2Pseudo)
		assert.Equal(t, 0, result.Turns)
	})
}

func TestRecorder(t *testing.T) {
	ctx, db := suite.NewPostgres(t)

	recorder, err := archive.NewRecorder(db)
	require.NoError(t, err)

	t.Run("Lists recorded results newest first", func(t *testing.T) {
		// Given: two results for the same code
		require.NoError(t, recorder.Record(ctx, finishedMatch("arena", 60_000)))
		require.NoError(t, recorder.Record(ctx, finishedMatch("arena", 120_000)))
		require.NoError(t, recorder.Record(ctx, finishedMatch("other", 90_000)))

		// When: listing them
		results, err := recorder.ListByCode(ctx, "arena")

		// Then: both are returned, latest first
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.True(t, results[0].EndedAt.After(results[1].EndedAt))
		assert.Equal(t, "p1", results[0].Winner)
	})

	t.Run("Unknown code has no results", func(t *testing.T) {
		results, err := recorder.ListByCode(ctx, "ghost")

		require.NoError(t, err)
		assert.Empty(t, results)
	})
}
