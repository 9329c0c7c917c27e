package janitor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/internal/repository"
	"github.com/rocketscienceinc/duel-backend/internal/usecase"
)

type fixture struct {
	ctx     context.Context
	clock   *clockwork.FakeClock
	repo    *repository.MemoryMatchRepository
	manager *usecase.MatchManager
	janitor *Janitor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClock()
	repo := repository.NewMemoryMatchRepository(clock)
	manager := usecase.NewMatchManager(logger, repo, nil)

	return &fixture{
		ctx:     context.Background(),
		clock:   clock,
		repo:    repo,
		manager: manager,
		janitor: New(logger, repo, manager, clock, Config{
			Interval:      2 * time.Second,
			SweepEvery:    30 * time.Second,
			StaleAfter:    10 * time.Minute,
			WaitingExpiry: time.Minute,
		}),
	}
}

func (that *fixture) start(t *testing.T, code string) {
	t.Helper()

	_, err := that.manager.Create(that.ctx, code, "alice")
	require.NoError(t, err)
	_, err = that.manager.Join(that.ctx, code, "bob")
	require.NoError(t, err)
}

func TestJanitor_Reap(t *testing.T) {
	t.Run("Expired lease forfeits the silent player", func(t *testing.T) {
		// Given: p2 registered its cleanup and stopped sending heartbeats
		f := newFixture(t)
		f.start(t, "arena")
		require.NoError(t, f.repo.Heartbeat(f.ctx, "client-2", 15*time.Second))
		require.NoError(t, f.repo.OnDisconnect(f.ctx, "client-2", "arena", repository.DisconnectFields(entity.SlotP2)))

		// When: reaping before and after the lease ran out
		require.NoError(t, f.janitor.Reap(f.ctx))
		before, err := f.manager.Get(f.ctx, "arena")
		require.NoError(t, err)

		f.clock.Advance(16 * time.Second)
		require.NoError(t, f.janitor.Reap(f.ctx))

		// Then: only the second pass ends the match, in favour of p1
		assert.Equal(t, entity.StatusPlaying, before.Status)
		after, err := f.manager.Get(f.ctx, "arena")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusForfeited, after.Status)
		assert.Equal(t, entity.SlotP1, after.Winner)
	})

	t.Run("Cleanup of a deleted match does nothing", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.repo.Heartbeat(f.ctx, "client-1", time.Second))
		require.NoError(t, f.repo.OnDisconnect(f.ctx, "client-1", "gone", repository.DisconnectFields(entity.SlotP1)))
		f.clock.Advance(2 * time.Second)

		require.NoError(t, f.janitor.Reap(f.ctx))

		_, err := f.manager.Get(f.ctx, "gone")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})
}

func TestJanitor_Sweep(t *testing.T) {
	t.Run("Closes abandoned matches and keeps the live ones", func(t *testing.T) {
		// Given: an old waiting match, a finished match and a running one
		f := newFixture(t)
		_, err := f.manager.Create(f.ctx, "lonely", "alice")
		require.NoError(t, err)
		f.start(t, "finished")
		_, err = f.manager.Leave(f.ctx, "finished", entity.SlotP2)
		require.NoError(t, err)
		f.start(t, "running")

		// When: sweeping past the stale window
		f.clock.Advance(11 * time.Minute)
		_, err = f.manager.Create(f.ctx, "fresh", "carol")
		require.NoError(t, err)
		require.NoError(t, f.janitor.Sweep(f.ctx))

		// Then: only the running and the fresh waiting match remain
		matches, err := f.repo.List(f.ctx)
		require.NoError(t, err)
		codes := make([]string, 0, len(matches))
		for _, match := range matches {
			codes = append(codes, match.Code)
		}
		assert.Equal(t, []string{"fresh", "running"}, codes)
	})

	t.Run("Concludes a forfeit nobody observed", func(t *testing.T) {
		f := newFixture(t)
		f.start(t, "arena")
		require.NoError(t, f.repo.Patch(f.ctx, "arena", repository.DisconnectFields(entity.SlotP1)))

		require.NoError(t, f.janitor.Sweep(f.ctx))

		match, err := f.manager.Get(f.ctx, "arena")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusForfeited, match.Status)
		assert.Equal(t, entity.SlotP2, match.Winner)
	})
}

func TestJanitor_Run(t *testing.T) {
	t.Run("Stops with its context", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(f.ctx)
		done := make(chan error, 1)

		go func() { done <- f.janitor.Run(ctx) }()
		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "janitor did not stop")
		}
	})
}
