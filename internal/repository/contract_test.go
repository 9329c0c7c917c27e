package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

// runRepositoryContract checks the behaviour every MatchRepository has to share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) (context.Context, MatchRepository)) {
	t.Helper()

	t.Run("CreateOrUpdate then Get", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: a waiting match
		match := entity.NewMatch("arena", "alice", 1000)

		// When: it is stored and read back
		require.NoError(t, repo.CreateOrUpdate(ctx, match))
		stored, err := repo.Get(ctx, "arena")

		// Then: the stored copy has the first revision
		require.NoError(t, err)
		assert.Equal(t, "arena", stored.Code)
		assert.Equal(t, entity.StatusWaiting, stored.Status)
		assert.Equal(t, int64(1), stored.Rev)
		assert.Equal(t, "alice", stored.Player(entity.SlotP1).Pseudo)
	})

	t.Run("Get on a missing match", func(t *testing.T) {
		ctx, repo := newRepo(t)

		_, err := repo.Get(ctx, "nothing")

		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Transact bumps the revision and aborts on error", func(t *testing.T) {
		ctx, repo := newRepo(t)
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("arena", "alice", 1000)))

		// When: a transaction changes the match
		updated, err := repo.Transact(ctx, "arena", func(current *entity.Match, _ int64) (*entity.Match, error) {
			current.AppendHistory("touched")
			return current, nil
		})

		// Then: the revision moves forward
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated.Rev)

		// When: a transaction aborts
		_, err = repo.Transact(ctx, "arena", func(_ *entity.Match, _ int64) (*entity.Match, error) {
			return nil, apperror.ErrMatchFull
		})

		// Then: the error comes back untouched and nothing was written
		require.ErrorIs(t, err, apperror.ErrMatchFull)
		stored, err := repo.Get(ctx, "arena")
		require.NoError(t, err)
		assert.Equal(t, int64(2), stored.Rev)
	})

	t.Run("Transact returning nil deletes", func(t *testing.T) {
		ctx, repo := newRepo(t)
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("arena", "alice", 1000)))

		deleted, err := repo.Transact(ctx, "arena", func(_ *entity.Match, _ int64) (*entity.Match, error) {
			return nil, nil
		})

		require.NoError(t, err)
		assert.Nil(t, deleted)
		_, err = repo.Get(ctx, "arena")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Concurrent transactions never lose an update", func(t *testing.T) {
		ctx, repo := newRepo(t)
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("arena", "alice", 1000)))

		// When: ten writers append concurrently
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repo.Transact(ctx, "arena", func(current *entity.Match, _ int64) (*entity.Match, error) {
					current.AppendHistory("line")
					return current, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		// Then: every append is present
		stored, err := repo.Get(ctx, "arena")
		require.NoError(t, err)
		assert.Len(t, stored.History, 11)
		assert.Equal(t, int64(11), stored.Rev)
	})

	t.Run("Patch merges dotted fields and resolves server timestamps", func(t *testing.T) {
		ctx, repo := newRepo(t)
		match := entity.NewMatch("arena", "alice", 1000)
		match.Players[entity.SlotP1].Action = entity.ActionHeal
		require.NoError(t, repo.CreateOrUpdate(ctx, match))

		// When: patching health, removing the action and stamping lastSeen
		err := repo.Patch(ctx, "arena", Fields{
			"players.p1.pv":       42,
			"players.p1.action":   nil,
			"players.p1.lastSeen": ServerTimestamp,
		})

		// Then: only those fields changed
		require.NoError(t, err)
		stored, err := repo.Get(ctx, "arena")
		require.NoError(t, err)
		p1 := stored.Player(entity.SlotP1)
		assert.Equal(t, 42, p1.PV)
		assert.False(t, p1.HasActed())
		assert.Positive(t, p1.LastSeen)
		assert.Equal(t, "alice", p1.Pseudo)
	})

	t.Run("Patch never resurrects a deleted match", func(t *testing.T) {
		ctx, repo := newRepo(t)

		err := repo.Patch(ctx, "gone", Fields{"status": "playing"})

		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
		_, err = repo.Get(ctx, "gone")
		require.ErrorIs(t, err, apperror.ErrMatchNotFound)
	})

	t.Run("Subscribe delivers the current value then changes then deletion", func(t *testing.T) {
		ctx, repo := newRepo(t)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("arena", "alice", 1000)))

		// Given: a subscription
		updates, err := repo.Subscribe(subCtx, "arena")
		require.NoError(t, err)

		// Then: the current value arrives first
		first := receive(t, updates)
		require.NotNil(t, first)
		assert.Equal(t, int64(1), first.Rev)

		// When: the match changes
		_, err = repo.Transact(ctx, "arena", func(current *entity.Match, _ int64) (*entity.Match, error) {
			current.Status = entity.StatusPlaying
			return current, nil
		})
		require.NoError(t, err)

		// Then: the change arrives
		second := receive(t, updates)
		require.NotNil(t, second)
		assert.Equal(t, entity.StatusPlaying, second.Status)

		// When: the match is deleted
		require.NoError(t, repo.DeleteByID(ctx, "arena"))

		// Then: a nil snapshot arrives
		assert.Nil(t, receive(t, updates))

		// When: the subscription is cancelled
		cancel()

		// Then: the channel closes
		assert.Eventually(t, func() bool {
			select {
			case _, ok := <-updates:
				return !ok
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("Subscribe on a missing match starts with nil", func(t *testing.T) {
		ctx, repo := newRepo(t)
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		updates, err := repo.Subscribe(subCtx, "later")
		require.NoError(t, err)

		assert.Nil(t, receive(t, updates))
	})

	t.Run("List returns every match", func(t *testing.T) {
		ctx, repo := newRepo(t)
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("one", "alice", 1000)))
		require.NoError(t, repo.CreateOrUpdate(ctx, entity.NewMatch("two", "bob", 1000)))

		matches, err := repo.List(ctx)

		require.NoError(t, err)
		codes := []string{}
		for _, m := range matches {
			codes = append(codes, m.Code)
		}
		assert.ElementsMatch(t, []string{"one", "two"}, codes)
	})

	t.Run("Cancelled disconnect cleanup never fires", func(t *testing.T) {
		ctx, repo := newRepo(t)
		require.NoError(t, repo.CreateOrUpdate(ctx, playing("arena")))
		require.NoError(t, repo.Heartbeat(ctx, "client-1", 0))
		require.NoError(t, repo.OnDisconnect(ctx, "client-1", "arena", DisconnectFields(entity.SlotP1)))

		// When: the cleanup is cancelled before the lease is reaped
		require.NoError(t, repo.CancelOnDisconnect(ctx, "client-1", "arena"))
		codes, err := repo.ReapExpired(ctx)

		// Then: the match is untouched
		require.NoError(t, err)
		assert.Empty(t, codes)
		stored, err := repo.Get(ctx, "arena")
		require.NoError(t, err)
		assert.Equal(t, entity.MaxPV, stored.Player(entity.SlotP1).PV)
	})

	t.Run("Disconnect cleanup leaves a finished match alone", func(t *testing.T) {
		ctx, repo := newRepo(t)

		// Given: p1 won and still has its cleanup registered
		finished := playing("arena")
		finished.Status = entity.StatusFinished
		finished.Winner = entity.SlotP1
		finished.Loser = entity.SlotP2
		finished.Players[entity.SlotP2].PV = 0
		require.NoError(t, repo.CreateOrUpdate(ctx, finished))
		require.NoError(t, repo.Heartbeat(ctx, "client-1", 0))
		require.NoError(t, repo.OnDisconnect(ctx, "client-1", "arena", DisconnectFields(entity.SlotP1)))

		// When: its lease is reaped
		codes, err := repo.ReapExpired(ctx)

		// Then: the final state is kept
		require.NoError(t, err)
		assert.Empty(t, codes)
		stored, err := repo.Get(ctx, "arena")
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Rev)
		assert.Equal(t, entity.MaxPV, stored.Player(entity.SlotP1).PV)
		assert.Equal(t, entity.PlayerConnected, stored.Player(entity.SlotP1).Status)
		assert.Equal(t, entity.SlotP1, stored.Winner)
	})
}

func playing(code string) *entity.Match {
	m := entity.NewMatch(code, "alice", 1000)
	m.Players[entity.SlotP2] = entity.NewPlayer("bob", 1000)
	m.Status = entity.StatusPlaying

	return m
}

func receive(t *testing.T, updates <-chan *entity.Match) *entity.Match {
	t.Helper()

	select {
	case m, ok := <-updates:
		require.True(t, ok, "subscription closed")
		return m
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no snapshot received")
		return nil
	}
}
