package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

// MemoryMatchRepository keeps matches in process. It backs offline AI games and tests and
// behaves like the Redis repository, including revisions and disconnect cleanups.
type MemoryMatchRepository struct {
	clock clockwork.Clock

	mu       sync.Mutex
	docs     map[string][]byte
	subs     map[string]map[int]chan *entity.Match
	nextSub  int
	lastTime int64
	leases   map[string]int64
	hooks    map[string]map[string]Fields
}

var _ MatchRepository = (*MemoryMatchRepository)(nil)

func NewMemoryMatchRepository(clock clockwork.Clock) *MemoryMatchRepository {
	return &MemoryMatchRepository{
		clock:  clock,
		docs:   map[string][]byte{},
		subs:   map[string]map[int]chan *entity.Match{},
		leases: map[string]int64{},
		hooks:  map[string]map[string]Fields{},
	}
}

func (that *MemoryMatchRepository) Get(_ context.Context, code string) (*entity.Match, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	raw, ok := that.docs[code]
	if !ok {
		return nil, apperror.ErrMatchNotFound
	}

	return decodeMatch(raw)
}

func (that *MemoryMatchRepository) CreateOrUpdate(ctx context.Context, match *entity.Match) error {
	_, err := that.Transact(ctx, match.Code, func(_ *entity.Match, _ int64) (*entity.Match, error) {
		return match, nil
	})

	return err
}

func (that *MemoryMatchRepository) Patch(ctx context.Context, code string, fields Fields) error {
	_, err := that.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		return applyFields(current, fields, now)
	})

	return err
}

func (that *MemoryMatchRepository) Transact(_ context.Context, code string, fn TxFunc) (*entity.Match, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.transact(code, fn)
}

func (that *MemoryMatchRepository) transact(code string, fn TxFunc) (*entity.Match, error) {
	var current *entity.Match
	if raw, ok := that.docs[code]; ok {
		decoded, err := decodeMatch(raw)
		if err != nil {
			return nil, err
		}
		current = decoded
	}

	next, err := fn(current, that.now())
	if err != nil {
		return nil, err
	}

	if next == nil {
		if current != nil {
			delete(that.docs, code)
			that.notify(code, nil)
		}

		return nil, nil
	}

	next.Rev = 1
	if current != nil {
		next.Rev = current.Rev + 1
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("could not marshal match: %w", err)
	}

	that.docs[code] = raw
	that.notify(code, raw)

	return decodeMatch(raw)
}

func (that *MemoryMatchRepository) DeleteByID(_ context.Context, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.docs[code]; ok {
		delete(that.docs, code)
		that.notify(code, nil)
	}

	return nil
}

func (that *MemoryMatchRepository) List(_ context.Context) ([]*entity.Match, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	matches := make([]*entity.Match, 0, len(that.docs))
	for _, code := range slices.Sorted(maps.Keys(that.docs)) {
		match, err := decodeMatch(that.docs[code])
		if err != nil {
			return nil, err
		}
		matches = append(matches, match)
	}

	return matches, nil
}

func (that *MemoryMatchRepository) Subscribe(ctx context.Context, code string) (<-chan *entity.Match, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	updates := make(chan *entity.Match, 1)

	var initial *entity.Match
	if raw, ok := that.docs[code]; ok {
		decoded, err := decodeMatch(raw)
		if err != nil {
			return nil, err
		}
		initial = decoded
	}
	offer(updates, initial)

	id := that.nextSub
	that.nextSub++

	if that.subs[code] == nil {
		that.subs[code] = map[int]chan *entity.Match{}
	}
	that.subs[code][id] = updates

	go func() {
		<-ctx.Done()

		that.mu.Lock()
		defer that.mu.Unlock()

		delete(that.subs[code], id)
		close(updates)
	}()

	return updates, nil
}

// notify must be called with mu held. A nil raw document announces a deletion.
func (that *MemoryMatchRepository) notify(code string, raw []byte) {
	for _, updates := range that.subs[code] {
		var snapshot *entity.Match
		if raw != nil {
			// every subscriber gets its own copy
			decoded, err := decodeMatch(raw)
			if err != nil {
				continue
			}
			snapshot = decoded
		}
		offer(updates, snapshot)
	}
}

func (that *MemoryMatchRepository) ServerTime(_ context.Context) (int64, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.now(), nil
}

// now must be called with mu held. It never goes backwards.
func (that *MemoryMatchRepository) now() int64 {
	that.lastTime = max(that.lastTime, that.clock.Now().UnixMilli())

	return that.lastTime
}

func (that *MemoryMatchRepository) Heartbeat(_ context.Context, clientID string, ttl time.Duration) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.leases[clientID] = that.now() + ttl.Milliseconds()

	return nil
}

func (that *MemoryMatchRepository) OnDisconnect(_ context.Context, clientID, code string, fields Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}

	stored, err := decodeFields(raw)
	if err != nil {
		return err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	if that.hooks[clientID] == nil {
		that.hooks[clientID] = map[string]Fields{}
	}
	that.hooks[clientID][code] = stored

	return nil
}

func (that *MemoryMatchRepository) CancelOnDisconnect(_ context.Context, clientID, code string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.hooks[clientID], code)

	return nil
}

func (that *MemoryMatchRepository) ReapExpired(_ context.Context) ([]string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()

	var codes []string

	for _, clientID := range slices.Sorted(maps.Keys(that.leases)) {
		if that.leases[clientID] > now {
			continue
		}

		delete(that.leases, clientID)

		fired, err := that.fire(clientID)
		codes = append(codes, fired...)
		if err != nil {
			return codes, err
		}
	}

	return codes, nil
}

// DropConnection simulates the connection of clientID going away: its cleanups run now.
func (that *MemoryMatchRepository) DropConnection(_ context.Context, clientID string) ([]string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.leases, clientID)

	return that.fire(clientID)
}

// fire must be called with mu held.
func (that *MemoryMatchRepository) fire(clientID string) ([]string, error) {
	hooks := that.hooks[clientID]
	delete(that.hooks, clientID)

	var codes []string

	for _, code := range slices.Sorted(maps.Keys(hooks)) {
		fields := hooks[code]

		_, err := that.transact(code, disconnectTx(fields))
		if apperror.IsPrecondition(err) {
			continue
		}

		if err != nil {
			return codes, err
		}

		codes = append(codes, code)
	}

	return codes, nil
}
