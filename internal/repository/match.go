package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

const (
	matchKeyPrefix = "match:"
	presenceKey    = "presence"
	hooksKeyPrefix = "ondisconnect:"

	maxTxAttempts = 16
)

var ErrTxConflict = errors.New("transaction kept conflicting, giving up")

// TxFunc computes the next version of a match from the current one. current is nil when
// the match does not exist; returning a nil match deletes it; returning an error aborts
// the transaction without writing anything.
type TxFunc func(current *entity.Match, now int64) (*entity.Match, error)

type MatchRepository interface {
	Get(ctx context.Context, code string) (*entity.Match, error)
	CreateOrUpdate(ctx context.Context, match *entity.Match) error
	Patch(ctx context.Context, code string, fields Fields) error
	Transact(ctx context.Context, code string, fn TxFunc) (*entity.Match, error)
	DeleteByID(ctx context.Context, code string) error
	List(ctx context.Context) ([]*entity.Match, error)

	// Subscribe streams the latest snapshot of a match, starting with the current one.
	// A nil value means the match does not exist. The channel closes with ctx.
	Subscribe(ctx context.Context, code string) (<-chan *entity.Match, error)

	PresenceRepository

	ServerTime(ctx context.Context) (int64, error)
}

// PresenceRepository emulates connection-bound cleanup: a client keeps a lease alive with
// heartbeats, and once the lease lapses its registered patches are applied by a reaper.
type PresenceRepository interface {
	Heartbeat(ctx context.Context, clientID string, ttl time.Duration) error
	OnDisconnect(ctx context.Context, clientID, code string, fields Fields) error
	CancelOnDisconnect(ctx context.Context, clientID, code string) error
	// ReapExpired fires the cleanups of every lapsed client exactly once and returns the
	// codes of the matches it patched.
	ReapExpired(ctx context.Context) ([]string, error)
}

type dbMatch struct {
	client *redis.Client
}

func NewMatchRepository(client *redis.Client) MatchRepository {
	return &dbMatch{
		client: client,
	}
}

func matchKey(code string) string {
	return matchKeyPrefix + code
}

func changesChannel(code string) string {
	return matchKeyPrefix + code + ":changes"
}

func hooksKey(clientID string) string {
	return hooksKeyPrefix + clientID
}

func (that *dbMatch) Get(ctx context.Context, code string) (*entity.Match, error) {
	response, err := that.client.Get(ctx, matchKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrMatchNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return decodeMatch(response)
}

func (that *dbMatch) CreateOrUpdate(ctx context.Context, match *entity.Match) error {
	_, err := that.Transact(ctx, match.Code, func(_ *entity.Match, _ int64) (*entity.Match, error) {
		return match, nil
	})

	return err
}

func (that *dbMatch) Patch(ctx context.Context, code string, fields Fields) error {
	_, err := that.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		return applyFields(current, fields, now)
	})

	return err
}

func (that *dbMatch) Transact(ctx context.Context, code string, fn TxFunc) (*entity.Match, error) {
	key := matchKey(code)

	var result *entity.Match

	txf := func(tx *redis.Tx) error {
		current, err := that.read(ctx, tx, key)
		if err != nil {
			return err
		}

		now, err := serverTime(ctx, tx)
		if err != nil {
			return err
		}

		next, err := fn(current, now)
		if err != nil {
			return err
		}

		if next == nil && current == nil {
			result = nil
			return nil
		}

		var payload []byte
		if next != nil {
			next.Rev = 1
			if current != nil {
				next.Rev = current.Rev + 1
			}

			if payload, err = json.Marshal(next); err != nil {
				return fmt.Errorf("could not marshal match: %w", err)
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, payload, 0)
			}
			pipe.Publish(ctx, changesChannel(code), payload)

			return nil
		})
		if err != nil {
			return err
		}

		result = next

		return nil
	}

	for range maxTxAttempts {
		err := that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}

		if err != nil {
			return nil, err
		}

		return result, nil
	}

	return nil, fmt.Errorf("%w: match %s", ErrTxConflict, code)
}

func (that *dbMatch) read(ctx context.Context, tx *redis.Tx, key string) (*entity.Match, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read match: %w", err)
	}

	return decodeMatch(raw)
}

func (that *dbMatch) DeleteByID(ctx context.Context, code string) error {
	_, err := that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, matchKey(code))
		pipe.Publish(ctx, changesChannel(code), "")

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete match by code: %w", err)
	}

	return nil
}

func (that *dbMatch) List(ctx context.Context) ([]*entity.Match, error) {
	var matches []*entity.Match

	iter := that.client.Scan(ctx, 0, matchKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		code := iter.Val()[len(matchKeyPrefix):]

		match, err := that.Get(ctx, code)
		if errors.Is(err, apperror.ErrMatchNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		matches = append(matches, match)
	}

	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan matches: %w", err)
	}

	return matches, nil
}

func (that *dbMatch) Subscribe(ctx context.Context, code string) (<-chan *entity.Match, error) {
	pubsub := that.client.Subscribe(ctx, changesChannel(code))

	// wait for the subscription so no change between it and the first read is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to match: %w", err)
	}

	initial, err := that.Get(ctx, code)
	if err != nil && !errors.Is(err, apperror.ErrMatchNotFound) {
		_ = pubsub.Close()
		return nil, err
	}

	updates := make(chan *entity.Match, 1)
	offer(updates, initial)

	go func() {
		defer close(updates)
		defer pubsub.Close()

		var lastRev int64
		if initial != nil {
			lastRev = initial.Rev
		}

		messages := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}

				if msg.Payload == "" {
					lastRev = 0
					offer(updates, nil)
					continue
				}

				match, decodeErr := decodeMatch([]byte(msg.Payload))
				if decodeErr != nil || match.Rev <= lastRev {
					continue
				}

				lastRev = match.Rev
				offer(updates, match)
			}
		}
	}()

	return updates, nil
}

func (that *dbMatch) ServerTime(ctx context.Context) (int64, error) {
	return serverTime(ctx, that.client)
}

type clock interface {
	Time(ctx context.Context) *redis.TimeCmd
}

func serverTime(ctx context.Context, client clock) (int64, error) {
	now, err := client.Time(ctx).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read server time: %w", err)
	}

	return now.UnixMilli(), nil
}

func (that *dbMatch) Heartbeat(ctx context.Context, clientID string, ttl time.Duration) error {
	now, err := that.ServerTime(ctx)
	if err != nil {
		return err
	}

	err = that.client.ZAdd(ctx, presenceKey, redis.Z{
		Score:  float64(now + ttl.Milliseconds()),
		Member: clientID,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}

func (that *dbMatch) OnDisconnect(ctx context.Context, clientID, code string, fields Fields) error {
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}

	if err = that.client.HSet(ctx, hooksKey(clientID), code, raw).Err(); err != nil {
		return fmt.Errorf("failed to register disconnect cleanup: %w", err)
	}

	return nil
}

func (that *dbMatch) CancelOnDisconnect(ctx context.Context, clientID, code string) error {
	if err := that.client.HDel(ctx, hooksKey(clientID), code).Err(); err != nil {
		return fmt.Errorf("failed to cancel disconnect cleanup: %w", err)
	}

	return nil
}

func (that *dbMatch) ReapExpired(ctx context.Context) ([]string, error) {
	now, err := that.ServerTime(ctx)
	if err != nil {
		return nil, err
	}

	expired, err := that.client.ZRangeByScore(ctx, presenceKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now, 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list expired presences: %w", err)
	}

	var codes []string

	for _, clientID := range expired {
		// whoever removes the member owns its cleanup
		removed, remErr := that.client.ZRem(ctx, presenceKey, clientID).Result()
		if remErr != nil {
			return codes, fmt.Errorf("failed to claim expired presence: %w", remErr)
		}

		if removed == 0 {
			continue
		}

		hooks, hookErr := that.client.HGetAll(ctx, hooksKey(clientID)).Result()
		if hookErr != nil {
			return codes, fmt.Errorf("failed to read disconnect cleanups: %w", hookErr)
		}

		for code, raw := range hooks {
			fields, decodeErr := decodeFields([]byte(raw))
			if decodeErr != nil {
				continue
			}

			_, patchErr := that.Transact(ctx, code, disconnectTx(fields))
			if apperror.IsPrecondition(patchErr) {
				continue
			}

			if patchErr != nil {
				return codes, patchErr
			}

			codes = append(codes, code)
		}

		if delErr := that.client.Del(ctx, hooksKey(clientID)).Err(); delErr != nil {
			return codes, fmt.Errorf("failed to drop disconnect cleanups: %w", delErr)
		}
	}

	return codes, nil
}

func decodeMatch(raw []byte) (*entity.Match, error) {
	var match entity.Match
	if err := json.Unmarshal(raw, &match); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &match, nil
}

// offer delivers the newest snapshot, replacing one the reader has not picked up yet.
func offer(updates chan *entity.Match, match *entity.Match) {
	for {
		select {
		case updates <- match:
			return
		default:
			select {
			case <-updates:
			default:
			}
		}
	}
}
