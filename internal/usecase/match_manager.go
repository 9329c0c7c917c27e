package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/duel"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/internal/repository"
)

var ErrUnknownResolverPolicy = errors.New("unknown resolver policy")

// ResolverPolicy decides which observers attempt to resolve a complete turn.
type ResolverPolicy string

const (
	// ResolverAny lets every observer race; the gated transaction keeps it exactly-once.
	ResolverAny ResolverPolicy = "any"
	// ResolverSlot1 leaves resolution to p1, or to the human in an AI match.
	ResolverSlot1 ResolverPolicy = "slot1"
)

func ParseResolverPolicy(s string) (ResolverPolicy, error) {
	switch policy := ResolverPolicy(s); policy {
	case ResolverAny, ResolverSlot1:
		return policy, nil
	case "":
		return ResolverAny, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownResolverPolicy, s)
	}
}

// ShouldResolve reports whether the client holding local should attempt the resolution.
func ShouldResolve(m *entity.Match, local entity.Slot, policy ResolverPolicy) bool {
	if policy != ResolverSlot1 {
		return true
	}

	if aiSlot, ok := m.AISlot(); ok {
		return local == aiSlot.Opponent()
	}

	return local == entity.SlotP1
}

type matchRepoDep interface {
	Get(ctx context.Context, code string) (*entity.Match, error)
	Patch(ctx context.Context, code string, fields repository.Fields) error
	Transact(ctx context.Context, code string, fn repository.TxFunc) (*entity.Match, error)
}

type archiveDep interface {
	Record(ctx context.Context, match *entity.Match) error
}

type MatchManager struct {
	logger *slog.Logger

	matchRepo matchRepoDep
	archive   archiveDep
}

// NewMatchManager builds the lifecycle controller. archive may be nil.
func NewMatchManager(logger *slog.Logger, matchRepo matchRepoDep, archive archiveDep) *MatchManager {
	return &MatchManager{
		logger: logger.With("component", "match-manager"),

		matchRepo: matchRepo,
		archive:   archive,
	}
}

func (that *MatchManager) Get(ctx context.Context, code string) (*entity.Match, error) {
	match, err := that.matchRepo.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return match, nil
}

// Create opens a waiting match with the creator in p1.
func (that *MatchManager) Create(ctx context.Context, code, pseudo string) (*entity.Match, error) {
	if err := entity.ValidateCode(code); err != nil {
		return nil, err
	}

	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current != nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrMatchAlreadyExists, code)
		}

		return entity.NewMatch(code, pseudo, now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	that.logger.Info("match created", "code", code)

	return match, nil
}

// StartAI opens a match against the AI that is playing right away.
func (that *MatchManager) StartAI(ctx context.Context, code, pseudo string, difficulty entity.Difficulty) (*entity.Match, error) {
	if err := entity.ValidateCode(code); err != nil {
		return nil, err
	}

	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current != nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrMatchAlreadyExists, code)
		}

		return entity.NewAIMatch(code, pseudo, difficulty, now), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start AI match: %w", err)
	}

	that.logger.Info("AI match started", "code", code, "difficulty", difficulty)

	return match, nil
}

// Join takes the free p2 slot. Only one of several concurrent joiners can succeed.
func (that *MatchManager) Join(ctx context.Context, code, pseudo string) (*entity.Match, error) {
	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrMatchNotFound, code)
		}

		if current.Player(entity.SlotP2) != nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrMatchFull, code)
		}

		if !current.IsWaiting() {
			return nil, fmt.Errorf("%w: status %s", apperror.ErrMatchNotWaiting, current.Status)
		}

		if creator := current.Player(entity.SlotP1); creator == nil || creator.IsForfeited() {
			return nil, fmt.Errorf("%w: %s", apperror.ErrCreatorLeft, code)
		}

		current.Players[entity.SlotP2] = entity.NewPlayer(pseudo, now)
		current.Status = entity.StatusPlaying
		current.LastTurnProcessedAt = now
		current.AppendHistory(pseudo + " joined the duel")

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join match: %w", err)
	}

	that.logger.Info("match joined", "code", code)

	return match, nil
}

// SubmitAction records the action of slot for the current turn, at most once.
func (that *MatchManager) SubmitAction(ctx context.Context, code string, slot entity.Slot, action entity.Action) (*entity.Match, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", apperror.ErrInvalidAction, action)
	}

	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if err := current.ConfirmPlaying(); err != nil {
			return nil, err
		}

		player := current.Player(slot)
		if player == nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownSlot, slot)
		}

		if player.HasActed() {
			return nil, apperror.ErrActionAlreadySubmitted
		}

		if expected, ok := current.ExpectedActor(); !ok || expected != slot {
			return nil, apperror.ErrNotYourTurn
		}

		player.Action = action
		player.ActedAt = now

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit action: %w", err)
	}

	return match, nil
}

// ResolveTurn applies a complete turn. observedTurn is the turn number the caller saw; the
// write only happens if both actions are still present and nobody resolved that turn yet.
func (that *MatchManager) ResolveTurn(ctx context.Context, code string, observedTurn int) (*entity.Match, error) {
	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if current.TurnNumber != observedTurn {
			return nil, fmt.Errorf("%w: turn %d, now at %d", apperror.ErrStaleTurn, observedTurn, current.TurnNumber)
		}

		outcome, ok := duel.Resolve(current)
		if !ok {
			return nil, apperror.ErrTurnNotReady
		}

		duel.Apply(current, outcome, now)

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve turn: %w", err)
	}

	that.logger.Debug("turn resolved", "code", code, "turn", observedTurn, "status", match.Status)

	return match, nil
}

// ConcludeForfeit turns a match whose player was marked forfeited by a disconnect cleanup
// into a forfeited match won by the remaining player.
func (that *MatchManager) ConcludeForfeit(ctx context.Context, code string) (*entity.Match, error) {
	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if err := current.ConfirmPlaying(); err != nil {
			return nil, err
		}

		slot, ok := current.ForfeitedSlot()
		if !ok {
			return nil, apperror.ErrNoForfeit
		}

		forfeit(current, slot, now)

		return current, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to conclude forfeit: %w", err)
	}

	that.logger.Info("match forfeited", "code", code, "winner", match.Winner)

	return match, nil
}

// Leave is an explicit departure. While playing it forfeits in favour of the opponent;
// a creator leaving a waiting match withdraws it. A nil match means it was deleted.
func (that *MatchManager) Leave(ctx context.Context, code string, slot entity.Slot) (*entity.Match, error) {
	match, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		player := current.Player(slot)
		if player == nil {
			return nil, fmt.Errorf("%w: %s", apperror.ErrUnknownSlot, slot)
		}

		switch {
		case current.IsWaiting():
			return nil, nil
		case current.IsPlaying():
			player.Status = entity.PlayerForfeited
			player.LastSeen = now
			forfeit(current, slot, now)

			return current, nil
		default:
			return nil, fmt.Errorf("%w: status %s", apperror.ErrMatchNotPlaying, current.Status)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to leave match: %w", err)
	}

	that.logger.Info("player left", "code", code, "slot", slot)

	return match, nil
}

func forfeit(m *entity.Match, slot entity.Slot, now int64) {
	loser := m.Player(slot)
	loser.PV = 0
	loser.Status = entity.PlayerForfeited

	for _, s := range entity.Slots {
		if p := m.Player(s); p != nil {
			p.Action = entity.ActionNone
			p.ActedAt = 0
		}
	}

	m.Status = entity.StatusForfeited
	m.EndedAt = now

	winner := m.Player(slot.Opponent())
	if winner == nil || winner.IsForfeited() {
		m.Winner = entity.Draw
		m.Loser = ""
		m.AppendHistory("Both duelists left the arena")

		return
	}

	m.Winner = slot.Opponent()
	m.Loser = slot
	m.AppendHistory(fmt.Sprintf("%s left the duel, %s wins by forfeit", loser.Pseudo, winner.Pseudo))
}

// ExpireWaiting removes a match nobody joined within window.
func (that *MatchManager) ExpireWaiting(ctx context.Context, code string, window time.Duration) error {
	_, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, now int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if !current.IsWaiting() {
			return nil, fmt.Errorf("%w: status %s", apperror.ErrMatchNotWaiting, current.Status)
		}

		if now-current.CreatedAt < window.Milliseconds() {
			return nil, apperror.ErrMatchNotExpired
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to expire match: %w", err)
	}

	that.logger.Info("waiting match expired", "code", code)

	return nil
}

// Delete removes a terminal match and records its result when an archive is set.
// It is best-effort: failures are logged and returned, never retried.
func (that *MatchManager) Delete(ctx context.Context, code string) error {
	log := that.logger.With("method", "Delete", "code", code)

	var ended *entity.Match

	_, err := that.matchRepo.Transact(ctx, code, func(current *entity.Match, _ int64) (*entity.Match, error) {
		if current == nil {
			return nil, apperror.ErrMatchNotFound
		}

		if !current.IsTerminal() {
			return nil, fmt.Errorf("%w: status %s", apperror.ErrMatchNotFinished, current.Status)
		}

		ended = current

		return nil, nil
	})
	if err != nil {
		if apperror.IsPrecondition(err) {
			log.Debug("match not deleted", "reason", err)
		} else {
			log.Error("failed to delete match", "error", err)
		}

		return fmt.Errorf("failed to delete match: %w", err)
	}

	if that.archive != nil {
		if err = that.archive.Record(ctx, ended); err != nil {
			log.Error("failed to archive match result", "error", err)
		}
	}

	log.Info("match deleted")

	return nil
}

// Touch refreshes lastSeen of slot with the store clock.
func (that *MatchManager) Touch(ctx context.Context, code string, slot entity.Slot) error {
	err := that.matchRepo.Patch(ctx, code, repository.Fields{
		"players." + string(slot) + ".lastSeen": repository.ServerTimestamp,
	})
	if err != nil {
		return fmt.Errorf("failed to refresh last seen: %w", err)
	}

	return nil
}
