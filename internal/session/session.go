package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/bot"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/internal/repository"
	"github.com/rocketscienceinc/duel-backend/internal/usecase"
)

const eventBuffer = 32

var ErrSessionClosed = errors.New("session is closed")

type EventKind string

const (
	EventSnapshot EventKind = "snapshot"
	EventNotice   EventKind = "notice"
	EventEnded    EventKind = "ended"
	EventFatal    EventKind = "fatal"
)

// Event is sent to the UI. Blocking events stay on screen until dismissed, the others
// clear on their own.
type Event struct {
	Kind     EventKind
	View     View
	Message  string
	Blocking bool
}

type matchManager interface {
	Get(ctx context.Context, code string) (*entity.Match, error)
	SubmitAction(ctx context.Context, code string, slot entity.Slot, action entity.Action) (*entity.Match, error)
	ResolveTurn(ctx context.Context, code string, observedTurn int) (*entity.Match, error)
	ConcludeForfeit(ctx context.Context, code string) (*entity.Match, error)
	Leave(ctx context.Context, code string, slot entity.Slot) (*entity.Match, error)
	ExpireWaiting(ctx context.Context, code string, window time.Duration) error
	Delete(ctx context.Context, code string) error
	Touch(ctx context.Context, code string, slot entity.Slot) error
}

type matchStore interface {
	Subscribe(ctx context.Context, code string) (<-chan *entity.Match, error)
	Heartbeat(ctx context.Context, clientID string, ttl time.Duration) error
	OnDisconnect(ctx context.Context, clientID, code string, fields repository.Fields) error
	CancelOnDisconnect(ctx context.Context, clientID, code string) error
	ServerTime(ctx context.Context) (int64, error)
}

type Config struct {
	TurnTimeout       time.Duration
	WaitingExpiry     time.Duration
	DeleteGrace       time.Duration
	MenuReturnDelay   time.Duration
	HeartbeatInterval time.Duration
	PresenceTTL       time.Duration
	AIThinkDelay      time.Duration
	ResolverPolicy    usecase.ResolverPolicy
}

// Params identify the local player of a session.
type Params struct {
	Code     string
	Slot     entity.Slot
	ClientID string
}

type Option func(*Session)

// WithPolicy replaces the AI policy and its random source.
func WithPolicy(policy bot.Policy, rng *rand.Rand) Option {
	return func(s *Session) {
		s.policy = policy
		s.rng = rng
	}
}

type submitRequest struct {
	action entity.Action
	reply  chan error
}

// Session follows one match for one local player. Run owns all of its state; Submit and
// Leave hand work over to the Run goroutine.
type Session struct {
	logger  *slog.Logger
	manager matchManager
	store   matchStore
	clock   clockwork.Clock
	conf    Config
	policy  bot.Policy
	rng     *rand.Rand

	code     string
	slot     entity.Slot
	clientID string

	events  chan Event
	submits chan submitRequest
	leaves  chan chan error
	done    chan struct{}

	last            *entity.Match
	offset          int64
	submittedTurn   int
	aiTurn          int
	ended           bool
	announced       bool
	deleteScheduled bool

	turnTimer     clockwork.Timer
	aiTimer       clockwork.Timer
	deleteTimer   clockwork.Timer
	waitingTimer  clockwork.Timer
	teardownTimer clockwork.Timer
}

func New(logger *slog.Logger, manager matchManager, store matchStore, clock clockwork.Clock, conf Config, params Params, opts ...Option) *Session {
	s := &Session{
		logger: logger.With("component", "session", "code", params.Code, "slot", params.Slot),

		manager: manager,
		store:   store,
		clock:   clock,
		conf:    conf,
		policy:  bot.Decide,
		rng:     bot.NewRand(clock.Now().UnixNano()),

		code:     params.Code,
		slot:     params.Slot,
		clientID: params.ClientID,

		events:  make(chan Event, eventBuffer),
		submits: make(chan submitRequest),
		leaves:  make(chan chan error),
		done:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Events streams what the UI has to show. It is closed when Run returns.
func (that *Session) Events() <-chan Event {
	return that.events
}

// Submit performs the local player's action for the current turn.
func (that *Session) Submit(ctx context.Context, action entity.Action) error {
	reply := make(chan error, 1)

	select {
	case that.submits <- submitRequest{action: action, reply: reply}:
	case <-that.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave forfeits a running match, or withdraws a waiting one, and stops the session.
func (that *Session) Leave(ctx context.Context) error {
	reply := make(chan error, 1)

	select {
	case that.leaves <- reply:
	case <-that.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the session until the match is gone, the player leaves or ctx is cancelled.
// It returns an error wrapping apperror.ErrResolutionFailed when a turn could not be written.
func (that *Session) Run(ctx context.Context) error {
	defer close(that.events)
	defer close(that.done)
	defer that.stopTimers()
	defer stopTimer(&that.teardownTimer)

	if serverNow, err := that.store.ServerTime(ctx); err == nil {
		that.offset = serverNow - that.clock.Now().UnixMilli()
	}

	if err := that.store.Heartbeat(ctx, that.clientID, that.conf.PresenceTTL); err != nil {
		return fmt.Errorf("failed to start presence lease: %w", err)
	}

	if err := that.store.OnDisconnect(ctx, that.clientID, that.code, repository.DisconnectFields(that.slot)); err != nil {
		return fmt.Errorf("failed to register disconnect cleanup: %w", err)
	}

	subCtx, unsubscribe := context.WithCancel(ctx)
	defer unsubscribe()

	updates, err := that.store.Subscribe(subCtx, that.code)
	if err != nil {
		return fmt.Errorf("failed to subscribe to match: %w", err)
	}

	heartbeat := that.clock.NewTicker(that.conf.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case match, ok := <-updates:
			if !ok {
				return nil
			}

			if err = that.handleSnapshot(ctx, match); err != nil {
				return err
			}
		case req := <-that.submits:
			req.reply <- that.performAction(ctx, req.action)
		case reply := <-that.leaves:
			reply <- that.leave(ctx)

			return nil
		case <-heartbeat.Chan():
			that.heartbeat(ctx)
		case <-timerChan(that.turnTimer):
			that.turnTimer = nil
			that.onTurnTimeout(ctx)
		case <-timerChan(that.aiTimer):
			that.aiTimer = nil
			that.onAIThink(ctx)
		case <-timerChan(that.deleteTimer):
			that.deleteTimer = nil
			that.onDeleteGrace(ctx)
		case <-timerChan(that.waitingTimer):
			that.waitingTimer = nil
			that.onWaitingExpiry(ctx)
		case <-timerChan(that.teardownTimer):
			that.teardownTimer = nil

			return nil
		}
	}
}

func (that *Session) handleSnapshot(ctx context.Context, match *entity.Match) error {
	if that.ended {
		return nil
	}

	if match == nil {
		that.matchEnded(ctx)
		return nil
	}

	if that.last != nil && match.Rev < that.last.Rev {
		return nil
	}
	that.last = match

	switch {
	case match.IsWaiting():
		that.scheduleWaitingExpiry(ctx, match)
	case match.IsPlaying():
		stopTimer(&that.waitingTimer)

		if err := that.drivePlaying(ctx, match); err != nil {
			return err
		}
	case match.IsTerminal():
		// a pending delete survives later snapshots of the finished match
		that.stopTurnTimers()

		if !that.announced {
			that.cancelDisconnect(ctx)
		}

		that.scheduleDelete(match)
	}

	that.emit(ctx, Event{Kind: EventSnapshot, View: that.view(match)})

	if match.IsTerminal() && !that.announced {
		that.announced = true
		that.emit(ctx, Event{Kind: EventNotice, Message: resultMessage(that.view(match)), Blocking: true})
	}

	return nil
}

func (that *Session) drivePlaying(ctx context.Context, match *entity.Match) error {
	if _, ok := match.ForfeitedSlot(); ok {
		stopTimer(&that.turnTimer)
		stopTimer(&that.aiTimer)
		that.concludeForfeit(ctx)

		return nil
	}

	if match.BothActed() {
		stopTimer(&that.turnTimer)
		stopTimer(&that.aiTimer)

		if !usecase.ShouldResolve(match, that.slot, that.conf.ResolverPolicy) {
			return nil
		}

		return that.resolve(ctx, match)
	}

	that.resetTurnTimer(ctx, match)
	that.scheduleAI(match)

	return nil
}

func (that *Session) resolve(ctx context.Context, match *entity.Match) error {
	_, err := that.manager.ResolveTurn(ctx, that.code, match.TurnNumber)
	if err == nil || apperror.IsPrecondition(err) || ctx.Err() != nil {
		that.logger.Debug("resolution attempt", "turn", match.TurnNumber, "result", err)
		return nil
	}

	that.logger.Error("failed to resolve turn", "turn", match.TurnNumber, "error", err)
	that.emit(ctx, Event{
		Kind:     EventFatal,
		Message:  "The turn could not be saved. Please reload the game.",
		Blocking: true,
	})

	return fmt.Errorf("%w: %w", apperror.ErrResolutionFailed, err)
}

func (that *Session) resetTurnTimer(ctx context.Context, match *entity.Match) {
	stopTimer(&that.turnTimer)

	expected, ok := match.ExpectedActor()
	if !ok || expected != that.slot || that.submittedTurn == match.TurnNumber {
		return
	}

	elapsed := time.Duration(that.now()-turnAnchor(match, that.slot)) * time.Millisecond
	remaining := that.conf.TurnTimeout - elapsed

	if remaining <= 0 {
		that.onTurnTimeout(ctx)
		return
	}

	that.turnTimer = that.clock.NewTimer(remaining)
}

func (that *Session) onTurnTimeout(ctx context.Context) {
	that.logger.Info("turn timed out, defending")

	if err := that.performAction(ctx, entity.ActionDefend); err != nil {
		return
	}

	that.emit(ctx, Event{Kind: EventNotice, Message: "Time is up: you defend this turn."})
}

// performAction writes the local action once per turn. The in-memory flag catches repeats
// locally, the transaction catches them when the flag is stale.
func (that *Session) performAction(ctx context.Context, action entity.Action) error {
	log := that.logger.With("method", "performAction", "action", action)

	if that.last == nil {
		return apperror.ErrMatchNotFound
	}

	if that.submittedTurn == that.last.TurnNumber {
		return apperror.ErrActionAlreadySubmitted
	}

	match, err := that.manager.SubmitAction(ctx, that.code, that.slot, action)
	if err != nil {
		if errors.Is(err, apperror.ErrActionAlreadySubmitted) {
			that.submittedTurn = that.last.TurnNumber
		}

		if apperror.IsPrecondition(err) {
			log.Debug("action not recorded", "reason", err)
		} else {
			log.Warn("failed to submit action", "error", err)
			that.emit(ctx, Event{Kind: EventNotice, Message: "Could not send your action, try again."})
		}

		return err
	}

	that.submittedTurn = match.TurnNumber
	stopTimer(&that.turnTimer)

	return nil
}

func (that *Session) scheduleAI(match *entity.Match) {
	aiSlot, ok := match.AISlot()
	if !ok || aiSlot == that.slot {
		return
	}

	expected, ok := match.ExpectedActor()
	if !ok || expected != aiSlot || that.aiTurn == match.TurnNumber {
		return
	}

	that.aiTurn = match.TurnNumber
	stopTimer(&that.aiTimer)
	that.aiTimer = that.clock.NewTimer(that.conf.AIThinkDelay)
}

func (that *Session) onAIThink(ctx context.Context) {
	log := that.logger.With("method", "onAIThink")

	// turn ownership may have moved while the AI was thinking
	fresh, err := that.manager.Get(ctx, that.code)
	if err != nil {
		log.Warn("failed to read match before AI move", "error", err)
		that.aiTurn = 0
		return
	}

	aiSlot, ok := fresh.AISlot()
	if !ok {
		return
	}

	if expected, acting := fresh.ExpectedActor(); !acting || expected != aiSlot {
		return
	}

	action := that.policy(that.rng, bot.InputFor(fresh, aiSlot))

	if _, err = that.manager.SubmitAction(ctx, that.code, aiSlot, action); err != nil {
		if apperror.IsPrecondition(err) {
			log.Debug("AI action not recorded", "reason", err)
			return
		}

		log.Warn("failed to submit AI action", "error", err)
		that.aiTurn = 0
	}
}

func (that *Session) concludeForfeit(ctx context.Context) {
	if _, err := that.manager.ConcludeForfeit(ctx, that.code); err != nil {
		if apperror.IsPrecondition(err) {
			that.logger.Debug("forfeit already concluded", "reason", err)
			return
		}

		that.logger.Warn("failed to conclude forfeit", "error", err)
		that.emit(ctx, Event{Kind: EventNotice, Message: "Lost contact with the match server."})
	}
}

func (that *Session) scheduleDelete(match *entity.Match) {
	if that.deleteScheduled || match.Custodian() != that.slot {
		return
	}

	that.deleteScheduled = true
	that.deleteTimer = that.clock.NewTimer(that.conf.DeleteGrace)
}

func (that *Session) onDeleteGrace(ctx context.Context) {
	// best-effort, the manager logs failures
	_ = that.manager.Delete(ctx, that.code)
}

func (that *Session) scheduleWaitingExpiry(ctx context.Context, match *entity.Match) {
	if that.waitingTimer != nil {
		return
	}

	elapsed := time.Duration(that.now()-match.CreatedAt) * time.Millisecond
	remaining := that.conf.WaitingExpiry - elapsed

	if remaining <= 0 {
		that.onWaitingExpiry(ctx)
		return
	}

	that.waitingTimer = that.clock.NewTimer(remaining)
}

func (that *Session) onWaitingExpiry(ctx context.Context) {
	err := that.manager.ExpireWaiting(ctx, that.code, that.conf.WaitingExpiry)
	if err != nil {
		that.logger.Debug("waiting match not expired", "reason", err)
		return
	}

	that.emit(ctx, Event{
		Kind:     EventNotice,
		Message:  "Nobody joined in time, the match expired.",
		Blocking: true,
	})
}

func (that *Session) matchEnded(ctx context.Context) {
	that.ended = true
	that.stopTimers()
	that.cancelDisconnect(ctx)

	that.teardownTimer = that.clock.NewTimer(that.conf.MenuReturnDelay)
	that.emit(ctx, Event{Kind: EventEnded, Message: "The match has ended.", Blocking: true})
}

func (that *Session) leave(ctx context.Context) error {
	that.cancelDisconnect(ctx)

	match, err := that.manager.Leave(ctx, that.code, that.slot)
	if err != nil {
		if !apperror.IsPrecondition(err) {
			return err
		}

		// already over, still clean up if nobody else will
		match = that.last
	}

	if match != nil && match.IsTerminal() && match.Custodian() == that.slot {
		_ = that.manager.Delete(ctx, that.code)
	}

	return nil
}

func (that *Session) cancelDisconnect(ctx context.Context) {
	if err := that.store.CancelOnDisconnect(ctx, that.clientID, that.code); err != nil {
		that.logger.Warn("failed to cancel disconnect cleanup", "error", err)
	}
}

func (that *Session) heartbeat(ctx context.Context) {
	if err := that.store.Heartbeat(ctx, that.clientID, that.conf.PresenceTTL); err != nil {
		that.logger.Warn("failed to refresh presence", "error", err)
		that.emit(ctx, Event{Kind: EventNotice, Message: "Connection problem, retrying."})

		return
	}

	if that.last == nil {
		return
	}

	if err := that.manager.Touch(ctx, that.code, that.slot); err != nil && !apperror.IsPrecondition(err) {
		that.logger.Warn("failed to refresh last seen", "error", err)
	}
}

func (that *Session) emit(ctx context.Context, event Event) {
	if event.Kind == EventSnapshot {
		// a newer snapshot always follows, dropping one is fine
		select {
		case that.events <- event:
		default:
		}

		return
	}

	select {
	case that.events <- event:
	case <-ctx.Done():
	}
}

func (that *Session) view(match *entity.Match) View {
	return Derive(match, that.slot, that.now(), that.conf.TurnTimeout.Milliseconds())
}

// now is the local estimate of the store clock.
func (that *Session) now() int64 {
	return that.clock.Now().UnixMilli() + that.offset
}

func (that *Session) stopTimers() {
	that.stopTurnTimers()
	stopTimer(&that.deleteTimer)
}

func (that *Session) stopTurnTimers() {
	stopTimer(&that.turnTimer)
	stopTimer(&that.aiTimer)
	stopTimer(&that.waitingTimer)
}

func stopTimer(timer *clockwork.Timer) {
	if *timer != nil {
		(*timer).Stop()
		*timer = nil
	}
}

func timerChan(timer clockwork.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}

	return timer.Chan()
}

func resultMessage(view View) string {
	switch view.Result {
	case ResultWin:
		return "You win!"
	case ResultDraw:
		return "It's a draw."
	default:
		return "You lost."
	}
}
