package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/rocketscienceinc/duel-backend/internal/apperror"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
)

type matchStore interface {
	ReapExpired(ctx context.Context) ([]string, error)
	List(ctx context.Context) ([]*entity.Match, error)
	ServerTime(ctx context.Context) (int64, error)
}

type matchManager interface {
	ConcludeForfeit(ctx context.Context, code string) (*entity.Match, error)
	ExpireWaiting(ctx context.Context, code string, window time.Duration) error
	Delete(ctx context.Context, code string) error
}

type Config struct {
	Interval      time.Duration
	SweepEvery    time.Duration
	StaleAfter    time.Duration
	WaitingExpiry time.Duration
}

// Janitor plays the server side of the disconnect cleanups: it fires the cleanups of
// clients whose presence lease ran out and removes matches no client will ever close.
type Janitor struct {
	logger  *slog.Logger
	store   matchStore
	manager matchManager
	clock   clockwork.Clock
	conf    Config
}

func New(logger *slog.Logger, store matchStore, manager matchManager, clock clockwork.Clock, conf Config) *Janitor {
	return &Janitor{
		logger:  logger.With("component", "janitor"),
		store:   store,
		manager: manager,
		clock:   clock,
		conf:    conf,
	}
}

// Run schedules Reap and Sweep until ctx is done.
func (that *Janitor) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler(gocron.WithClock(that.clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	jobs := []struct {
		name  string
		every time.Duration
		fn    func(context.Context) error
	}{
		{name: "reap", every: that.conf.Interval, fn: that.Reap},
		{name: "sweep", every: that.conf.SweepEvery, fn: that.Sweep},
	}

	for _, job := range jobs {
		_, err = scheduler.NewJob(
			gocron.DurationJob(job.every),
			gocron.NewTask(func() {
				if jobErr := job.fn(ctx); jobErr != nil {
					that.logger.Error("janitor job failed", "job", job.name, "error", jobErr)
				}
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
	}

	scheduler.Start()
	that.logger.Info("janitor started", "interval", that.conf.Interval, "sweepEvery", that.conf.SweepEvery)

	<-ctx.Done()

	if err = scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	that.logger.Info("janitor stopped")

	return nil
}

// Reap fires the cleanups of expired clients and concludes the matches they forfeited.
func (that *Janitor) Reap(ctx context.Context) error {
	codes, err := that.store.ReapExpired(ctx)
	if err != nil {
		return fmt.Errorf("failed to reap expired clients: %w", err)
	}

	for _, code := range codes {
		match, concludeErr := that.manager.ConcludeForfeit(ctx, code)
		if concludeErr != nil {
			if !apperror.IsPrecondition(concludeErr) {
				err = errors.Join(err, concludeErr)
			}

			continue
		}

		that.logger.Info("reaped disconnected player", "code", code, "winner", match.Winner)
	}

	return err
}

// Sweep closes matches that lost all their clients: waiting matches past their window,
// running matches with a forfeited player and terminal matches nobody deleted.
func (that *Janitor) Sweep(ctx context.Context) error {
	matches, err := that.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list matches: %w", err)
	}

	now, err := that.store.ServerTime(ctx)
	if err != nil {
		return fmt.Errorf("failed to read server time: %w", err)
	}

	var errs error

	for _, match := range matches {
		var sweepErr error

		switch {
		case match.IsWaiting() && now-match.CreatedAt >= that.conf.WaitingExpiry.Milliseconds():
			sweepErr = that.manager.ExpireWaiting(ctx, match.Code, that.conf.WaitingExpiry)
		case match.IsPlaying():
			if _, ok := match.ForfeitedSlot(); ok {
				_, sweepErr = that.manager.ConcludeForfeit(ctx, match.Code)
			}
		case match.IsTerminal() && now-match.EndedAt >= that.conf.StaleAfter.Milliseconds():
			sweepErr = that.manager.Delete(ctx, match.Code)
		}

		if sweepErr != nil && !apperror.IsPrecondition(sweepErr) {
			errs = errors.Join(errs, sweepErr)
		}
	}

	return errs
}
