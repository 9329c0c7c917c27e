package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/rocketscienceinc/duel-backend/internal/archive"
	"github.com/rocketscienceinc/duel-backend/internal/config"
	"github.com/rocketscienceinc/duel-backend/internal/console"
	"github.com/rocketscienceinc/duel-backend/internal/entity"
	"github.com/rocketscienceinc/duel-backend/internal/janitor"
	"github.com/rocketscienceinc/duel-backend/internal/repository"
	"github.com/rocketscienceinc/duel-backend/internal/repository/storage"
	"github.com/rocketscienceinc/duel-backend/internal/session"
	"github.com/rocketscienceinc/duel-backend/internal/usecase"
	"github.com/rocketscienceinc/duel-backend/transport/rest"
)

const (
	CommandCreate = "create"
	CommandJoin   = "join"
	CommandAI     = "ai"
	CommandReaper = "reaper"
)

var (
	ErrAddrNotFound    = errors.New("redis address string is empty")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrUnknownStore    = errors.New("unknown store")
	ErrMemoryStoreMode = errors.New("the memory store only serves AI matches")
)

// Command is what the user asked for on the command line.
type Command struct {
	Name       string
	Code       string
	Pseudo     string
	Difficulty string
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config, cmd Command, in io.Reader, out io.Writer) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	policy, err := usecase.ParseResolverPolicy(conf.Match.ResolverPolicy)
	if err != nil {
		return err
	}

	clock := clockwork.NewRealClock()

	store, closeStore, err := openStore(ctx, conf, cmd, clock)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeStore(); closeErr != nil {
			log.Error("could not close match store", "error", closeErr)
		}
	}()

	manager, closeArchive, err := newManager(logger, conf, store)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeArchive(); closeErr != nil {
			log.Error("could not close archive", "error", closeErr)
		}
	}()

	var slot entity.Slot

	switch cmd.Name {
	case CommandReaper:
		return runReaper(ctx, logger, conf, store, manager, clock)
	case CommandCreate:
		_, err = manager.Create(ctx, cmd.Code, cmd.Pseudo)
		slot = entity.SlotP1
	case CommandJoin:
		_, err = manager.Join(ctx, cmd.Code, cmd.Pseudo)
		slot = entity.SlotP2
	case CommandAI:
		var difficulty entity.Difficulty
		if difficulty, err = entity.ParseDifficulty(cmd.Difficulty); err != nil {
			return err
		}

		_, err = manager.StartAI(ctx, cmd.Code, cmd.Pseudo, difficulty)
		slot = entity.SlotP1
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}

	if err != nil {
		return err
	}

	sessionConf := session.Config{
		TurnTimeout:       conf.Match.TurnTimeout,
		WaitingExpiry:     conf.Match.WaitingExpiry,
		DeleteGrace:       conf.Match.DeleteGrace,
		MenuReturnDelay:   conf.Match.MenuReturnDelay,
		HeartbeatInterval: conf.Match.HeartbeatInterval,
		PresenceTTL:       conf.Match.PresenceTTL,
		AIThinkDelay:      conf.Match.AIThinkDelay,
		ResolverPolicy:    policy,
	}

	params := session.Params{Code: cmd.Code, Slot: slot, ClientID: uuid.NewString()}
	log.Info("joining match", "code", cmd.Code, "slot", slot, "clientID", params.ClientID)

	return runClient(ctx, session.New(logger, manager, store, clock, sessionConf, params), in, out)
}

func openStore(ctx context.Context, conf *config.Config, cmd Command, clock clockwork.Clock) (repository.MatchRepository, func() error, error) {
	switch conf.Store {
	case config.StoreMemory:
		if cmd.Name != CommandAI {
			return nil, nil, fmt.Errorf("%w: %q", ErrMemoryStoreMode, cmd.Name)
		}

		return repository.NewMemoryMatchRepository(clock), func() error { return nil }, nil
	case config.StoreRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.NewRedisStorage(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		return repository.NewMatchRepository(redisStorage.Connection), redisStorage.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownStore, conf.Store)
	}
}

func newManager(logger *slog.Logger, conf *config.Config, store repository.MatchRepository) (*usecase.MatchManager, func() error, error) {
	if !conf.Archive.Enabled() {
		return usecase.NewMatchManager(logger, store, nil), func() error { return nil }, nil
	}

	db, err := archive.Open(conf.Archive.DSN)
	if err != nil {
		return nil, nil, err
	}

	recorder, err := archive.NewRecorder(db)
	if err != nil {
		return nil, nil, err
	}

	return usecase.NewMatchManager(logger, store, recorder), recorder.Close, nil
}

func runClient(ctx context.Context, s *session.Session, in io.Reader, out io.Writer) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return s.Run(groupCtx)
	})

	group.Go(func() error {
		return console.Play(groupCtx, in, out, s)
	})

	return group.Wait()
}

func runReaper(
	ctx context.Context,
	logger *slog.Logger,
	conf *config.Config,
	store repository.MatchRepository,
	manager *usecase.MatchManager,
	clock clockwork.Clock,
) error {
	reaper := janitor.New(logger, store, manager, clock, janitor.Config{
		Interval:      conf.Reaper.Interval,
		SweepEvery:    conf.Reaper.SweepEvery,
		StaleAfter:    conf.Reaper.StaleAfter,
		WaitingExpiry: conf.Match.WaitingExpiry,
	})
	server := rest.New(logger, conf.HTTPPort, store)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return reaper.Run(groupCtx)
	})

	group.Go(func() error {
		return server.Start(groupCtx)
	})

	return group.Wait()
}
