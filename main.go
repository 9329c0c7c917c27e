package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	app "github.com/rocketscienceinc/duel-backend/internal"
	"github.com/rocketscienceinc/duel-backend/internal/config"
)

const usage = `usage:
  duel create <code> -name N
  duel join <code> -name N
  duel ai <code> -name N [-difficulty easy|normal|hard]
  duel reaper`

// main - is the entry point of the application. It parses the command, loads the configuration and runs it.
func main() {
	defer func() {
		if err := recover(); err != nil {
			fmt.Fprintf(os.Stderr, "recovered from panic: %v\n", err)
			os.Exit(1)
		}
	}()

	cmd, configPath, err := parseCommand(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	conf := initConfig(configPath)
	logger := initLogger(conf, logOutput(cmd))

	if err = app.RunApp(logger, conf, cmd, os.Stdin, os.Stdout); err != nil {
		panic(fmt.Errorf("app run failed: %w", err))
	}
}

func parseCommand(args []string) (app.Command, string, error) {
	if len(args) == 0 {
		return app.Command{}, "", errors.New("missing command")
	}

	cmd := app.Command{Name: args[0]}

	flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	configPath := flags.String("config", "./config.yml", "path to the config file")
	flags.StringVar(&cmd.Pseudo, "name", "", "your pseudo")
	flags.StringVar(&cmd.Difficulty, "difficulty", "", "AI difficulty")

	rest := args[1:]
	if cmd.Name != app.CommandReaper {
		if len(rest) == 0 {
			return app.Command{}, "", errors.New("missing match code")
		}
		cmd.Code, rest = rest[0], rest[1:]
	}

	if err := flags.Parse(rest); err != nil {
		return app.Command{}, "", err
	}

	if cmd.Name != app.CommandReaper && cmd.Pseudo == "" {
		return app.Command{}, "", errors.New("missing -name")
	}

	return cmd, *configPath, nil
}

// initialize config. A .env file, when present, feeds the environment overrides.
func initConfig(path string) *config.Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Errorf("failed to load .env: %w", err))
	}

	return config.MustLoad(path)
}

// the terminal belongs to the game in client mode.
func logOutput(cmd app.Command) io.Writer {
	if cmd.Name == app.CommandReaper {
		return os.Stdout
	}

	return os.Stderr
}

// initialize logger.
func initLogger(conf *config.Config, w io.Writer) *slog.Logger {
	var level slog.Level

	switch conf.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
