package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

func newCLI(action cli.ActionFunc) *cli.App {
	return &cli.App{
		Name:    "fetch-mcp",
		Usage:   "MCP server exposing a fetch tool that returns the readable content of web pages",
		Version: version(),
		Flags:   configFlags(),
		Action:  action,
	}
}

// newLogger writes human readable logs to w. Stdout is reserved for the
// stdio transport, so callers pass stderr.
func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		Level(lvl).
		With().Timestamp().
		Logger(), nil
}

func run(c *cli.Context) error {
	cfg := configFromCLI(c)

	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Startup failed")
		return cli.Exit(err.Error(), 1)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := a.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Shutdown incomplete")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("Server failed")
		return cli.Exit(runErr.Error(), 1)
	}
	return nil
}

func main() {
	if err := newCLI(run).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
