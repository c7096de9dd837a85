package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"lateness-sim/internal/config"

	_ "time/tzdata"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	logger := newLogger(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sweepCmd := &cli.Command{
		Name:  "sweep",
		Usage: "estimate P(late) for every departure time between start and meeting",
		Flags: sweepFlags(),
		Action: func(c *cli.Context) error {
			return runSweep(c.Context, c, cfg, logger)
		},
	}

	app := &cli.App{
		Name:  "simulator",
		Usage: "lateness probability simulator for a single bus commute",
		Flags: sweepFlags(),
		Action: func(c *cli.Context) error {
			return runSweep(c.Context, c, cfg, logger)
		},
		Commands: []*cli.Command{
			sweepCmd,
			{
				Name:  "gps",
				Usage: "snapshot live positions of the tracked line and flag zone membership",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Usage: "output CSV path (default: timestamped file in RESULTS_DIR)"},
				},
				Action: func(c *cli.Context) error {
					return runGPS(c.Context, c, cfg, logger)
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		logger.Fatal().Err(err).Send()
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg == nil || !cfg.LogJSON {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}
	if cfg != nil && cfg.Debug {
		return logger.Level(zerolog.DebugLevel)
	}
	return logger.Level(zerolog.InfoLevel)
}
