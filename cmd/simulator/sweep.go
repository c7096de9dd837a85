package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"lateness-sim/internal/config"
	"lateness-sim/internal/db"
	"lateness-sim/internal/metrics"
	"lateness-sim/internal/publisher"
	"lateness-sim/internal/report"
	"lateness-sim/internal/sim"
	"lateness-sim/internal/source"
)

func sweepFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "start", Usage: "first departure time (HH:MM)"},
		&cli.StringFlag{Name: "meeting", Usage: "meeting time (HH:MM)"},
		&cli.IntFlag{Name: "step", Usage: "simulation time step in seconds"},
		&cli.IntFlag{Name: "iterations", Usage: "Monte Carlo iterations per step"},
		&cli.Int64Flag{Name: "seed", Usage: "random seed (0 picks one from the clock)"},
		&cli.BoolFlag{Name: "no-wait", Usage: "start immediately and do not pace steps to the wall clock"},
	}
}

// applyFlags overrides environment configuration with explicit flags.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("start") {
		clk, err := config.ParseClock(c.String("start"))
		if err != nil {
			return err
		}
		cfg.StartTime = clk
	}
	if c.IsSet("meeting") {
		clk, err := config.ParseClock(c.String("meeting"))
		if err != nil {
			return err
		}
		cfg.MeetingTime = clk
	}
	if c.IsSet("step") {
		cfg.StepInterval = time.Duration(c.Int("step")) * time.Second
	}
	if c.IsSet("iterations") {
		cfg.Iterations = c.Int("iterations")
	}
	if c.IsSet("seed") {
		cfg.Seed = c.Int64("seed")
	}
	if c.Bool("no-wait") {
		cfg.RealtimePacing = false
	}
	return cfg.Validate()
}

func runSweep(ctx context.Context, c *cli.Context, cfg *config.Config, logger zerolog.Logger) error {
	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.Iterations, cfg.StepInterval, cfg.RefreshInterval, logger)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(srv)
	}

	src, closeSrc, err := newScheduleSource(ctx, cfg, mcol, logger)
	if err != nil {
		return err
	}
	defer closeSrc()

	// Sleep until the next occurrence of the start time
	now := time.Now().In(cfg.Location)
	day := now
	if !c.Bool("no-wait") {
		target := cfg.StartTime.Next(now, cfg.Location)
		logger.Info().
			Dur("sleep", target.Sub(now).Round(time.Second)).
			Time("until", target).
			Msg("waiting for start time")
		if err := (sim.RealtimePacer{}).Wait(ctx, target); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info().Msg("cancelled before start")
				return nil
			}
			return err
		}
		day = target
	}
	start, end := cfg.Window(day)
	params := cfg.Params(day)

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	runID := time.Now().In(cfg.Location).Format("20060102_150405")
	runLog := logger.With().Str("run", runID).Int64("seed", seed).Logger()

	estimator, err := sim.NewMonteCarlo(params, cfg.Iterations, cfg.Workers)
	if err != nil {
		return err
	}

	opts := []sim.SweepOption{sim.WithLogger(runLog)}
	if cfg.RealtimePacing {
		opts = append(opts, sim.WithPacer(sim.RealtimePacer{}))
	}
	if mcol != nil {
		opts = append(opts, sim.WithMetrics(mcol))
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, runID, wrapPublisherMetrics(mcol), runLog)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer pub.Close()
		opts = append(opts, sim.WithObserver(pub))
	}

	sweep, err := sim.NewSweep(sim.SweepConfig{
		Start:           start,
		End:             end,
		Step:            cfg.StepInterval,
		RefreshInterval: cfg.RefreshInterval,
		OriginStop:      cfg.OriginStopID,
		DestinationStop: cfg.DestinationStopID,
		MinTravel:       cfg.MinTravel(),
	}, params, src, estimator, rand.New(rand.NewSource(seed)), opts...)
	if err != nil {
		return err
	}

	curve, runErr := sweep.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if runErr != nil {
		runLog.Warn().Int("steps", len(curve)).Msg("interrupted, saving partial curve")
	}
	if len(curve) == 0 {
		return nil
	}

	artifacts, err := report.WriteCurve(cfg.ResultsDir, curve, cfg.Location, time.Now().In(cfg.Location))
	if err != nil {
		return err
	}
	runLog.Info().Str("png", artifacts.PNG).Str("csv", artifacts.CSV).Msg("saved lateness curve")

	if cfg.ResultsDatabaseURL != "" {
		// a cancelled run context must not abort the final write
		if err := saveCurve(context.WithoutCancel(ctx), cfg, db.Run{
			StartedAt:       start,
			Line:            cfg.TargetLine,
			OriginStop:      cfg.OriginStopID,
			DestinationStop: cfg.DestinationStopID,
			Deadline:        params.Deadline,
			Iterations:      cfg.Iterations,
			Seed:            seed,
		}, curve, runLog); err != nil {
			return err
		}
	}
	return nil
}

func newScheduleSource(ctx context.Context, cfg *config.Config, mcol *metrics.Collector, logger zerolog.Logger) (sim.Source, func(), error) {
	opts := []source.Option{
		source.WithLogger(logger.With().Str("source", cfg.ScheduleSource).Logger()),
	}
	if mcol != nil {
		opts = append(opts, source.WithMetrics(&sourceMetrics{c: mcol}))
	}

	switch cfg.ScheduleSource {
	case "gtfsrt":
		return source.NewGTFSRT(cfg.GTFSRTURL, cfg.GTFSRTRouteID, cfg.Location, cfg.FetchTimeout, opts...), func() {}, nil
	case "gtfsdb":
		sqlDB, name, err := db.OpenSchedule(ctx, cfg.DatabaseURL, cfg.City)
		if err != nil {
			return nil, nil, fmt.Errorf("schedule db: %w", err)
		}
		if name != "" {
			logger.Info().Str("database", name).Str("city", cfg.City).Msg("using latest GTFS import")
		}
		return source.NewGTFSDB(sqlDB, cfg.TargetLine, cfg.Location, cfg.FetchTimeout, opts...), func() { sqlDB.Close() }, nil
	default:
		return source.NewSIRI(cfg.ScheduleURLTemplate, cfg.TargetLine, cfg.Location, cfg.FetchTimeout, opts...), func() {}, nil
	}
}

func saveCurve(ctx context.Context, cfg *config.Config, run db.Run, curve sim.Curve, logger zerolog.Logger) error {
	sqlDB, err := db.Open(cfg.ResultsDatabaseURL)
	if err != nil {
		return fmt.Errorf("results db: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return fmt.Errorf("results db ping: %w", err)
	}
	if err := db.Migrate(ctx, sqlDB); err != nil {
		return err
	}
	id, err := db.SaveCurve(ctx, sqlDB, run, curve)
	if err != nil {
		return err
	}
	logger.Info().Int64("run_id", id).Int("points", len(curve)).Msg("stored lateness curve")
	return nil
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
