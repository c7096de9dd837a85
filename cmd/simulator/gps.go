package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"lateness-sim/internal/config"
	"lateness-sim/internal/report"
	"lateness-sim/internal/source"
	"lateness-sim/internal/zones"
)

func runGPS(ctx context.Context, c *cli.Context, cfg *config.Config, logger zerolog.Logger) error {
	origin := zones.Zoo.WithRadius(cfg.ZoneRadiusMeters)
	destination := zones.Toompark.WithRadius(cfg.ZoneRadiusMeters)

	feed := source.NewGPS(cfg.GPSURL, cfg.GPSTransportType, cfg.TargetLine, origin, destination,
		cfg.Location, cfg.FetchTimeout,
		source.WithLogger(logger.With().Str("source", "gps").Logger()),
	)
	vehicles, err := feed.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("gps snapshot: %w", err)
	}

	out := c.String("out")
	if out == "" {
		out = report.ArtifactPath(cfg.ResultsDir, "bus"+cfg.TargetLine+"_snapshot", "csv", time.Now().In(cfg.Location))
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	if err := report.SaveCSV(out, vehicles); err != nil {
		return err
	}

	atOrigin, atDestination := 0, 0
	for _, v := range vehicles {
		if v.AtOrigin {
			atOrigin++
		}
		if v.AtDestination {
			atDestination++
		}
	}
	logger.Info().
		Str("line", cfg.TargetLine).
		Int("vehicles", len(vehicles)).
		Int("at_origin", atOrigin).
		Int("at_destination", atDestination).
		Str("csv", out).
		Msg("saved gps snapshot")
	return nil
}
