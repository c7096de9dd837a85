package source

import (
	"context"
	"database/sql"
	"time"

	"lateness-sim/internal/db"
)

// GTFSDB reads timetabled, not predicted, stop times from an imported
// static GTFS database.
type GTFSDB struct {
	base
	db      *sql.DB
	line    string
	timeout time.Duration
}

// NewGTFSDB bounds every lookup by timeout; timeout <= 0 leaves only the
// caller's context in charge.
func NewGTFSDB(sqlDB *sql.DB, line string, loc *time.Location, timeout time.Duration, opts ...Option) *GTFSDB {
	return &GTFSDB{
		base:    newBase(loc, timeout, opts),
		db:      sqlDB,
		line:    line,
		timeout: timeout,
	}
}

func (g *GTFSDB) FetchFutureArrivals(ctx context.Context, stopID string) []time.Time {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	out, err := db.FetchStopTimes(ctx, g.db, stopID, g.line, g.now().In(g.loc))
	if g.metrics != nil {
		g.metrics.FetchObserve(time.Since(start))
	}
	if err != nil {
		g.fail(stopID, err)
		return nil
	}
	g.log.Debug().Str("stop", stopID).Int("arrivals", len(out)).Msg("loaded planned stop times")
	return out
}
