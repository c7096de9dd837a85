package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Field positions in the stop-departures feed: "bus,<line>,<seconds since midnight>,...".
const (
	transportIdx = 0
	lineIdx      = 1
	timeSecsIdx  = 2
)

// SIRI reads the Tallinn stop-departures CSV, one request per stop.
type SIRI struct {
	base
	urlTemplate string
	line        string
}

// NewSIRI builds a source for urlTemplate, which must contain "{stop_id}".
func NewSIRI(urlTemplate, line string, loc *time.Location, timeout time.Duration, opts ...Option) *SIRI {
	return &SIRI{
		base:        newBase(loc, timeout, opts),
		urlTemplate: urlTemplate,
		line:        line,
	}
}

// FetchFutureArrivals returns today's remaining bus times for the configured
// line at stopID, ascending.
func (s *SIRI) FetchFutureArrivals(ctx context.Context, stopID string) []time.Time {
	url := strings.ReplaceAll(s.urlTemplate, "{stop_id}", stopID)
	body, err := s.get(ctx, url, stopID)
	if err != nil {
		return nil
	}

	now := s.now().In(s.loc)
	out, skipped := parseStopDepartures(body, s.line, now)
	s.log.Debug().
		Str("stop", stopID).
		Int("arrivals", len(out)).
		Int("skipped", skipped).
		Msg("fetched stop departures")
	return out
}

// parseStopDepartures keeps bus rows for line that fall strictly after now.
// skipped counts rows for the line whose time field could not be parsed.
func parseStopDepartures(body []byte, line string, now time.Time) ([]time.Time, int) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	day := midnight(now)
	var out []time.Time
	skipped := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			break
		}
		if len(rec) <= timeSecsIdx {
			continue
		}
		if rec[transportIdx] != "bus" || rec[lineIdx] != line {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(rec[timeSecsIdx]))
		if err != nil {
			skipped++
			continue
		}
		t := day.Add(time.Duration(secs) * time.Second)
		if t.After(now) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, time.Time.Compare)
	return out, skipped
}
