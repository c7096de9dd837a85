// Package source fetches upcoming vehicle-at-stop times from live feeds.
// Every source reports failure as an empty result; the sweep decides what to
// do with missing data.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Metrics receives fetch outcomes. A nil Metrics is ignored.
type Metrics interface {
	FetchFailed(stopID string)
	FetchObserve(d time.Duration)
}

// Option configures the plumbing shared by every source.
type Option func(*base)

// WithClock overrides the wall clock used to decide what is "future".
func WithClock(now func() time.Time) Option { return func(h *base) { h.now = now } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(h *base) { h.log = l } }

// WithMetrics records fetch durations and failures.
func WithMetrics(m Metrics) Option { return func(h *base) { h.metrics = m } }

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option { return func(h *base) { h.client = c } }

type base struct {
	client  *http.Client
	loc     *time.Location
	now     func() time.Time
	log     zerolog.Logger
	metrics Metrics
}

func newBase(loc *time.Location, timeout time.Duration, opts []Option) base {
	if loc == nil {
		loc = time.Local
	}
	h := base{
		client: &http.Client{Timeout: timeout},
		loc:    loc,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, o := range opts {
		o(&h)
	}
	return h
}

// get performs a single GET and returns the body. The error is already
// logged and counted; callers only need to return an empty result.
func (h *base) get(ctx context.Context, url, stopID string) ([]byte, error) {
	start := time.Now()
	body, err := h.do(ctx, url)
	if h.metrics != nil {
		h.metrics.FetchObserve(time.Since(start))
	}
	if err != nil {
		h.fail(stopID, err)
		return nil, err
	}
	return body, nil
}

func (h *base) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "lateness-sim")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func (h *base) fail(stopID string, err error) {
	h.log.Warn().Err(err).Str("stop", stopID).Msg("schedule fetch failed")
	if h.metrics != nil {
		h.metrics.FetchFailed(stopID)
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
