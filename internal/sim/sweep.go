package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	mmetrics "lateness-sim/internal/metrics"
	"lateness-sim/internal/schedule"
)

// Source returns upcoming vehicle-at-stop times, ascending. Failures are
// reported as an empty result.
type Source interface {
	FetchFutureArrivals(ctx context.Context, stopID string) []time.Time
}

// State of a sweep.
type State int

const (
	AwaitingFirstData State = iota
	Stepping
	Done
)

func (s State) String() string {
	switch s {
	case AwaitingFirstData:
		return "awaiting_first_data"
	case Stepping:
		return "stepping"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// SweepConfig fixes the departure window and data refresh behaviour.
type SweepConfig struct {
	Start           time.Time
	End             time.Time
	Step            time.Duration
	RefreshInterval time.Duration
	OriginStop      string
	DestinationStop string
	MinTravel       time.Duration
}

// Sweep advances the departure time across a window, estimating P(late) at
// every step and keeping the resulting curve non-decreasing.
type Sweep struct {
	cfg       SweepConfig
	params    Params
	source    Source
	estimator Estimator
	rng       *rand.Rand
	pacer     Pacer
	observer  Observer
	metrics   *mmetrics.Collector
	log       zerolog.Logger

	state       State
	current     time.Time
	trips       schedule.TripSet
	lastRefresh time.Time
	curve       Curve
}

// SweepOption customises a Sweep.
type SweepOption func(*Sweep)

// WithPacer sets how the sweep waits between steps. The default does not wait.
func WithPacer(p Pacer) SweepOption { return func(s *Sweep) { s.pacer = p } }

// WithObserver registers a per-step callback.
func WithObserver(o Observer) SweepOption { return func(s *Sweep) { s.observer = o } }

// WithMetrics attaches a metrics collector.
func WithMetrics(m *mmetrics.Collector) SweepOption { return func(s *Sweep) { s.metrics = m } }

// WithLogger sets the logger for step events.
func WithLogger(l zerolog.Logger) SweepOption { return func(s *Sweep) { s.log = l } }

func NewSweep(cfg SweepConfig, params Params, source Source, estimator Estimator, rng *rand.Rand, opts ...SweepOption) (*Sweep, error) {
	if cfg.Step <= 0 {
		return nil, fmt.Errorf("sweep step must be positive, got %s", cfg.Step)
	}
	if cfg.End.Before(cfg.Start) {
		return nil, fmt.Errorf("sweep end %s is before start %s", cfg.End.Format(time.RFC3339), cfg.Start.Format(time.RFC3339))
	}
	s := &Sweep{
		cfg:       cfg,
		params:    params,
		source:    source,
		estimator: estimator,
		rng:       rng,
		pacer:     NoPacing{},
		log:       zerolog.Nop(),
		state:     AwaitingFirstData,
		current:   cfg.Start,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// State returns the current state of the sweep.
func (s *Sweep) State() State { return s.state }

// Run executes the sweep. If ctx is cancelled the curve built so far is
// returned together with the context error.
func (s *Sweep) Run(ctx context.Context) (Curve, error) {
	s.log.Info().
		Time("start", s.cfg.Start).
		Time("end", s.cfg.End).
		Dur("step", s.cfg.Step).
		Msg("sweep started")

	for s.state != Done {
		if err := s.step(ctx); err != nil {
			return s.curve, err
		}
	}

	s.log.Info().Int("steps", len(s.curve)).Msg("sweep finished")
	return s.curve, nil
}

func (s *Sweep) step(ctx context.Context) error {
	switch {
	case s.state == AwaitingFirstData:
		s.refresh(ctx, "initial")
		s.state = Stepping
	case len(s.trips) == 0:
		s.refresh(ctx, "empty")
	case s.current.Sub(s.lastRefresh) >= s.cfg.RefreshInterval:
		s.refresh(ctx, "interval")
	}

	sample := Sample(s.rng, s.current, s.trips, s.params)
	if sample.Stale() {
		s.log.Debug().
			Time("bus_dep", sample.BusDeparture).
			Time("walk_end", sample.WalkEnd).
			Msg("every known bus has left, forcing refresh")
		s.refresh(ctx, "stale")
		sample = Sample(s.rng, s.current, s.trips, s.params)
	}
	s.logSample(sample)

	started := time.Now()
	raw, err := s.estimator.Estimate(s.rng, s.current, s.trips)
	if err != nil {
		return fmt.Errorf("estimate at %s: %w", s.current.Format(time.TimeOnly), err)
	}
	if s.metrics != nil {
		s.metrics.EstimateDuration.Observe(time.Since(started).Seconds())
	}

	p := raw
	if n := len(s.curve); n > 0 && s.curve[n-1].Probability > p {
		p = s.curve[n-1].Probability
	}
	pt := Point{Departure: s.current, Probability: p}
	s.curve = append(s.curve, pt)

	s.log.Info().
		Time("departure", s.current).
		Float64("raw", raw).
		Float64("p_late", p).
		Msg("step estimated")
	if s.metrics != nil {
		s.metrics.SweepSteps.Inc()
		s.metrics.RawProbability.Set(raw)
		s.metrics.LatenessProbability.Set(p)
	}
	if s.observer != nil {
		s.observer.ObserveStep(Step{
			Index:    len(s.curve) - 1,
			Sample:   sample,
			Raw:      raw,
			Point:    pt,
			TripSize: len(s.trips),
		})
	}

	next := s.current.Add(s.cfg.Step)
	if next.After(s.cfg.End) {
		s.current = next
		s.state = Done
		return nil
	}
	if err := s.pacer.Wait(ctx, next); err != nil {
		return err
	}
	s.current = next
	return nil
}

// refresh fetches both stops and rebuilds the trip set. A fetch that yields
// no trips keeps the previous set.
func (s *Sweep) refresh(ctx context.Context, reason string) {
	deps := s.source.FetchFutureArrivals(ctx, s.cfg.OriginStop)
	arrs := s.source.FetchFutureArrivals(ctx, s.cfg.DestinationStop)
	trips := schedule.Match(deps, arrs, s.cfg.MinTravel)
	s.lastRefresh = s.current

	if s.metrics != nil {
		s.metrics.Refreshes.WithLabelValues(reason).Inc()
	}
	if len(trips) == 0 {
		s.log.Warn().
			Str("reason", reason).
			Int("departures", len(deps)).
			Int("arrivals", len(arrs)).
			Msg("refresh produced no trips, keeping previous schedule")
		return
	}
	s.trips = trips
	if s.metrics != nil {
		s.metrics.TripSetSize.Set(float64(len(trips)))
	}
	s.log.Info().
		Str("reason", reason).
		Int("trips", len(trips)).
		Time("first", trips[0].Departure).
		Msg("refreshed bus schedule")
}

func (s *Sweep) logSample(r Result) {
	s.log.Info().
		Time("departure", r.Departure).
		Dur("walk", r.WalkDuration).
		Time("at_stop", r.WalkEnd).
		Dur("wait", r.Wait).
		Time("bus_dep", r.BusDeparture).
		Dur("ride", r.RideDuration).
		Time("bus_arr", r.BusArrival).
		Dur("final_walk", r.FinalWalk()).
		Time("arrival", r.Arrival).
		Float64("lateness_s", r.Lateness).
		Stringer("branch", r.Branch).
		Msg("sample path")
}

// Pacer blocks between steps.
type Pacer interface {
	Wait(ctx context.Context, until time.Time) error
}

// NoPacing returns immediately; used offline and in tests.
type NoPacing struct{}

func (NoPacing) Wait(ctx context.Context, _ time.Time) error { return ctx.Err() }

// RealtimePacer sleeps until the wall clock reaches the next departure time
// so the sweep tracks live schedule data.
type RealtimePacer struct {
	Now func() time.Time
}

func (p RealtimePacer) Wait(ctx context.Context, until time.Time) error {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	d := until.Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
