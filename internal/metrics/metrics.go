package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Collector struct {
	reg *prometheus.Registry
	log zerolog.Logger

	SweepSteps prometheus.Counter
	Refreshes  *prometheus.CounterVec // reason label: initial|empty|interval|stale

	FetchFailures *prometheus.CounterVec // stop label
	FetchDuration prometheus.Histogram
	TripSetSize   prometheus.Gauge

	RawProbability      prometheus.Gauge
	LatenessProbability prometheus.Gauge
	EstimateDuration    prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	Iterations      prometheus.Gauge
	StepInterval    prometheus.Gauge // seconds
	RefreshInterval prometheus.Gauge // seconds
}

func NewCollector(iterations int, stepInterval, refreshInterval time.Duration, logger zerolog.Logger) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		log: logger,
		SweepSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lateness_sweep_steps_total",
			Help: "Total departure times evaluated.",
		}),
		Refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lateness_schedule_refreshes_total",
			Help: "Schedule refresh attempts by reason.",
		}, []string{"reason"}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lateness_fetch_failures_total",
			Help: "Schedule fetches that returned no data because of an error.",
		}, []string{"stop"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lateness_fetch_duration_seconds",
			Help:    "Duration of a schedule fetch for one stop.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		TripSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_trip_set_size",
			Help: "Number of matched trips currently known.",
		}),
		RawProbability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_raw_probability",
			Help: "Monte Carlo estimate at the latest step, before clamping.",
		}),
		LatenessProbability: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_probability",
			Help: "Emitted probability of being late at the latest step.",
		}),
		EstimateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lateness_estimate_duration_seconds",
			Help:    "Duration of one Monte Carlo estimate.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lateness_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lateness_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lateness_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		Iterations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_monte_carlo_iterations",
			Help: "Monte Carlo iterations per estimate.",
		}),
		StepInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_step_interval_seconds",
			Help: "Sweep step in seconds.",
		}),
		RefreshInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lateness_refresh_interval_seconds",
			Help: "Schedule refresh interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.SweepSteps, c.Refreshes,
		c.FetchFailures, c.FetchDuration, c.TripSetSize,
		c.RawProbability, c.LatenessProbability, c.EstimateDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.Iterations, c.StepInterval, c.RefreshInterval,
	)

	c.Iterations.Set(float64(iterations))
	c.StepInterval.Set(stepInterval.Seconds())
	c.RefreshInterval.Set(refreshInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.log.Error().Err(err).Msg("metrics server error")
		}
	}()
	c.log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
