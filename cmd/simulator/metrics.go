package main

import (
	"time"

	"lateness-sim/internal/metrics"
	"lateness-sim/internal/publisher"
)

type pubMetrics struct{ c *metrics.Collector }

func (m *pubMetrics) NATSPublishedInc()  { m.c.NATSPublished.Inc() }
func (m *pubMetrics) NATSPublishErrInc() { m.c.NATSPublishErrs.Inc() }
func (m *pubMetrics) PublishObserve(d time.Duration) {
	m.c.PublishDuration.Observe(d.Seconds())
}
func (m *pubMetrics) NATSSetConnected(connected bool) {
	if connected {
		m.c.NATSConnected.Set(1)
	} else {
		m.c.NATSConnected.Set(0)
	}
}

// wrapPublisherMetrics returns a nil interface when metrics are disabled.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type sourceMetrics struct{ c *metrics.Collector }

func (m *sourceMetrics) FetchFailed(stopID string) { m.c.FetchFailures.WithLabelValues(stopID).Inc() }
func (m *sourceMetrics) FetchObserve(d time.Duration) {
	m.c.FetchDuration.Observe(d.Seconds())
}
