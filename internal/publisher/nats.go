package publisher

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"lateness-sim/internal/sim"
)

type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	metrics PublisherMetrics
	log     zerolog.Logger
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

// NewNATSPublisher connects to url. Every point of the run is published on
// <prefix>.<runID>.
func NewNATSPublisher(url, prefix, runID string, m PublisherMetrics, logger zerolog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("lateness-sim"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Warn().Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			logger.Info().Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			logger.Info().Msg("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, subject: Subject(prefix, runID), metrics: m, log: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

// PointMessage is the payload for one sweep step.
type PointMessage struct {
	Index       int       `json:"index"`
	Departure   time.Time `json:"departure"`
	Probability float64   `json:"pLate"`
	Raw         float64   `json:"raw"`
	Branch      string    `json:"branch"`
	BusDep      time.Time `json:"busDeparture"`
	Arrival     time.Time `json:"arrival"`
	LatenessSec float64   `json:"latenessSec"`
	TripSetSize int       `json:"tripSetSize"`
}

// NewPointMessage flattens a sweep step.
func NewPointMessage(s sim.Step) PointMessage {
	return PointMessage{
		Index:       s.Index,
		Departure:   s.Point.Departure,
		Probability: s.Point.Probability,
		Raw:         s.Raw,
		Branch:      s.Sample.Branch.String(),
		BusDep:      s.Sample.BusDeparture,
		Arrival:     s.Sample.Arrival,
		LatenessSec: s.Sample.Lateness,
		TripSetSize: s.TripSize,
	}
}

func (p *NATSPublisher) PublishPoint(msg PointMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.nc.Publish(p.subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

// ObserveStep publishes the step. Failures are logged, never fatal to the sweep.
func (p *NATSPublisher) ObserveStep(s sim.Step) {
	if err := p.PublishPoint(NewPointMessage(s)); err != nil {
		p.log.Warn().Err(err).Str("subject", p.subject).Int("index", s.Index).Msg("nats publish failed")
		return
	}
	p.log.Debug().Str("subject", p.subject).Int("index", s.Index).Msg("nats published")
}

// Subject joins prefix and runID into a valid NATS subject.
func Subject(prefix, runID string) string {
	return fmt.Sprintf("%s.%s", subjectToken(prefix), subjectToken(runID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
