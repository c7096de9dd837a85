package sim

import (
	"errors"
	"math/rand"
	"time"

	"github.com/sourcegraph/conc/pool"

	"lateness-sim/internal/schedule"
)

// ErrInvalidIterations is returned when a Monte Carlo run is asked for fewer than one trial.
var ErrInvalidIterations = errors.New("monte carlo iterations must be >= 1")

// Estimator turns a departure time and the current trip set into P(late).
type Estimator interface {
	Estimate(r *rand.Rand, departure time.Time, trips schedule.TripSet) (float64, error)
}

// EstimateLatenessProbability samples the journey iterations times and
// returns the exact fraction of late samples. Work is split across up to
// workers goroutines; every chunk owns a generator seeded from r before
// fan-out, so the result only depends on r's state and the worker count.
func EstimateLatenessProbability(r *rand.Rand, departure time.Time, trips schedule.TripSet, p Params, iterations, workers int) (float64, error) {
	if iterations < 1 {
		return 0, ErrInvalidIterations
	}
	if workers <= 1 || iterations < workers {
		return float64(countLate(r, departure, trips, p, iterations)) / float64(iterations), nil
	}

	chunk := iterations / workers
	rest := iterations % workers
	pl := pool.NewWithResults[int]().WithMaxGoroutines(workers)
	for w := 0; w < workers; w++ {
		n := chunk
		if w < rest {
			n++
		}
		wr := rand.New(rand.NewSource(r.Int63()))
		pl.Go(func() int {
			return countLate(wr, departure, trips, p, n)
		})
	}

	late := 0
	for _, k := range pl.Wait() {
		late += k
	}
	return float64(late) / float64(iterations), nil
}

func countLate(r Rand, departure time.Time, trips schedule.TripSet, p Params, n int) int {
	late := 0
	for i := 0; i < n; i++ {
		if Sample(r, departure, trips, p).Late() {
			late++
		}
	}
	return late
}

// MonteCarlo is the Estimator used by the sweep.
type MonteCarlo struct {
	params     Params
	iterations int
	workers    int
}

// NewMonteCarlo validates the iteration count up front so a bad
// configuration fails before the sweep starts.
func NewMonteCarlo(p Params, iterations, workers int) (*MonteCarlo, error) {
	if iterations < 1 {
		return nil, ErrInvalidIterations
	}
	return &MonteCarlo{params: p, iterations: iterations, workers: workers}, nil
}

func (m *MonteCarlo) Estimate(r *rand.Rand, departure time.Time, trips schedule.TripSet) (float64, error) {
	return EstimateLatenessProbability(r, departure, trips, m.params, m.iterations, m.workers)
}

// Iterations is the fixed number of trials per estimate.
func (m *MonteCarlo) Iterations() int { return m.iterations }
