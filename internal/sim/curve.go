package sim

import "time"

// Point is one step of the sweep.
type Point struct {
	Departure   time.Time
	Probability float64
}

// Curve is ordered by Departure. Probabilities never decrease along it.
type Curve []Point

// Monotonic reports whether every probability is at least the previous one.
func (c Curve) Monotonic() bool {
	for i := 1; i < len(c); i++ {
		if c[i].Probability < c[i-1].Probability {
			return false
		}
	}
	return true
}

// Step is what the sweep reports to an Observer after each departure time.
type Step struct {
	Index    int
	Sample   Result
	Raw      float64 // estimator output before clamping
	Point    Point
	TripSize int
}

// Observer receives each step as soon as it is computed.
type Observer interface {
	ObserveStep(Step)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Step)

func (f ObserverFunc) ObserveStep(s Step) { f(s) }
