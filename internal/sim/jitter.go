package sim

import (
	"math"
	"time"
)

// Rand is the random source consumed by the sampler. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Triangular draws a perturbation from a symmetric triangular distribution
// with mode 0 and support [-bound, +bound]. Mass concentrates around
// "on schedule" while still producing tail deviations. A non-positive bound
// yields 0 and leaves r untouched.
func Triangular(r Rand, bound time.Duration) time.Duration {
	if bound <= 0 {
		return 0
	}
	b := bound.Seconds()
	u := r.Float64()
	var x float64
	// inverse CDF of Tri(-b, 0, b); F(0) = 0.5
	if u < 0.5 {
		x = -b + math.Sqrt(2*u)*b
	} else {
		x = b - math.Sqrt(2*(1-u))*b
	}
	return seconds(x)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
