package sim

import (
	"time"

	"lateness-sim/internal/schedule"
)

// Params is the fixed journey model shared by every sample of a run.
type Params struct {
	Deadline          time.Time     // appointment start
	WalkToStop        time.Duration // origin -> first stop
	WalkToDestination time.Duration // last stop -> appointment
	WalkVariability   time.Duration // bound for both walking legs
	DepartureJitter   time.Duration // bound for a bus leaving early/late
	RideVariability   time.Duration // bound for the ride itself
}

// Branch records how the bus for a sample was chosen.
type Branch int

const (
	// Caught means a scheduled bus left at or after the traveler reached the stop.
	Caught Branch = iota
	// MissedLast means every known bus had left; the last one is used to force lateness.
	MissedLast
	// NoTrips means the trip set was empty; the traveler "boards" a zero-length ride at the stop.
	NoTrips
)

func (b Branch) String() string {
	switch b {
	case Caught:
		return "caught"
	case MissedLast:
		return "missed_last"
	case NoTrips:
		return "no_trips"
	default:
		return "unknown"
	}
}

// Result is one realized journey.
type Result struct {
	Departure    time.Time
	WalkEnd      time.Time
	WalkDuration time.Duration
	BusDeparture time.Time
	Wait         time.Duration
	RideDuration time.Duration
	BusArrival   time.Time
	Arrival      time.Time
	Lateness     float64 // seconds past the deadline, never negative
	Branch       Branch
}

// Late reports whether the sample counts as late. A journey with no bus to
// board never reaches the appointment, so it is late whatever its arithmetic
// arrival says.
func (r Result) Late() bool { return r.Lateness > 0 || r.Branch == NoTrips }

// Stale reports whether the chosen bus left before the traveler reached the
// stop, which means every known trip is already in the past.
func (r Result) Stale() bool { return r.BusDeparture.Before(r.WalkEnd) }

// FinalWalk is the duration of the last walking leg.
func (r Result) FinalWalk() time.Duration { return r.Arrival.Sub(r.BusArrival) }

// Sample draws one realization of the journey leaving at departure. Four
// independent jitters are drawn from r: the first walk, the chosen bus's
// departure (one per scanned trip), the ride and the final walk.
func Sample(r Rand, departure time.Time, trips schedule.TripSet, p Params) Result {
	walk := p.WalkToStop + Triangular(r, p.WalkVariability)
	walkEnd := departure.Add(walk)

	busDep, ride, branch := selectBus(r, walkEnd, trips, p.DepartureJitter)
	wait := max(busDep.Sub(walkEnd), 0)

	ride += Triangular(r, p.RideVariability)
	busArr := busDep.Add(ride)

	arrival := busArr.Add(p.WalkToDestination + Triangular(r, p.WalkVariability))
	lateness := max(arrival.Sub(p.Deadline), 0)

	return Result{
		Departure:    departure,
		WalkEnd:      walkEnd,
		WalkDuration: walk,
		BusDeparture: busDep,
		Wait:         wait,
		RideDuration: ride,
		BusArrival:   busArr,
		Arrival:      arrival,
		Lateness:     lateness.Seconds(),
		Branch:       branch,
	}
}

// selectBus returns the actual departure of the first trip the traveler can
// still board, along with its scheduled span. When nothing qualifies the last
// trip is used with a fresh jitter; with no trips at all the traveler leaves
// the stop immediately on a zero-length ride.
func selectBus(r Rand, walkEnd time.Time, trips schedule.TripSet, jitter time.Duration) (time.Time, time.Duration, Branch) {
	last, ok := trips.Last()
	if !ok {
		return walkEnd, 0, NoTrips
	}
	for _, trip := range trips {
		actual := trip.Departure.Add(Triangular(r, jitter))
		if !actual.Before(walkEnd) {
			return actual, trip.Span(), Caught
		}
	}
	return last.Departure.Add(Triangular(r, jitter)), last.Span(), MissedLast
}
