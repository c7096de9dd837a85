package schedule

import "time"

// ScheduledTrip is one bus's known timing between the origin and destination stops.
type ScheduledTrip struct {
	Departure time.Time // vehicle leaves the origin stop
	Arrival   time.Time // vehicle reaches the destination stop
}

// Span is the scheduled ride duration.
func (t ScheduledTrip) Span() time.Duration {
	return t.Arrival.Sub(t.Departure)
}

// TripSet is ascending by Departure. A set is never mutated after it is built;
// refreshing the schedule produces a new one.
type TripSet []ScheduledTrip

// Last returns the final trip of the set. ok is false for an empty set.
func (s TripSet) Last() (ScheduledTrip, bool) {
	if len(s) == 0 {
		return ScheduledTrip{}, false
	}
	return s[len(s)-1], true
}
