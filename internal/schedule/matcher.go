package schedule

import "time"

// MinTravel is the shortest plausible ride between the two stops.
func MinTravel(base, variability time.Duration) time.Duration {
	return base - variability
}

// Match pairs origin departures with destination arrivals using a two-cursor
// merge. An arrival closer than minTravel to the current departure belongs to
// an earlier vehicle and is skipped; departures left without an arrival are
// dropped. Both inputs must already be sorted ascending.
func Match(departures, arrivals []time.Time, minTravel time.Duration) TripSet {
	trips := make(TripSet, 0, min(len(departures), len(arrivals)))
	i, j := 0, 0
	for i < len(departures) && j < len(arrivals) {
		dep := departures[i]
		arr := arrivals[j]
		if arr.Sub(dep) >= minTravel {
			trips = append(trips, ScheduledTrip{Departure: dep, Arrival: arr})
			i++
			j++
			continue
		}
		j++
	}
	return trips
}
