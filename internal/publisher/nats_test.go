package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lateness-sim/internal/sim"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		prefix, run, want string
	}{
		{"lateness", "20250602_201500", "lateness.20250602_201500"},
		{"lateness", "a.b c", "lateness.a_b_c"},
		{" rita ", "*", "rita._"},
		{"", "", "_._"},
		{"x>", "run/1", "x_.run_1"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Subject(tc.prefix, tc.run))
	}
}

func TestNewPointMessage(t *testing.T) {
	dep := time.Date(2025, 6, 2, 20, 15, 0, 0, time.UTC)
	step := sim.Step{
		Index: 3,
		Sample: sim.Result{
			BusDeparture: dep.Add(10 * time.Minute),
			Arrival:      dep.Add(26 * time.Minute),
			Lateness:     12.5,
			Branch:       sim.MissedLast,
		},
		Raw:      0.4,
		Point:    sim.Point{Departure: dep, Probability: 0.5},
		TripSize: 7,
	}

	b, err := json.Marshal(NewPointMessage(step))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "2025-06-02T20:15:00Z", got["departure"])
	assert.Equal(t, 0.5, got["pLate"])
	assert.Equal(t, 0.4, got["raw"])
	assert.Equal(t, "missed_last", got["branch"])
	assert.Equal(t, 7.0, got["tripSetSize"])
}
