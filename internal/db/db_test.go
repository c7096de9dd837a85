package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lateness-sim/internal/sim"
)

func TestParseDaySeconds(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"20:15:00", 72900, true},
		{" 08:05 ", 29100, true},
		{"25:10:30", 90630, true},
		{"", 0, false},
		{"garbage", 0, false},
		{"10:75:00", 0, false},
		{"-1:00:00", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := parseDaySeconds(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithDBName(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		db   string
		want string
	}{
		{"replaces path", "postgres://u:p@localhost:5432/postgres?sslmode=disable", "gtfs_tallinn_20250601", "postgres://u:p@localhost:5432/gtfs_tallinn_20250601?sslmode=disable"},
		{"postgresql scheme", "postgresql://localhost/a", "/b", "postgresql://localhost/b"},
		{"missing scheme", "u@localhost:5432/a", "b", "postgres://u@localhost:5432/b"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := WithDBName(tc.dsn, tc.db)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := WithDBName("", "x")
	assert.Error(t, err)
	_, err = WithDBName("mysql://localhost/a", "b")
	assert.Error(t, err)
}

// The curve sink needs a real PostgreSQL; point LATENESS_TEST_DATABASE_URL at
// a disposable database to run it.
func TestSaveCurve_RoundTrip(t *testing.T) {
	dsn := os.Getenv("LATENESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LATENESS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	sqlDB, err := Open(dsn)
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, Ping(ctx, sqlDB))
	require.NoError(t, Migrate(ctx, sqlDB))

	start := time.Date(2025, 6, 2, 20, 15, 0, 0, time.UTC)
	curve := sim.Curve{
		{Departure: start, Probability: 0.1},
		{Departure: start.Add(30 * time.Second), Probability: 0.25},
	}
	id, err := SaveCurve(ctx, sqlDB, Run{
		StartedAt:       start,
		Line:            "8",
		OriginStop:      "822",
		DestinationStop: "1769",
		Deadline:        start.Add(time.Hour),
		Iterations:      1000,
		Seed:            7,
	}, curve)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = sqlDB.ExecContext(ctx, `DELETE FROM lateness_runs WHERE id = $1`, id)
	})

	got, err := LoadCurve(ctx, sqlDB, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range curve {
		assert.True(t, curve[i].Departure.Equal(got[i].Departure))
		assert.Equal(t, curve[i].Probability, got[i].Probability)
	}
}
