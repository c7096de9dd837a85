package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TZ", "UTC")
	chdir(t, t.TempDir()) // keep a developer .env out of the test

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "siri", cfg.ScheduleSource)
	assert.Equal(t, "822", cfg.OriginStopID)
	assert.Equal(t, "1769", cfg.DestinationStopID)
	assert.Equal(t, 5*time.Minute, cfg.WalkToStop)
	assert.Equal(t, 4*time.Minute, cfg.WalkToDestination)
	assert.Equal(t, 200_000, cfg.Iterations)
	assert.Equal(t, 30*time.Second, cfg.StepInterval)
	assert.Equal(t, 300*time.Second, cfg.RefreshInterval)
	assert.Equal(t, Clock{Hour: 20, Minute: 15}, cfg.StartTime)
	assert.Equal(t, Clock{Hour: 21, Minute: 15}, cfg.MeetingTime)
	assert.Equal(t, 11*time.Minute, cfg.MinTravel())
	assert.True(t, cfg.RealtimePacing)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero iterations", "MONTE_CARLO_ITERATIONS", "0"},
		{"negative iterations", "MONTE_CARLO_ITERATIONS", "-5"},
		{"malformed start", "START_TIME", "8pm"},
		{"malformed meeting", "MEETING_TIME", "25:99"},
		{"zero step", "STEP_INTERVAL_SEC", "0"},
		{"unknown source", "SCHEDULE_SOURCE", "carrier-pigeon"},
		{"negative walk", "WALK_TO_STOP_SEC", "-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoad_GTFSRTNeedsURL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULE_SOURCE", "gtfsrt")
	t.Setenv("GTFSRT_URL", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoad_GTFSRTRouteID(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULE_SOURCE", "gtfsrt")
	t.Setenv("GTFSRT_URL", "https://example.test/tripupdates.pb")
	t.Setenv("TARGET_LINE", "8")
	t.Setenv("GTFSRT_ROUTE_ID", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8", cfg.GTFSRTRouteID)

	t.Setenv("GTFSRT_ROUTE_ID", "35_8_1")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "35_8_1", cfg.GTFSRTRouteID)
	assert.Equal(t, "8", cfg.TargetLine)
}

func TestLoad_GTFSDBNeedsDatabase(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SCHEDULE_SOURCE", "gtfsdb")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrInvalid)

	t.Setenv("DATABASE_URL", "postgres://sim@localhost:5432/postgres")
	t.Setenv("CITY", "tallinn")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gtfsdb", cfg.ScheduleSource)
	assert.Equal(t, "tallinn", cfg.City)
}

func TestValidate(t *testing.T) {
	cfg := &Config{Iterations: 10, StepInterval: time.Second, Workers: 1}
	require.NoError(t, cfg.Validate())

	cfg.Iterations = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("15:31")
	require.NoError(t, err)
	assert.Equal(t, Clock{Hour: 15, Minute: 31}, c)

	c, err = ParseClock("07:05:09")
	require.NoError(t, err)
	assert.Equal(t, "07:05:09", c.String())

	_, err = ParseClock("7 o'clock")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestClockNext(t *testing.T) {
	loc := time.UTC
	c := Clock{Hour: 20, Minute: 15}

	before := time.Date(2025, 6, 2, 19, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 2, 20, 15, 0, 0, loc), c.Next(before, loc))

	after := time.Date(2025, 6, 2, 21, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 6, 3, 20, 15, 0, 0, loc), c.Next(after, loc))
}

func TestParamsAndWindow(t *testing.T) {
	cfg := &Config{
		Location:          time.UTC,
		StartTime:         Clock{Hour: 8},
		MeetingTime:       Clock{Hour: 9, Minute: 30},
		WalkToStop:        time.Minute,
		WalkToDestination: 2 * time.Minute,
		WalkVariability:   3 * time.Second,
	}
	day := time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC)

	start, end := cfg.Window(day)
	assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC), end)

	p := cfg.Params(day)
	assert.Equal(t, end, p.Deadline)
	assert.Equal(t, time.Minute, p.WalkToStop)
	assert.Equal(t, 3*time.Second, p.WalkVariability)
}

func TestWindow_MeetingAfterMidnight(t *testing.T) {
	cfg := &Config{
		Location:    time.UTC,
		StartTime:   Clock{Hour: 23, Minute: 30},
		MeetingTime: Clock{Minute: 30},
	}
	day := time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)

	start, end := cfg.Window(day)
	assert.Equal(t, time.Date(2025, 6, 2, 23, 30, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 3, 0, 30, 0, 0, time.UTC), end)
	assert.Equal(t, end, cfg.Params(day).Deadline)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
