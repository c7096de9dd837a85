package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopTimesAfter_PreviousDayRollsPastMidnight(t *testing.T) {
	today := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	now := today.Add(10 * time.Minute)

	got := stopTimesAfter(now,
		serviceDay{date: today, times: []string{"06:00:00", "00:05:00", "bad", "24:30:00"}},
		serviceDay{date: today.AddDate(0, 0, -1), times: []string{"25:10:00", "09:00:00", "24:05:00"}},
	)

	assert.Equal(t, []time.Time{
		today.Add(time.Hour + 10*time.Minute),    // yesterday 25:10
		today.Add(6 * time.Hour),                 // today 06:00
		today.Add(24*time.Hour + 30*time.Minute), // today 24:30
	}, got)
}

func TestStopTimesAfter_Empty(t *testing.T) {
	assert.Empty(t, stopTimesAfter(time.Now()))
	assert.Empty(t, stopTimesAfter(time.Now(), serviceDay{date: time.Now()}))
}

const scheduleFixture = `
CREATE TABLE calendar (
  service_id TEXT, monday INT, tuesday INT, wednesday INT, thursday INT,
  friday INT, saturday INT, sunday INT, start_date DATE, end_date DATE);
CREATE TABLE calendar_dates (service_id TEXT, date DATE, exception_type INT);
CREATE TABLE routes (route_id TEXT, route_short_name TEXT);
CREATE TABLE trips (trip_id TEXT, route_id TEXT, service_id TEXT);
CREATE TABLE stop_times (trip_id TEXT, stop_id TEXT, arrival_time TEXT, departure_time TEXT);

INSERT INTO calendar VALUES
  ('WEEKDAY', 1, 1, 1, 1, 1, 0, 0, '2025-01-01', '2025-12-31'),
  ('REMOVED', 1, 1, 1, 1, 1, 0, 0, '2025-01-01', '2025-12-31'),
  ('SUNDAY',  0, 0, 0, 0, 0, 0, 1, '2025-01-01', '2025-12-31');
INSERT INTO calendar_dates VALUES
  ('REMOVED', '2025-06-03', 2),
  ('ADDED',   '2025-06-03', 1);
INSERT INTO routes VALUES ('R8', '8'), ('R17', '17');
INSERT INTO trips VALUES
  ('t1', 'R8',  'WEEKDAY'),
  ('t2', 'R8',  'WEEKDAY'),
  ('t3', 'R8',  'REMOVED'),
  ('t4', 'R8',  'ADDED'),
  ('t5', 'R17', 'WEEKDAY'),
  ('t6', 'R8',  'SUNDAY');
INSERT INTO stop_times VALUES
  ('t1', '822', '09:00:00', '09:00:00'),
  ('t2', '822', '24:30:00', '24:30:00'),
  ('t3', '822', '10:00:00', '10:00:00'),
  ('t4', '822', NULL,       '11:15:00'),
  ('t5', '822', '09:30:00', '09:30:00'),
  ('t6', '822', '12:00:00', '12:00:00'),
  ('t1', '999', '09:05:00', '09:05:00');`

// Needs a real PostgreSQL, like TestSaveCurve_RoundTrip. The fixture lives in
// a throwaway schema.
func TestFetchStopTimes_ServiceCalendar(t *testing.T) {
	dsn := os.Getenv("LATENESS_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("LATENESS_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	admin, err := Open(dsn)
	require.NoError(t, err)
	defer admin.Close()
	require.NoError(t, Ping(ctx, admin))

	schema := fmt.Sprintf("gtfs_test_%d", time.Now().UnixNano())
	_, err = admin.ExecContext(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.ExecContext(ctx, "DROP SCHEMA "+schema+" CASCADE")
	})

	u, err := url.Parse(dsn)
	require.NoError(t, err)
	q := u.Query()
	q.Set("search_path", schema)
	u.RawQuery = q.Encode()

	sqlDB, err := Open(u.String())
	require.NoError(t, err)
	defer sqlDB.Close()
	_, err = sqlDB.ExecContext(ctx, scheduleFixture)
	require.NoError(t, err)

	// Tuesday, just after midnight
	today := time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)
	now := today.Add(10 * time.Minute)

	got, err := FetchStopTimes(ctx, sqlDB, "822", "8", now)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		today.Add(30 * time.Minute),              // Monday's 24:30 trip
		today.Add(9 * time.Hour),                 // weekday service
		today.Add(11*time.Hour + 15*time.Minute), // added by exception, departure_time fallback
		today.Add(24*time.Hour + 30*time.Minute), // Tuesday's 24:30 trip
	}, got)

	all, err := FetchStopTimes(ctx, sqlDB, "822", "", now)
	require.NoError(t, err)
	assert.Contains(t, all, today.Add(9*time.Hour+30*time.Minute))
	assert.NotContains(t, all, today.Add(10*time.Hour))
	assert.NotContains(t, all, today.Add(12*time.Hour))
}
