package db

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// FetchStopTimes returns the scheduled times at which trips of the given
// route call at stopID, ascending. Only times strictly after now are kept.
// Trips of the previous service day running past midnight (GTFS hours of 24
// and above) are included. An empty routeShortName matches every route.
func FetchStopTimes(ctx context.Context, db *sql.DB, stopID, routeShortName string, now time.Time) ([]time.Time, error) {
	today := midnight(now)
	days := []serviceDay{{date: today.AddDate(0, 0, -1)}, {date: today}}
	for i := range days {
		times, err := fetchServiceDay(ctx, db, stopID, routeShortName, days[i].date)
		if err != nil {
			return nil, err
		}
		days[i].times = times
	}
	return stopTimesAfter(now, days...), nil
}

// serviceDay holds raw GTFS stop times of the services active on date.
type serviceDay struct {
	date  time.Time
	times []string
}

// stopTimesAfter anchors every time at its service day's midnight and keeps
// the ones after now, ascending. Unparseable times are dropped.
func stopTimesAfter(now time.Time, days ...serviceDay) []time.Time {
	var out []time.Time
	for _, d := range days {
		for _, s := range d.times {
			secs, ok := parseDaySeconds(s)
			if !ok {
				continue
			}
			if t := d.date.Add(time.Duration(secs) * time.Second); t.After(now) {
				out = append(out, t)
			}
		}
	}
	// text ordering would put "9:05:00" after "10:00:00"
	slices.SortFunc(out, time.Time.Compare)
	return out
}

// fetchServiceDay lists the stop's raw calls for services active on day.
func fetchServiceDay(ctx context.Context, db *sql.DB, stopID, routeShortName string, day time.Time) ([]string, error) {
	serviceIDs, err := fetchActiveServiceIDs(ctx, db, day)
	if err != nil {
		return nil, err
	}
	if len(serviceIDs) == 0 {
		return nil, nil
	}

	// arrival_time may be stored as text or interval; both print as HH:MM:SS
	q := `
SELECT COALESCE(st.arrival_time::text, st.departure_time::text, '')
FROM stop_times st
JOIN trips t ON t.trip_id = st.trip_id
JOIN routes r ON r.route_id = t.route_id
WHERE st.stop_id = $1
  AND t.service_id = ANY($2)
  AND ($3 = '' OR r.route_short_name = $3)`

	rows, err := db.QueryContext(ctx, q, stopID, pqArray(serviceIDs), routeShortName)
	if err != nil {
		return nil, fmt.Errorf("query stop_times: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

var weekdayColumns = [...]string{"sunday", "monday", "tuesday", "wednesday", "thursday", "friday", "saturday"}

// fetchActiveServiceIDs applies calendar and then the calendar_dates
// exceptions (1 adds a service, 2 removes it) for day.
func fetchActiveServiceIDs(ctx context.Context, db *sql.DB, day time.Time) ([]string, error) {
	// column name comes from a fixed table, never from input
	q := fmt.Sprintf(`
SELECT service_id FROM calendar
WHERE $1::date BETWEEN start_date AND end_date
  AND %s::text IN ('1', 't', 'true', 'available')
  AND service_id NOT IN (
    SELECT service_id FROM calendar_dates
    WHERE date = $1::date AND exception_type::text IN ('2', 'removed'))
UNION
SELECT service_id FROM calendar_dates
WHERE date = $1::date AND exception_type::text IN ('1', 'added')`, weekdayColumns[day.Weekday()])

	rows, err := db.QueryContext(ctx, q, day.Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("query active services: %w", err)
	}
	defer rows.Close()
	var svc []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		svc = append(svc, s)
	}
	return svc, rows.Err()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// parseDaySeconds parses GTFS HH:MM[:SS], where hours may exceed 23.
func parseDaySeconds(s string) (int, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		hms[i] = n
	}
	if hms[1] > 59 || hms[2] > 59 {
		return 0, false
	}
	return hms[0]*3600 + hms[1]*60 + hms[2], true
}

func pqArray(a []string) any { return a }
