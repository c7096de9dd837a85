package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"lateness-sim/internal/schedule"
	"lateness-sim/internal/sim"
)

// ErrInvalid wraps every configuration problem. It is fatal at startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	DefaultScheduleURLTemplate = "https://transport.tallinn.ee/siri-stop-departures.php?stopid={stop_id}"
	DefaultGPSURL              = "https://transport.tallinn.ee/gps.txt"
)

type Config struct {
	Location *time.Location

	ScheduleSource      string // siri | gtfsrt | gtfsdb
	ScheduleURLTemplate string
	GTFSRTURL           string
	GTFSRTRouteID       string // feed route_id, usually not the public line number
	City                string // resolves the latest GTFS import database when set
	TargetLine          string
	OriginStopID        string
	DestinationStopID   string
	FetchTimeout        time.Duration

	WalkToStop        time.Duration
	WalkToDestination time.Duration
	BaseTravel        time.Duration
	WalkVariability   time.Duration
	RideVariability   time.Duration
	DepartureJitter   time.Duration

	StartTime       Clock
	MeetingTime     Clock
	StepInterval    time.Duration
	RefreshInterval time.Duration

	Iterations     int
	Workers        int
	Seed           int64
	RealtimePacing bool
	ResultsDir     string

	GPSURL           string
	GPSTransportType int
	ZoneRadiusMeters float64

	MetricsAddr        string
	NATSURL            string
	NATSSubjectPrefix  string
	DatabaseURL        string // GTFS schedule database
	ResultsDatabaseURL string // curve sink

	LogJSON bool
	Debug   bool
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	tzName := getenvDefault("TZ", "")
	if tzName == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tzName)
		if err != nil {
			return nil, fmt.Errorf("%w: TZ: %v", ErrInvalid, err)
		}
		cfg.Location = loc
	}

	cfg.ScheduleSource = strings.ToLower(getenvDefault("SCHEDULE_SOURCE", "siri"))
	switch cfg.ScheduleSource {
	case "siri", "gtfsrt", "gtfsdb":
	default:
		return nil, invalid("SCHEDULE_SOURCE", cfg.ScheduleSource)
	}
	cfg.ScheduleURLTemplate = getenvDefault("SCHEDULE_URL_TEMPLATE", DefaultScheduleURLTemplate)
	cfg.GTFSRTURL = os.Getenv("GTFSRT_URL")
	if cfg.ScheduleSource == "gtfsrt" && cfg.GTFSRTURL == "" {
		return nil, fmt.Errorf("%w: GTFSRT_URL must be set when SCHEDULE_SOURCE=gtfsrt", ErrInvalid)
	}
	cfg.City = os.Getenv("CITY")
	cfg.TargetLine = getenvDefault("TARGET_LINE", "8")
	cfg.GTFSRTRouteID = getenvDefault("GTFSRT_ROUTE_ID", cfg.TargetLine)
	cfg.OriginStopID = getenvDefault("ORIGIN_STOP_ID", "822")
	cfg.DestinationStopID = getenvDefault("DESTINATION_STOP_ID", "1769")

	if cfg.FetchTimeout, err = secondsEnv("FETCH_TIMEOUT_SEC", 5, true); err != nil {
		return nil, err
	}
	if cfg.WalkToStop, err = secondsEnv("WALK_TO_STOP_SEC", 300, false); err != nil {
		return nil, err
	}
	if cfg.WalkToDestination, err = secondsEnv("WALK_TO_DESTINATION_SEC", 240, false); err != nil {
		return nil, err
	}
	if cfg.BaseTravel, err = secondsEnv("BASE_TRAVEL_SEC", 720, false); err != nil {
		return nil, err
	}
	if cfg.WalkVariability, err = secondsEnv("WALK_VARIABILITY_SEC", 30, false); err != nil {
		return nil, err
	}
	if cfg.RideVariability, err = secondsEnv("RIDE_VARIABILITY_SEC", 60, false); err != nil {
		return nil, err
	}
	if cfg.DepartureJitter, err = secondsEnv("DEPARTURE_JITTER_SEC", 20, false); err != nil {
		return nil, err
	}

	if cfg.StartTime, err = clockEnv("START_TIME", "20:15"); err != nil {
		return nil, err
	}
	if cfg.MeetingTime, err = clockEnv("MEETING_TIME", "21:15"); err != nil {
		return nil, err
	}
	if cfg.StepInterval, err = secondsEnv("STEP_INTERVAL_SEC", 30, true); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = secondsEnv("REFRESH_INTERVAL_SEC", 300, true); err != nil {
		return nil, err
	}

	if v := os.Getenv("MONTE_CARLO_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(strings.ReplaceAll(v, "_", ""))
		if err != nil || n < 1 {
			return nil, invalid("MONTE_CARLO_ITERATIONS", v)
		}
		cfg.Iterations = n
	} else {
		cfg.Iterations = 200_000
	}

	if v := os.Getenv("MONTE_CARLO_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, invalid("MONTE_CARLO_WORKERS", v)
		}
		cfg.Workers = n
	} else {
		cfg.Workers = runtime.NumCPU()
	}

	if v := os.Getenv("SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, invalid("SEED", v)
		}
		cfg.Seed = n
	}

	cfg.RealtimePacing = parseBool(getenvDefault("REALTIME_PACING", "true"))
	cfg.ResultsDir = getenvDefault("RESULTS_DIR", "results")

	cfg.GPSURL = getenvDefault("GPS_URL", DefaultGPSURL)
	if v := os.Getenv("GPS_TRANSPORT_TYPE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, invalid("GPS_TRANSPORT_TYPE", v)
		}
		cfg.GPSTransportType = n
	} else {
		cfg.GPSTransportType = 2
	}
	if v := os.Getenv("ZONE_RADIUS_M"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, invalid("ZONE_RADIUS_M", v)
		}
		cfg.ZoneRadiusMeters = f
	} else {
		cfg.ZoneRadiusMeters = 75
	}

	// Optional outputs; an empty value disables each of them.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "lateness")
	cfg.DatabaseURL = firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN"))
	if cfg.ScheduleSource == "gtfsdb" && cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL must be set when SCHEDULE_SOURCE=gtfsdb", ErrInvalid)
	}
	cfg.ResultsDatabaseURL = os.Getenv("RESULTS_DATABASE_URL")

	cfg.LogJSON = strings.EqualFold(os.Getenv("LOG_FORMAT"), "JSON")
	cfg.Debug = parseBool(os.Getenv("DEBUG"))

	return cfg, nil
}

// Validate re-checks values that CLI flags may have overridden.
func (c *Config) Validate() error {
	if c.Iterations < 1 {
		return fmt.Errorf("%w: monte carlo iterations must be >= 1, got %d", ErrInvalid, c.Iterations)
	}
	if c.StepInterval <= 0 {
		return fmt.Errorf("%w: step interval must be positive, got %s", ErrInvalid, c.StepInterval)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalid, c.Workers)
	}
	return nil
}

// MinTravel is the shortest ride the matcher accepts between the two stops.
func (c *Config) MinTravel() time.Duration {
	return schedule.MinTravel(c.BaseTravel, c.RideVariability)
}

// Params builds the journey model for a run starting on day.
func (c *Config) Params(day time.Time) sim.Params {
	_, deadline := c.Window(day)
	return sim.Params{
		Deadline:          deadline,
		WalkToStop:        c.WalkToStop,
		WalkToDestination: c.WalkToDestination,
		WalkVariability:   c.WalkVariability,
		DepartureJitter:   c.DepartureJitter,
		RideVariability:   c.RideVariability,
	}
}

// Window returns the sweep bounds for a run starting on day: from the start
// time to the next meeting time, which may fall after midnight.
func (c *Config) Window(day time.Time) (start, end time.Time) {
	start = c.StartTime.On(day, c.Location)
	end = c.MeetingTime.On(day, c.Location)
	if end.Before(start) {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

func invalid(key, value string) error {
	return fmt.Errorf("%w: invalid %s: %q", ErrInvalid, key, value)
}

func secondsEnv(key string, def int, positive bool) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second, nil
	}
	sec, err := strconv.Atoi(v)
	if err != nil || sec < 0 || (positive && sec == 0) {
		return 0, invalid(key, v)
	}
	return time.Duration(sec) * time.Second, nil
}

func clockEnv(key, def string) (Clock, error) {
	v := getenvDefault(key, def)
	c, err := ParseClock(v)
	if err != nil {
		return Clock{}, invalid(key, v)
	}
	return c, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
