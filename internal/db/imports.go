package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoImport is returned when no successful GTFS import matches a city.
var ErrNoImport = errors.New("no gtfs import found")

// WithDBName points dsn at database, keeping credentials and query
// parameters. A DSN without a scheme is read as postgres://.
func WithDBName(dsn, database string) (string, error) {
	if dsn == "" {
		return "", errors.New("empty DSN")
	}
	if !strings.Contains(dsn, "://") {
		dsn = "postgres://" + dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported DSN scheme %q", u.Scheme)
	}
	u.Path = "/" + strings.TrimPrefix(database, "/")
	return u.String(), nil
}

// ResolveLatestImportDBName returns the db_name with the most recent imported_at
// from public.latest_successful_imports where db_name ILIKE '%city%'.
func ResolveLatestImportDBName(ctx context.Context, meta *sql.DB, city string) (string, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return "", fmt.Errorf("city is required")
	}
	q := `
SELECT db_name
FROM public.latest_successful_imports
WHERE db_name ILIKE '%' || $1 || '%'
ORDER BY imported_at DESC
LIMIT 1`
	var dbName sql.NullString
	if err := meta.QueryRowContext(ctx, q, city).Scan(&dbName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w for city like %q", ErrNoImport, city)
		}
		return "", err
	}
	if !dbName.Valid || dbName.String == "" {
		return "", fmt.Errorf("%w: empty db_name for city like %q", ErrNoImport, city)
	}
	return dbName.String, nil
}

// OpenSchedule connects to the GTFS database behind baseDSN. When city is set
// the cluster's "postgres" database is asked for the latest import of that
// city first and the returned handle points at it.
func OpenSchedule(ctx context.Context, baseDSN, city string) (*sql.DB, string, error) {
	dsn := baseDSN
	name := ""
	if city != "" {
		rootDSN, err := WithDBName(baseDSN, "postgres")
		if err != nil {
			return nil, "", fmt.Errorf("invalid base DSN: %w", err)
		}
		meta, err := Open(rootDSN)
		if err != nil {
			return nil, "", fmt.Errorf("open meta db: %w", err)
		}
		defer meta.Close()
		if err := Ping(ctx, meta); err != nil {
			return nil, "", fmt.Errorf("ping meta db: %w", err)
		}
		if name, err = ResolveLatestImportDBName(ctx, meta, city); err != nil {
			return nil, "", err
		}
		if dsn, err = WithDBName(baseDSN, name); err != nil {
			return nil, "", fmt.Errorf("compose DSN: %w", err)
		}
	}

	sqlDB, err := Open(dsn)
	if err != nil {
		return nil, "", err
	}
	if err := Ping(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, "", fmt.Errorf("ping schedule db: %w", err)
	}
	return sqlDB, name, nil
}
