package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"lateness-sim/internal/zones"
)

// gpsRecord mirrors one headerless row of gps.txt, positionally.
type gpsRecord struct {
	TransportType string
	Line          string
	LonMicro      string
	LatMicro      string
	Speed         string
	Heading       string
	VehicleID     string
	VehicleType   string
	StopSequence  string
	StopName      string
}

const gpsFields = 10

// Vehicle is one live position of a vehicle on the tracked line.
type Vehicle struct {
	TransportType int     `csv:"transport_type"`
	Line          string  `csv:"line"`
	Speed         string  `csv:"speed"`
	Heading       string  `csv:"heading"`
	VehicleID     string  `csv:"vehicle_id"`
	VehicleType   string  `csv:"vehicle_type"`
	StopSequence  string  `csv:"stop_sequence"`
	StopName      string  `csv:"stop_name"`
	Latitude      float64 `csv:"latitude"`
	Longitude     float64 `csv:"longitude"`
	SnapshotTime  string  `csv:"snapshot_time"`
	AtOrigin      bool    `csv:"at_origin"`
	AtDestination bool    `csv:"at_destination"`
}

// Coord returns the vehicle position.
func (v Vehicle) Coord() zones.Coord { return zones.Coord{Lat: v.Latitude, Lon: v.Longitude} }

// GPS snapshots the city-wide live vehicle feed filtered to one line.
type GPS struct {
	base
	url           string
	transportType int
	line          string
	origin        zones.Zone
	destination   zones.Zone
}

func NewGPS(url string, transportType int, line string, origin, destination zones.Zone, loc *time.Location, timeout time.Duration, opts ...Option) *GPS {
	return &GPS{
		base:          newBase(loc, timeout, opts),
		url:           url,
		transportType: transportType,
		line:          line,
		origin:        origin,
		destination:   destination,
	}
}

// Snapshot fetches the feed once. Unlike the schedule sources it returns the
// error, since a snapshot without data has nothing to write.
func (g *GPS) Snapshot(ctx context.Context) ([]Vehicle, error) {
	body, err := g.do(ctx, g.url)
	if err != nil {
		return nil, err
	}
	vehicles, err := g.parse(body, g.now().In(g.loc))
	if err != nil {
		return nil, err
	}
	g.log.Info().
		Str("line", g.line).
		Int("vehicles", len(vehicles)).
		Msg("gps snapshot taken")
	return vehicles, nil
}

func (g *GPS) parse(body []byte, now time.Time) ([]Vehicle, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records []gpsRecord
	if err := gocsv.UnmarshalCSVWithoutHeaders(paddedReader{r}, &records); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse gps feed: %w", err)
	}

	snapshot := now.Format(time.RFC3339)
	var out []Vehicle
	for _, rec := range records {
		tt, err := strconv.Atoi(strings.TrimSpace(rec.TransportType))
		if err != nil || tt != g.transportType {
			continue
		}
		if strings.TrimSpace(rec.Line) != g.line {
			continue
		}
		// The third column is longitude and the fourth latitude, both in micro-degrees.
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(rec.LonMicro), 64)
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(rec.LatMicro), 64)
		if errLon != nil || errLat != nil {
			g.log.Debug().Str("vehicle", rec.VehicleID).Msg("skipping gps row without coordinates")
			continue
		}
		v := Vehicle{
			TransportType: tt,
			Line:          g.line,
			Speed:         rec.Speed,
			Heading:       rec.Heading,
			VehicleID:     rec.VehicleID,
			VehicleType:   rec.VehicleType,
			StopSequence:  rec.StopSequence,
			StopName:      rec.StopName,
			Latitude:      lat / 1e6,
			Longitude:     lon / 1e6,
			SnapshotTime:  snapshot,
		}
		v.AtOrigin = g.origin.Contains(v.Coord())
		v.AtDestination = g.destination.Contains(v.Coord())
		out = append(out, v)
	}
	return out, nil
}

// paddedReader normalises ragged rows to exactly gpsFields columns so they
// can be decoded positionally.
type paddedReader struct{ r *csv.Reader }

func (p paddedReader) Read() ([]string, error) {
	rec, err := p.r.Read()
	if err != nil {
		return nil, err
	}
	return pad(rec), nil
}

func (p paddedReader) ReadAll() ([][]string, error) {
	recs, err := p.r.ReadAll()
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i] = pad(recs[i])
	}
	return recs, nil
}

func pad(rec []string) []string {
	if len(rec) >= gpsFields {
		return rec[:gpsFields]
	}
	out := make([]string, gpsFields)
	copy(out, rec)
	return out
}
