// Package report renders a finished lateness curve to disk.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"lateness-sim/internal/sim"
)

// ErrEmptyCurve is returned when there is nothing to render.
var ErrEmptyCurve = errors.New("curve has no points")

const timestampLayout = "20060102_150405"

// ArtifactPath returns dir/<prefix>_YYYYMMDD_HHMMSS.<ext>.
func ArtifactPath(dir, prefix, ext string, ts time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%s.%s", prefix, ts.Format(timestampLayout), ext))
}

// Artifacts are the files written for one run.
type Artifacts struct {
	PNG string
	CSV string
}

// WriteCurve saves the chart and the CSV for curve into dir, both stamped
// with ts. Times on the chart are shown in loc.
func WriteCurve(dir string, curve sim.Curve, loc *time.Location, ts time.Time) (Artifacts, error) {
	if len(curve) == 0 {
		return Artifacts{}, ErrEmptyCurve
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Artifacts{}, fmt.Errorf("create results dir: %w", err)
	}
	a := Artifacts{
		PNG: ArtifactPath(dir, "lateness_curve", "png", ts),
		CSV: ArtifactPath(dir, "lateness_curve", "csv", ts),
	}
	if err := SavePlot(a.PNG, curve, loc); err != nil {
		return Artifacts{}, err
	}
	if err := SaveCSV(a.CSV, curveRows(curve, loc)); err != nil {
		return Artifacts{}, err
	}
	return a, nil
}

// SavePlot draws P(late) against departure time.
func SavePlot(path string, curve sim.Curve, loc *time.Location) error {
	if len(curve) == 0 {
		return ErrEmptyCurve
	}
	if loc == nil {
		loc = time.Local
	}

	p := plot.New()
	p.Title.Text = "Meeting punctuality"
	p.X.Label.Text = "Time leaving home"
	p.Y.Label.Text = "Probability of being late"
	p.Y.Min = -0.05
	p.Y.Max = 1.05
	p.X.Tick.Marker = plot.TimeTicks{Format: "15:04", Time: plot.UnixTimeIn(loc)}
	p.Y.Tick.Marker = probabilityTicks{}

	xys := make(plotter.XYs, len(curve))
	for i, pt := range curve {
		xys[i].X = float64(pt.Departure.Unix())
		xys[i].Y = pt.Probability
	}
	line, points, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("build plot series: %w", err)
	}
	points.Shape = draw.CircleGlyph{}

	p.Add(plotter.NewGrid(), line, points)
	p.Legend.Add("P(late)", line, points)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := p.Save(12*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// probabilityTicks labels the y axis every 0.1 between 0 and 1.
type probabilityTicks struct{}

func (probabilityTicks) Ticks(_, _ float64) []plot.Tick {
	ticks := make([]plot.Tick, 0, 21)
	for i := 0; i <= 20; i++ {
		v := float64(i) / 20
		t := plot.Tick{Value: v}
		if i%2 == 0 {
			t.Label = fmt.Sprintf("%.1f", v)
		}
		ticks = append(ticks, t)
	}
	return ticks
}

type curveRow struct {
	Departure   string  `csv:"departure"`
	Probability float64 `csv:"p_late"`
}

func curveRows(curve sim.Curve, loc *time.Location) []*curveRow {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]*curveRow, len(curve))
	for i, pt := range curve {
		rows[i] = &curveRow{
			Departure:   pt.Departure.In(loc).Format(time.DateTime),
			Probability: pt.Probability,
		}
	}
	return rows
}

// SaveCSV writes rows, a slice of csv-tagged structs, with a header line.
func SaveCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func WriteCSV(w io.Writer, rows any) error {
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
