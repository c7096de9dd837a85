package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lateness-sim/internal/sim"
)

func testCurve() sim.Curve {
	start := time.Date(2025, 6, 2, 20, 15, 0, 0, time.UTC)
	return sim.Curve{
		{Departure: start, Probability: 0},
		{Departure: start.Add(30 * time.Second), Probability: 0.125},
		{Departure: start.Add(60 * time.Second), Probability: 1},
	}
}

func TestArtifactPath(t *testing.T) {
	ts := time.Date(2025, 6, 2, 21, 16, 5, 0, time.UTC)
	got := ArtifactPath("results", "lateness_curve", "png", ts)
	assert.Equal(t, filepath.Join("results", "lateness_curve_20250602_211605.png"), got)
}

func TestWriteCurve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	ts := time.Date(2025, 6, 2, 21, 16, 5, 0, time.UTC)

	a, err := WriteCurve(dir, testCurve(), time.UTC, ts)
	require.NoError(t, err)

	png, err := os.ReadFile(a.PNG)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")), "not a png")

	csv, err := os.ReadFile(a.CSV)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "departure,p_late", lines[0])
	assert.Equal(t, "2025-06-02 20:15:30,0.125", lines[2])
}

func TestWriteCurve_SinglePoint(t *testing.T) {
	_, err := WriteCurve(t.TempDir(), testCurve()[:1], time.UTC, time.Now())
	assert.NoError(t, err)
}

func TestWriteCurve_Empty(t *testing.T) {
	_, err := WriteCurve(t.TempDir(), nil, time.UTC, time.Now())
	assert.ErrorIs(t, err, ErrEmptyCurve)
}

func TestWriteCSV_Structs(t *testing.T) {
	type row struct {
		Name string `csv:"name"`
		OK   bool   `csv:"ok"`
	}
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []row{{"a", true}, {"b", false}}))
	assert.Equal(t, "name,ok\na,true\nb,false\n", buf.String())
}

func TestProbabilityTicks(t *testing.T) {
	ticks := probabilityTicks{}.Ticks(-0.05, 1.05)
	require.Len(t, ticks, 21)
	assert.Equal(t, "0.0", ticks[0].Label)
	assert.Empty(t, ticks[1].Label)
	assert.Equal(t, "0.5", ticks[10].Label)
	assert.Equal(t, "1.0", ticks[20].Label)
}
