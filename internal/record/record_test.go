package record

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

var stamp = time.Date(2022, 1, 5, 15, 40, 8, 0, time.UTC)

func sampleRecord(cl, cd float64) *Record {
	r := &Record{
		ID:            uuid.New(),
		Timestamp:     stamp,
		SceneFile:     "configs/ikhana/Ikhana_scene_input.json",
		Aircraft:      "Ikhana",
		ControlPoints: 2,
		TargetCL:      cl,
		DragType:      "Total",
		X:             []float64{1.5, 2.5, -0.75, 4},
		Converged:     true,
		Message:       "converged",
		Iterations:    12,
		Refinements:   1,
		CD:            cd,
		CL:            cl,
		Cm:            1e-9,
		Alpha:         4,
		Stabilizer:    -0.75,
	}
	r.StabilizerTwist = aero.Table{{0, -0.75}, {1, -0.75}}
	r.Deflections = span.Schedule{
		{Span: 0, Value: 0},
		{Span: 0, Value: 1.5},
		{Span: 0.5, Value: 1.5},
		{Span: 0.5, Value: 2.5},
		{Span: 1, Value: 2.5},
	}
	r.Forces = aero.ForcesAndMoments{
		"Ikhana": {Total: aero.Coefficients{CL: cl, CD: cd}},
	}
	return r
}

func TestOutputTitle(t *testing.T) {
	tests := []struct {
		n     int
		scene string
		cl    float64
		want  string
	}{
		{2, "Ikhana_scene_input.json", 0.1, "2_FLAPS_Ikhana_scene_input_CL_0.1__2022-01-05_15-40-08"},
		{0, "/tmp/runs/Ikhana_scene_input.json", 0.6, "0_FLAPS_Ikhana_scene_input_CL_0.6__2022-01-05_15-40-08"},
		{4, "scene.v2.yaml", 0.30000000000000004, "4_FLAPS_scene_CL_0.30000000000000004__2022-01-05_15-40-08"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputTitle(tt.n, tt.scene, tt.cl, stamp))
		})
	}

	title := OutputTitle(2, "Ikhana_scene_input.json", 0.5, stamp)
	assert.Equal(t, "F_M_"+title+".json", ForcesFile(title))
	assert.Equal(t, "distributions_"+title+".json", DistributionsFile(title))
}

func TestNewRecord(t *testing.T) {
	setup := &trim.Setup{SceneFile: "scene.json", Name: "Ikhana"}
	sol := &trim.Solution{X: []float64{0.5, 3}, Converged: true, CD: 0.02, CL: 0.6, Alpha: 3, Stabilizer: 0.5}

	r := New(setup, trim.Options{TargetCL: 0.6}, sol, stamp)
	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, "Total", r.DragType)
	assert.Equal(t, "Ikhana", r.Aircraft)
	assert.Equal(t, 0.6, r.TargetCL)
	assert.Empty(t, r.InitialGuess)

	sol.X[0] = 99
	assert.Equal(t, 0.5, r.X[0], "record must not alias the solution")
}

func TestWriteText(t *testing.T) {
	r := sampleRecord(0.5, 0.0213)
	r.InitialGuess = []float64{1, 2, 0, 3}

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r, false))
	out := buf.String()

	for _, want := range []string{
		"CL: 0.5\n",
		"Initial Defl: [1 2 0 3]\n",
		"Num Flaps: 2\n",
		"Scene File Name: configs/ikhana/Ikhana_scene_input.json\n",
		"Total Drag (CD): 0.0213\n",
		"Angle of Attack: 4 (deg)\n",
		"Elevator: -0.75 (deg)\n",
		"Horizontal Stabilizer Twist: \n[[0 -0.75] [1 -0.75]]\n",
		"Deflections: [[0 0] [0 1.5] [0.5 1.5] [0.5 2.5] [1 2.5]]\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, `"Ikhana"`)

	buf.Reset()
	require.NoError(t, WriteText(&buf, r, true))
	assert.Contains(t, buf.String(), `"Ikhana"`)

	buf.Reset()
	r.InitialGuess = nil
	require.NoError(t, WriteText(&buf, r, false))
	assert.NotContains(t, buf.String(), "Initial Defl")
}

func TestWriterWritesRunFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	r := sampleRecord(0.4, 0.018)

	files, err := NewWriter(dir, false).Write(r)
	require.NoError(t, err)

	title := r.Title()
	assert.Equal(t, filepath.Join(dir, title), files.Text)
	assert.Equal(t, filepath.Join(dir, ForcesFile(title)), files.Forces)
	assert.Equal(t, filepath.Join(dir, DistributionsFile(title)), files.Distributions)

	for _, path := range []string{files.Text, files.Forces, files.Distributions} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	data, err := os.ReadFile(files.Forces)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Ikhana"`)
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := Open(filepath.Join(t.TempDir(), "db", "polar.db"))
	require.NoError(t, err)
	defer store.Close()

	high := sampleRecord(0.9, 0.05)
	low := sampleRecord(0.1, 0.01)
	other := sampleRecord(0.5, 0.02)

	require.NoError(t, store.SaveRun(ctx, "study-a", high))
	require.NoError(t, store.SaveRun(ctx, "study-a", low))
	require.NoError(t, store.SaveRun(ctx, "study-b", other))

	runs, err := store.Runs(ctx, "study-a")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, low.ID, runs[0].ID)
	assert.Equal(t, high.ID, runs[1].ID)

	if diff := cmp.Diff(low.X, runs[0].X); diff != "" {
		t.Errorf("design vector mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, low.Deflections, runs[0].Deflections)
	assert.True(t, runs[0].Timestamp.Equal(stamp))

	// Saving again replaces the row.
	low.Changed = true
	low.CD = 0.009
	require.NoError(t, store.SaveRun(ctx, "study-a", low))
	runs, err = store.Runs(ctx, "study-a")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Changed)
	assert.Equal(t, 0.009, runs[0].CD)

	runs, err = store.Runs(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInMemoryStore(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.SaveRun(context.Background(), "s", sampleRecord(0.3, 0.015)))
	runs, err := store.Runs(context.Background(), "s")
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSweepTables(t *testing.T) {
	recs := []*Record{sampleRecord(0.1, 0.01), sampleRecord(0.2, 0.012)}
	recs[1].Changed = true

	var buf bytes.Buffer
	require.NoError(t, WritePolarTable(&buf, recs))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "# "+PolarHeader, lines[0])
	assert.Len(t, strings.Fields(lines[1]), 6)
	assert.True(t, strings.HasPrefix(lines[1], "1.000000000000000056e-01 "))

	buf.Reset()
	require.NoError(t, WriteDeflectionTable(&buf, recs))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "# Span Loc   0.1   0.2", lines[0])
	assert.Len(t, strings.Fields(lines[1]), 3)

	buf.Reset()
	require.NoError(t, WriteSolutionTable(&buf, recs))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Len(t, strings.Fields(lines[2]), 4)

	buf.Reset()
	require.NoError(t, WriteChangedTable(&buf, recs))
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], " 0.000000000000000000e+00"))
	assert.True(t, strings.HasSuffix(lines[2], " 1.000000000000000000e+00"))
}

func TestPlots(t *testing.T) {
	recs := []*Record{sampleRecord(0.1, 0.01), sampleRecord(0.5, 0.015), sampleRecord(0.9, 0.04)}
	tests := map[string]func([]*Record, string, string) error{
		"polar.png":       PlotPolar,
		"alpha.png":       PlotAlpha,
		"stabilizer.png":  PlotStabilizer,
		"deflections.png": PlotDeflections,
	}
	for name, plot := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, plot(recs, "Ikhana", path))
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestPlotDeflectionsWithoutFlaps(t *testing.T) {
	r := sampleRecord(0.3, 0.02)
	r.Deflections = nil
	path := filepath.Join(t.TempDir(), "deflections.png")
	require.NoError(t, PlotDeflections([]*Record{r}, "baseline", path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestUpName(t *testing.T) {
	assert.Equal(t, "results__UP.txt", UpName(ResultsTable))
	assert.Equal(t, "polar__UP", UpName("polar"))
}

func TestWriteSweep(t *testing.T) {
	final := []*Record{sampleRecord(0.1, 0.01), sampleRecord(0.2, 0.012)}
	up := []*Record{sampleRecord(0.1, 0.01), sampleRecord(0.2, 0.013)}
	w := NewWriter(filepath.Join(t.TempDir(), "sweep"), false)

	require.NoError(t, w.WriteSweep(final, up))
	require.NoError(t, w.PlotSweep(final, "Ikhana, 2 control points"))
	for _, name := range []string{
		ResultsTable, DeflectionsTable, SolutionsTable, ChangedTable,
		UpName(ResultsTable), UpName(DeflectionsTable), UpName(SolutionsTable),
		PolarPlot, AlphaPlot, StabilizerPlot, DeflectionsPlot,
	} {
		_, err := os.Stat(filepath.Join(w.Dir(), name))
		assert.NoError(t, err, name)
	}

	upPolar, err := os.ReadFile(filepath.Join(w.Dir(), UpName(ResultsTable)))
	require.NoError(t, err)
	var want bytes.Buffer
	require.NoError(t, WritePolarTable(&want, up))
	assert.Equal(t, want.String(), string(upPolar))

	only := NewWriter(t.TempDir(), false)
	require.NoError(t, only.WriteSweep(final, nil))
	_, err = os.Stat(filepath.Join(only.Dir(), UpName(ResultsTable)))
	assert.True(t, os.IsNotExist(err))
}
