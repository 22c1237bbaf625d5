package record

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
)

// Sweep output files.
const (
	ResultsTable     = "results.txt"
	DeflectionsTable = "deflections.txt"
	SolutionsTable   = "solutions.txt"
	ChangedTable     = "changed.txt"

	PolarPlot       = "polar.png"
	AlphaPlot       = "alpha.png"
	StabilizerPlot  = "stabilizer.png"
	DeflectionsPlot = "deflections.png"
)

// UpName marks a sweep file name as holding up-pass results.
func UpName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "__UP" + ext
}

// Files lists the paths written for one run.
type Files struct {
	Text          string `json:"text"`
	Forces        string `json:"forces"`
	Distributions string `json:"distributions"`
}

// Writer writes run files into a directory.
type Writer struct {
	dir        string
	dumpForces bool
}

// NewWriter returns a writer for dir. The directory is created on first use.
func NewWriter(dir string, dumpForces bool) *Writer {
	return &Writer{dir: dir, dumpForces: dumpForces}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write writes the text summary, the forces JSON and the distributions JSON of r.
func (w *Writer) Write(r *Record) (Files, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Files{}, errors.Wrapf(err, "create output directory %s", w.dir).
			WithOperation("write").
			WithComponent(component)
	}

	title := r.Title()
	files := Files{
		Text:          filepath.Join(w.dir, title),
		Forces:        filepath.Join(w.dir, ForcesFile(title)),
		Distributions: filepath.Join(w.dir, DistributionsFile(title)),
	}

	if err := w.create(files.Text, func(f *os.File) error { return WriteText(f, r, w.dumpForces) }); err != nil {
		return Files{}, err
	}
	if err := w.create(files.Forces, func(f *os.File) error { return WriteJSON(f, r.Forces) }); err != nil {
		return Files{}, err
	}
	if err := w.create(files.Distributions, func(f *os.File) error { return WriteJSON(f, r.Distributions) }); err != nil {
		return Files{}, err
	}
	return files, nil
}

// WriteSweep writes the polar, deflection, solution and changed tables of the
// kept results and, when up is not empty, the first three again for the up
// pass under UpName.
func (w *Writer) WriteSweep(final, up []*Record) error {
	type table struct {
		name  string
		recs  []*Record
		write func(io.Writer, []*Record) error
	}
	tables := []table{
		{ResultsTable, final, WritePolarTable},
		{DeflectionsTable, final, WriteDeflectionTable},
		{SolutionsTable, final, WriteSolutionTable},
		{ChangedTable, final, WriteChangedTable},
	}
	if len(up) > 0 {
		tables = append(tables,
			table{UpName(ResultsTable), up, WritePolarTable},
			table{UpName(DeflectionsTable), up, WriteDeflectionTable},
			table{UpName(SolutionsTable), up, WriteSolutionTable},
		)
	}
	for _, t := range tables {
		if _, err := w.Create(t.name, func(f *os.File) error { return t.write(f, t.recs) }); err != nil {
			return err
		}
	}
	return nil
}

// PlotSweep saves the polar, angle of attack, stabilizer and camber schedule
// plots of recs.
func (w *Writer) PlotSweep(recs []*Record, title string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return errors.Wrapf(err, "create output directory %s", w.dir).
			WithOperation("plot").
			WithComponent(component)
	}
	plots := []struct {
		name string
		plot func([]*Record, string, string) error
	}{
		{PolarPlot, PlotPolar},
		{AlphaPlot, PlotAlpha},
		{StabilizerPlot, PlotStabilizer},
		{DeflectionsPlot, PlotDeflections},
	}
	for _, p := range plots {
		if err := p.plot(recs, title, filepath.Join(w.dir, p.name)); err != nil {
			return err
		}
	}
	return nil
}

// Create opens a file in the output directory and hands it to fn.
func (w *Writer) Create(name string, fn func(f *os.File) error) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create output directory %s", w.dir).
			WithOperation("write").
			WithComponent(component)
	}
	path := filepath.Join(w.dir, name)
	return path, w.create(path, fn)
}

func (w *Writer) create(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path).WithOperation("write").WithComponent(component)
	}
	if err := fn(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path).WithOperation("write").WithComponent(component)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "close %s", path).WithOperation("write").WithComponent(component)
	}
	return nil
}
