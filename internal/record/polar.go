package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
)

// PolarHeader is the column header of the polar table.
const PolarHeader = "CL   CD   Cm   alpha   elevator   act_CL"

// WritePolarTable writes one row per record: target CL, CD, Cm, alpha,
// stabilizer angle and the achieved CL.
func WritePolarTable(w io.Writer, recs []*Record) error {
	rows := make([][]float64, len(recs))
	for i, r := range recs {
		rows[i] = []float64{r.TargetCL, r.CD, r.Cm, r.Alpha, r.Stabilizer, r.CL}
	}
	return writeTable(w, PolarHeader, rows)
}

// WriteDeflectionTable writes the span fractions of the first record followed
// by one deflection column per record.
func WriteDeflectionTable(w io.Writer, recs []*Record) error {
	header := []string{"Span Loc"}
	for _, r := range recs {
		header = append(header, FormatCL(r.TargetCL))
	}
	if len(recs) == 0 {
		return writeTable(w, strings.Join(header, "   "), nil)
	}

	spans := recs[0].Deflections.Spans()
	rows := make([][]float64, len(spans))
	for i, f := range spans {
		row := []float64{f}
		for _, r := range recs {
			if i < len(r.Deflections) {
				row = append(row, r.Deflections[i].Value)
			} else {
				row = append(row, 0)
			}
		}
		rows[i] = row
	}
	return writeTable(w, strings.Join(header, "   "), rows)
}

// WriteSolutionTable writes the final design vector of every record.
func WriteSolutionTable(w io.Writer, recs []*Record) error {
	rows := make([][]float64, len(recs))
	for i, r := range recs {
		rows[i] = r.X
	}
	return writeTable(w, "Flaps...  Elevator Alpha", rows)
}

// WriteChangedTable writes each target CL with 1 when a later pass replaced
// its run and 0 otherwise.
func WriteChangedTable(w io.Writer, recs []*Record) error {
	rows := make([][]float64, len(recs))
	for i, r := range recs {
		changed := 0.0
		if r.Changed {
			changed = 1
		}
		rows[i] = []float64{r.TargetCL, changed}
	}
	return writeTable(w, "CL  Status", rows)
}

func writeTable(w io.Writer, header string, rows [][]float64) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", header)
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				bw.WriteByte(' ')
			}
			fmt.Fprintf(bw, "%.18e", v)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// PlotPolar saves a CD against CL line plot of recs as a PNG at path.
func PlotPolar(recs []*Record, title, path string) error {
	return plotAgainstCL(recs, title, "CD", path, func(r *Record) float64 { return r.CD })
}

// PlotAlpha saves the trimmed angle of attack against CL.
func PlotAlpha(recs []*Record, title, path string) error {
	return plotAgainstCL(recs, title, "Alpha, deg", path, func(r *Record) float64 { return r.Alpha })
}

// PlotStabilizer saves the trimmed stabilizer angle against CL.
func PlotStabilizer(recs []*Record, title, path string) error {
	return plotAgainstCL(recs, title, "Horizontal Stabilizer, deg", path, func(r *Record) float64 { return r.Stabilizer })
}

// PlotDeflections saves one camber schedule line per record, labelled by
// target CL. Records without flaps are skipped.
func PlotDeflections(recs []*Record, title, path string) error {
	var lines []interface{}
	for _, r := range recs {
		if len(r.Deflections) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(r.Deflections))
		for i, d := range r.Deflections {
			pts[i].X, pts[i].Y = d.Span, d.Value
		}
		lines = append(lines, "CL "+FormatCL(r.TargetCL), pts)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Span"
	p.Y.Label.Text = "Camber"

	if err := plotutil.AddLines(p, lines...); err != nil {
		return errors.Wrap(err, "add schedule lines").WithOperation("plot_deflections").WithComponent(component)
	}
	return save(p, path, "plot_deflections")
}

func plotAgainstCL(recs []*Record, title, ylabel, path string, value func(*Record) float64) error {
	pts := make(plotter.XYs, len(recs))
	for i, r := range recs {
		pts[i].X = r.TargetCL
		pts[i].Y = value(r)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "CL"
	p.Y.Label.Text = ylabel

	if err := plotutil.AddLinePoints(p, ylabel, pts); err != nil {
		return errors.Wrapf(err, "add %s line", ylabel).WithOperation("plot").WithComponent(component)
	}
	return save(p, path, "plot")
}

func save(p *plot.Plot, path, op string) error {
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path).WithOperation(op).WithComponent(component)
	}
	return nil
}
