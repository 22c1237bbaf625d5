// Package record writes trim results: per-run text and JSON files, sweep
// tables, a polar plot and a SQLite store of runs grouped by study.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/aero"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/span"
	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/trim"
)

const component = "record"

// StampLayout formats the timestamp that makes output titles unique.
const StampLayout = "2006-01-02_15-04-05"

// Record is one finished trim run.
type Record struct {
	ID            uuid.UUID `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	SceneFile     string    `json:"scene_file"`
	Aircraft      string    `json:"aircraft"`
	ControlPoints int       `json:"control_points"`
	TargetCL      float64   `json:"target_cl"`
	DragType      string    `json:"drag_type"`
	InitialGuess  []float64 `json:"initial_guess,omitempty"`

	X           []float64 `json:"x"`
	Converged   bool      `json:"converged"`
	Message     string    `json:"message"`
	Iterations  int       `json:"iterations"`
	Refinements int       `json:"refinements"`

	CD         float64 `json:"CD"`
	CL         float64 `json:"CL"`
	Cm         float64 `json:"Cm"`
	Alpha      float64 `json:"alpha"`
	Stabilizer float64 `json:"stabilizer"`

	StabilizerTwist aero.Table    `json:"stabilizer_twist"`
	Deflections     span.Schedule `json:"deflections"`

	// Changed is set by a sweep when a later pass replaced this run.
	Changed bool `json:"changed,omitempty"`

	Forces        aero.ForcesAndMoments `json:"forces,omitempty"`
	Distributions aero.Distributions    `json:"-"`
}

// New builds the record of a finished run.
func New(setup *trim.Setup, opts trim.Options, sol *trim.Solution, at time.Time) *Record {
	opts = opts.WithDefaults()
	return &Record{
		ID:              uuid.New(),
		Timestamp:       at,
		SceneFile:       setup.SceneFile,
		Aircraft:        setup.Name,
		ControlPoints:   opts.ControlPoints,
		TargetCL:        opts.TargetCL,
		DragType:        opts.DragType,
		InitialGuess:    append([]float64(nil), opts.InitialGuess...),
		X:               append([]float64(nil), sol.X...),
		Converged:       sol.Converged,
		Message:         sol.Message,
		Iterations:      sol.Iterations,
		Refinements:     sol.Refinements,
		CD:              sol.CD,
		CL:              sol.CL,
		Cm:              sol.Cm,
		Alpha:           sol.Alpha,
		Stabilizer:      sol.Stabilizer,
		StabilizerTwist: sol.StabilizerTwist,
		Deflections:     sol.Deflections,
		Forces:          sol.Forces,
		Distributions:   sol.Distributions,
	}
}

// Title returns the output title of the record.
func (r *Record) Title() string {
	return OutputTitle(r.ControlPoints, r.SceneFile, r.TargetCL, r.Timestamp)
}

// OutputTitle is "<n>_FLAPS_<scene stem>_CL_<cl>__<stamp>". The scene stem is
// the file name up to its first dot.
func OutputTitle(n int, sceneFile string, cl float64, stamp time.Time) string {
	stem, _, _ := strings.Cut(filepath.Base(sceneFile), ".")
	return fmt.Sprintf("%d_FLAPS_%s_CL_%s__%s", n, stem, FormatCL(cl), stamp.Format(StampLayout))
}

// FormatCL prints a lift coefficient with the fewest digits that round-trip.
func FormatCL(cl float64) string {
	return strconv.FormatFloat(cl, 'f', -1, 64)
}

// ForcesFile is the forces and moments file name for title.
func ForcesFile(title string) string { return "F_M_" + title + ".json" }

// DistributionsFile is the span distributions file name for title.
func DistributionsFile(title string) string { return "distributions_" + title + ".json" }

// WriteText writes the human-readable run summary. With dumpForces the full
// forces payload is appended as indented JSON.
func WriteText(w io.Writer, r *Record, dumpForces bool) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "CL: %s\n", FormatCL(r.TargetCL))
	if r.InitialGuess != nil {
		fmt.Fprintf(&b, "Initial Defl: %v\n", r.InitialGuess)
	}
	fmt.Fprintf(&b, "Num Flaps: %d\n", r.ControlPoints)
	fmt.Fprintf(&b, "Scene File Name: %s\n", r.SceneFile)
	fmt.Fprintf(&b, "Converged: %t\n", r.Converged)
	fmt.Fprintf(&b, "Message: %s\n", r.Message)
	fmt.Fprintf(&b, "Iterations: %d\n", r.Iterations)
	fmt.Fprintf(&b, "Refinements: %d\n", r.Refinements)
	fmt.Fprintf(&b, "x: %v\n", r.X)
	fmt.Fprintf(&b, "Deflections: %v\n", scheduleRows(r.Deflections))
	fmt.Fprintf(&b, "%s Drag (CD): %v\n", r.DragType, r.CD)
	fmt.Fprintf(&b, "Calc CL: %v\n", r.CL)
	fmt.Fprintf(&b, "Calc Cm: %v\n", r.Cm)
	fmt.Fprintf(&b, "Angle of Attack: %v (deg)\n", r.Alpha)
	fmt.Fprintf(&b, "Elevator: %v (deg)\n", r.Stabilizer)
	fmt.Fprintf(&b, "\nHorizontal Stabilizer Twist: \n%v\n", [][2]float64(r.StabilizerTwist))

	if dumpForces {
		if err := WriteJSON(&b, r.Forces); err != nil {
			return err
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	return enc.Encode(v)
}

func scheduleRows(s span.Schedule) [][2]float64 {
	rows := make([][2]float64, len(s))
	for i, p := range s {
		rows[i] = [2]float64{p.Span, p.Value}
	}
	return rows
}
