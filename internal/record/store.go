package record

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Justice-Schoenfeld/Camber-Schedule-Optimization-for-NASA-Ikhana-to-Minimize-Drag/internal/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	study_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	aircraft TEXT NOT NULL,
	scene_file TEXT NOT NULL,
	control_points INTEGER NOT NULL,
	target_cl REAL NOT NULL,
	drag_type TEXT NOT NULL,
	converged INTEGER NOT NULL,
	refinements INTEGER NOT NULL,
	cd REAL NOT NULL,
	cl REAL NOT NULL,
	cm REAL NOT NULL,
	alpha REAL NOT NULL,
	stabilizer REAL NOT NULL,
	changed INTEGER NOT NULL DEFAULT 0,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_study ON runs(study_id, target_cl);
`

// Store keeps run records in SQLite, grouped by study id.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(err, "create directory for %s", path).
				WithOperation("open").
				WithComponent(component)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path).WithOperation("open").WithComponent(component)
	}
	// One connection keeps an in-memory database shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema").WithOperation("open").WithComponent(component)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun inserts r under studyID, replacing an earlier row with the same id.
func (s *Store) SaveRun(ctx context.Context, studyID string, r *Record) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode record").WithOperation("save_run").WithComponent(component)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (
			id, study_id, created_at, aircraft, scene_file, control_points, target_cl, drag_type,
			converged, refinements, cd, cl, cm, alpha, stabilizer, changed, record
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), studyID, r.Timestamp.UTC().Format(time.RFC3339Nano), r.Aircraft, r.SceneFile,
		r.ControlPoints, r.TargetCL, r.DragType, r.Converged, r.Refinements,
		r.CD, r.CL, r.Cm, r.Alpha, r.Stabilizer, r.Changed, string(payload),
	)
	if err != nil {
		return errors.Wrapf(err, "insert run %s", r.ID).WithOperation("save_run").WithComponent(component)
	}
	return nil
}

// Runs returns the records of studyID ordered by target CL.
func (s *Store) Runs(ctx context.Context, studyID string) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM runs WHERE study_id = ? ORDER BY target_cl, created_at`, studyID)
	if err != nil {
		return nil, errors.Wrapf(err, "query study %s", studyID).WithOperation("runs").WithComponent(component)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errors.Wrap(err, "scan run").WithOperation("runs").WithComponent(component)
		}
		r := &Record{}
		if err := json.Unmarshal([]byte(payload), r); err != nil {
			return nil, errors.Wrap(err, "decode record").WithOperation("runs").WithComponent(component)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate runs").WithOperation("runs").WithComponent(component)
	}
	return out, nil
}
