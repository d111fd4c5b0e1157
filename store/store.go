// Package store saves fitting results in a SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/op/go-logging"
	_ "modernc.org/sqlite"

	"bitbucket.org/ccslab/hbdm/fit"
	"bitbucket.org/ccslab/hbdm/summary"
)

var log = logging.MustGetLogger("store")

// ErrNoRun is returned for unknown run ids.
var ErrNoRun = errors.New("no such run")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	model         TEXT NOT NULL,
	created       TEXT NOT NULL,
	n_subj        INTEGER NOT NULL,
	init_fallback INTEGER NOT NULL,
	settings_json TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS estimates (
	run_id        TEXT NOT NULL,
	subject_idx   INTEGER NOT NULL,
	subject       TEXT NOT NULL,
	parameter_idx INTEGER NOT NULL,
	parameter     TEXT NOT NULL,
	value         REAL,
	PRIMARY KEY (run_id, subject_idx, parameter_idx),
	FOREIGN KEY (run_id) REFERENCES runs(id)
);
`

// timeFormat has a fixed width, so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a results database.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database and creates the tables.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run is a stored run.
type Run struct {
	ID           string
	Model        string
	Created      time.Time
	NSubj        int
	InitFallback bool
	Settings     fit.Settings
}

// Save stores a run and its individual estimates.
func (s *Store) Save(res *fit.Result) error {
	settings, err := json.Marshal(res.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, model, created, n_subj, init_fallback, settings_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		res.RunID, res.Model, res.Created.UTC().Format(timeFormat),
		len(res.IndPars.Subjects), res.InitFallback, string(settings),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO estimates (run_id, subject_idx, subject, parameter_idx, parameter, value)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	t := res.IndPars
	for i, subj := range t.Subjects {
		for j, par := range t.Parameters {
			var v interface{} = t.Values[i][j]
			if math.IsNaN(t.Values[i][j]) {
				v = nil
			}
			if _, err := stmt.Exec(res.RunID, i, subj, j, par, v); err != nil {
				return fmt.Errorf("insert estimate: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Infof("Saved run %s (%s)", res.RunID, res.Model)
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, model, created, n_subj, init_fallback, settings_json FROM runs ORDER BY created DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		created  string
		settings string
	)
	if err := sc.Scan(&r.ID, &r.Model, &created, &r.NSubj, &r.InitFallback, &settings); err != nil {
		return r, err
	}
	var err error
	if r.Created, err = time.Parse(timeFormat, created); err != nil {
		return r, fmt.Errorf("run %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(settings), &r.Settings); err != nil {
		return r, fmt.Errorf("run %s settings: %w", r.ID, err)
	}
	return r, nil
}

// Get returns a stored run.
func (s *Store) Get(id string) (Run, error) {
	row := s.db.QueryRow(
		`SELECT id, model, created, n_subj, init_fallback, settings_json FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("%w: %s", ErrNoRun, id)
	}
	return r, err
}

// Estimates returns the individual estimates of a run in their
// original subject and parameter order.
func (s *Store) Estimates(runID string) (*summary.Table, error) {
	rows, err := s.db.Query(
		`SELECT subject_idx, subject, parameter_idx, parameter, value FROM estimates
		 WHERE run_id = ? ORDER BY subject_idx, parameter_idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	t := &summary.Table{}
	for rows.Next() {
		var (
			i, j      int
			subj, par string
			value     sql.NullFloat64
		)
		if err := rows.Scan(&i, &subj, &j, &par, &value); err != nil {
			return nil, err
		}
		if i == len(t.Subjects) {
			t.Subjects = append(t.Subjects, subj)
			t.Values = append(t.Values, nil)
		}
		if i == 0 {
			t.Parameters = append(t.Parameters, par)
		}
		v := value.Float64
		if !value.Valid {
			v = math.NaN()
		}
		t.Values[i] = append(t.Values[i], v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if t.Subjects == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRun, runID)
	}
	return t, nil
}
