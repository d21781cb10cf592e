package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"go-sunab/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists estimation jobs, their errors, and their event-study
// results.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at dbPath and ensures the
// schema exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			spec TEXT,
			status TEXT,
			created_at DATETIME,
			updated_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS job_errors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT,
			error_message TEXT,
			created_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS result_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			job_id TEXT,
			event_time REAL,
			att REAL,
			se REAL,
			position INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS result_summaries (
			job_id TEXT PRIMARY KEY,
			status TEXT,
			aggregated INTEGER,
			att REAL,
			se_att REAL,
			n_cohorts INTEGER,
			n_periods INTEGER,
			n_obs INTEGER,
			created_at DATETIME
		);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveJob stores a new estimation job in pending state.
func (s *Store) SaveJob(jobID string, spec model.EstimationJobSpec) error {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`INSERT INTO jobs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		jobID, specJSON, "pending", now, now)
	return err
}

// UpdateJobStatus updates a job's status.
func (s *Store) UpdateJobStatus(jobID string, status string) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, status, now, jobID)
	return err
}

// SaveJobError records an error for a job.
func (s *Store) SaveJobError(jobID string, jobErr error) error {
	if jobErr == nil {
		return nil
	}
	now := time.Now().UTC()
	_, err := s.db.Exec(`INSERT INTO job_errors (job_id, error_message, created_at) VALUES (?, ?, ?)`,
		jobID, jobErr.Error(), now)
	return err
}

// GetJobErrors returns the recorded error messages of a job.
func (s *Store) GetJobErrors(jobID string) ([]map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT error_message, created_at FROM job_errors WHERE job_id = ? ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var msg string
		var createdAt time.Time
		if err := rows.Scan(&msg, &createdAt); err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"message":   msg,
			"createdAt": createdAt,
		})
	}
	return out, rows.Err()
}

// ListJobs returns all jobs with basic info, most recent first.
func (s *Store) ListJobs() ([]map[string]interface{}, error) {
	rows, err := s.db.Query(`SELECT id, status, created_at, updated_at FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []map[string]interface{}
	for rows.Next() {
		var id, status string
		var createdAt, updatedAt time.Time
		if err := rows.Scan(&id, &status, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, map[string]interface{}{
			"id":        id,
			"status":    status,
			"createdAt": createdAt,
			"updatedAt": updatedAt,
		})
	}
	return jobs, rows.Err()
}

// GetJob fetches a job's full spec and status.
func (s *Store) GetJob(jobID string) (map[string]interface{}, error) {
	var specJSON string
	var status string
	var createdAt, updatedAt time.Time

	err := s.db.QueryRow(`SELECT spec, status, created_at, updated_at FROM jobs WHERE id = ?`, jobID).
		Scan(&specJSON, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	var spec model.EstimationJobSpec
	if err := json.Unmarshal([]byte(specJSON), &spec); err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"id":        jobID,
		"spec":      spec,
		"status":    status,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
	}, nil
}

// SaveResult stores the event-study profile and summary of a completed
// estimation. NaN values (the empty result's overall effect) are stored as
// NULL.
func (s *Store) SaveResult(jobID string, res *model.SunAbrahamResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for i := range res.AttByEvent {
		_, err := tx.Exec(`INSERT INTO result_events (job_id, event_time, att, se, position) VALUES (?, ?, ?, ?, ?)`,
			jobID, res.EventTimes[i], nullable(res.AttByEvent[i]), nullable(res.SeByEvent[i]), i)
		if err != nil {
			return err
		}
	}

	var att, seAtt interface{}
	if res.Att != nil {
		att = nullable(*res.Att)
	}
	if res.SeAtt != nil {
		seAtt = nullable(*res.SeAtt)
	}
	_, err = tx.Exec(`INSERT INTO result_summaries (job_id, status, aggregated, att, se_att, n_cohorts, n_periods, n_obs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, res.Params.Status, res.Params.Aggregated, att, seAtt,
		res.NCohorts, res.NPeriods, res.Params.NObs, time.Now().UTC())
	if err != nil {
		return err
	}
	return tx.Commit()
}

// GetResult reassembles the stored event-study profile of a job.
func (s *Store) GetResult(jobID string) (map[string]interface{}, error) {
	var status string
	var aggregated bool
	var att, seAtt sql.NullFloat64
	var nCohorts, nPeriods, nObs int
	err := s.db.QueryRow(`SELECT status, aggregated, att, se_att, n_cohorts, n_periods, n_obs FROM result_summaries WHERE job_id = ?`, jobID).
		Scan(&status, &aggregated, &att, &seAtt, &nCohorts, &nPeriods, &nObs)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("no result for job %s", jobID)
		}
		return nil, err
	}

	rows, err := s.db.Query(`SELECT event_time, att, se FROM result_events WHERE job_id = ? ORDER BY position`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eventTimes, attByEvent, seByEvent []float64
	for rows.Next() {
		var et float64
		var a, se sql.NullFloat64
		if err := rows.Scan(&et, &a, &se); err != nil {
			return nil, err
		}
		eventTimes = append(eventTimes, et)
		attByEvent = append(attByEvent, fromNullable(a))
		seByEvent = append(seByEvent, fromNullable(se))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := map[string]interface{}{
		"jobId":      jobID,
		"status":     status,
		"aggregated": aggregated,
		"eventTimes": eventTimes,
		"attByEvent": attByEvent,
		"seByEvent":  seByEvent,
		"nCohorts":   nCohorts,
		"nPeriods":   nPeriods,
		"nObs":       nObs,
	}
	if att.Valid {
		out["att"] = att.Float64
	}
	if seAtt.Valid {
		out["seAtt"] = seAtt.Float64
	}
	return out, nil
}

func nullable(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func fromNullable(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
