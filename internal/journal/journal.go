// Package journal keeps an append-only record of deployment events in
// a project-local SQLite database. It serves `brigade history`;
// recovery never reads it, statuses in the plan store drive that.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fieldmarshal/brigade/internal/events"
)

// Entry is one journaled event.
type Entry struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	PlanID    string    `json:"plan_id,omitempty"`
	AgentID   string    `json:"agent_id,omitempty"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	Files     string    `json:"files,omitempty"`
	Wave      int       `json:"wave"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSummary aggregates one run's journal entries.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	PlanID     string    `json:"plan_id,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Events     int       `json:"events"`
}

// Journal is the append-only event log.
type Journal struct {
	db   *sql.DB
	path string
}

// Path returns the journal location inside a repository.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, ".brigade", "journal.db")
}

// Open opens the journal at path, creating parent directories and the
// schema as needed.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			plan_id TEXT,
			agent_id TEXT,
			event TEXT NOT NULL,
			detail TEXT,
			files TEXT,
			wave INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_run_id ON events(run_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}

	return &Journal{db: db, path: path}, nil
}

// OpenProject opens the journal for a repository root.
func OpenProject(repoRoot string) (*Journal, error) {
	return Open(Path(repoRoot))
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends one event under the given run ID.
func (j *Journal) Record(runID string, event events.Event) error {
	detail := event.Message
	if event.Err != nil {
		if detail != "" {
			detail += ": "
		}
		detail += event.Err.Error()
	}
	at := event.Timestamp
	if at.IsZero() {
		at = time.Now()
	}

	_, err := j.db.Exec(`
		INSERT INTO events (run_id, plan_id, agent_id, event, detail, files, wave, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, event.PlanID, event.AgentID, string(event.Type), detail,
		strings.Join(event.Files, ", "), event.Wave, at.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Listen records every event on ch under runID until ch closes. Run it
// in its own goroutine; write failures are returned after the stream
// ends, keeping the last one.
func (j *Journal) Listen(runID string, ch <-chan events.Event) error {
	var last error
	for event := range ch {
		if err := j.Record(runID, event); err != nil {
			last = err
		}
	}
	return last
}

// Entries returns one run's events in append order.
func (j *Journal) Entries(runID string) ([]Entry, error) {
	rows, err := j.db.Query(`
		SELECT id, run_id, plan_id, agent_id, event, detail, files, wave, created_at
		FROM events WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var planID, agentID, detail, files sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.RunID, &planID, &agentID, &e.Type, &detail, &files, &e.Wave, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.PlanID = planID.String
		e.AgentID = agentID.String
		e.Detail = detail.String
		e.Files = files.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs summarizes journaled runs, newest first.
func (j *Journal) Runs() ([]RunSummary, error) {
	rows, err := j.db.Query(`
		SELECT run_id, MAX(plan_id), MIN(created_at), MAX(created_at), COUNT(*)
		FROM events GROUP BY run_id ORDER BY MIN(created_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var planID sql.NullString
		var started, finished string
		if err := rows.Scan(&r.RunID, &planID, &started, &finished, &r.Events); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.PlanID = planID.String
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
