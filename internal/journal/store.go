package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed event and execution persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Append persists a single event
func (s *Store) Append(e Event) error {
	var payloadJSON string
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return err
		}
		payloadJSON = string(b)
	}

	_, err := s.db.Exec(`
		INSERT INTO events (id, type, trace_id, agent_id, target, success, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Type,
		e.TraceID,
		e.AgentID,
		e.Target,
		e.Success,
		payloadJSON,
		e.CreatedAt,
	)
	return err
}

// Recent returns the newest events, most recent first
func (s *Store) Recent(limit int) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, type, trace_id, agent_id, target, success, payload, created_at
		FROM events ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ByTrace returns all events for one trace id in insertion order
func (s *Store) ByTrace(traceID string) ([]Event, error) {
	rows, err := s.db.Query(`
		SELECT id, type, trace_id, agent_id, target, success, payload, created_at
		FROM events WHERE trace_id = ? ORDER BY created_at, id
	`, traceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByType returns how many events of the given type were recorded
func (s *Store) CountByType(eventType string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE type = ?`, eventType).Scan(&n)
	return n, err
}

// RecordExecution persists one execution summary
func (s *Store) RecordExecution(rec ExecutionRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO executions (id, trace_id, request_id, agent_id, branch, commit_sha, success, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.TraceID,
		rec.RequestID,
		rec.AgentID,
		rec.Branch,
		rec.Commit,
		rec.Success,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
	)
	return err
}

// RecentExecutions returns the newest execution records, most recent first
func (s *Store) RecentExecutions(limit int) ([]ExecutionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, trace_id, request_id, agent_id, branch, commit_sha, success, error, started_at, finished_at
		FROM executions ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []ExecutionRecord
	for rows.Next() {
		var rec ExecutionRecord
		var agentID, branch, commitSHA, errText sql.NullString
		var startedAt, finishedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.RequestID, &agentID, &branch, &commitSHA, &rec.Success, &errText, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		rec.AgentID = agentID.String
		rec.Branch = branch.String
		rec.Commit = commitSHA.String
		rec.Error = errText.String
		rec.StartedAt = startedAt.Time
		rec.FinishedAt = finishedAt.Time
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var e Event
		var traceID, agentID, target, payloadJSON sql.NullString
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Type, &traceID, &agentID, &target, &e.Success, &payloadJSON, &createdAt); err != nil {
			return nil, err
		}
		e.TraceID = traceID.String
		e.AgentID = agentID.String
		e.Target = target.String
		e.CreatedAt = createdAt

		if payloadJSON.String != "" {
			var payload map[string]any
			if err := json.Unmarshal([]byte(payloadJSON.String), &payload); err != nil {
				return nil, err
			}
			e.Payload = payload
		}

		events = append(events, e)
	}
	return events, rows.Err()
}
