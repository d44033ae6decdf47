package lease

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// The partial unique index makes acquisition a single atomic INSERT: at
// most one unreleased row can exist per resource id.
const schema = `
CREATE TABLE IF NOT EXISTS leases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    resource_id TEXT NOT NULL,
    holder_id TEXT NOT NULL,
    acquired_at TIMESTAMP NOT NULL,
    released_at TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_leases_active ON leases(resource_id) WHERE released_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_leases_resource ON leases(resource_id);
`

// Lease is one exclusivity record. Released leases are kept for audit.
type Lease struct {
	ID         int64
	ResourceID string
	HolderID   string
	AcquiredAt time.Time
	ReleasedAt *time.Time
}

// ConflictError reports that a resource is already leased
type ConflictError struct {
	ResourceID string
	HolderID   string
	AcquiredAt time.Time
}

func (e *ConflictError) Error() string {
	if e.HolderID == "" {
		return fmt.Sprintf("lease already held for %s", e.ResourceID)
	}
	return fmt.Sprintf("lease already held for %s by %s since %s",
		e.ResourceID, e.HolderID, e.AcquiredAt.Format(time.RFC3339))
}

// Manager provides SQLite-backed non-blocking leases
type Manager struct {
	db *sql.DB
}

// New creates a Manager with the given database path
func New(dbPath string) (*Manager, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Single connection keeps writes serialized on one handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Manager{db: db}, nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	return m.db.Close()
}

// Acquire attempts an atomic check-and-set on resourceID. It never blocks
// or waits; if the resource is already leased it returns a *ConflictError.
func (m *Manager) Acquire(resourceID, holderID string) error {
	_, err := m.db.Exec(`
		INSERT INTO leases (resource_id, holder_id, acquired_at)
		VALUES (?, ?, ?)
	`, resourceID, holderID, time.Now().UTC())
	if err == nil {
		return nil
	}

	if !strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("acquiring lease for %s: %w", resourceID, err)
	}

	conflict := &ConflictError{ResourceID: resourceID}
	row := m.db.QueryRow(`
		SELECT holder_id, acquired_at FROM leases
		WHERE resource_id = ? AND released_at IS NULL
	`, resourceID)
	// Best effort, the conflict stands even if the holder lookup races
	_ = row.Scan(&conflict.HolderID, &conflict.AcquiredAt)
	return conflict
}

// Release marks the active lease for resourceID as released. Releasing an
// unheld or already-released lease is a no-op.
func (m *Manager) Release(resourceID string) error {
	_, err := m.db.Exec(`
		UPDATE leases SET released_at = ?
		WHERE resource_id = ? AND released_at IS NULL
	`, time.Now().UTC(), resourceID)
	if err != nil {
		return fmt.Errorf("releasing lease for %s: %w", resourceID, err)
	}
	return nil
}

// Active returns all unreleased leases, oldest first
func (m *Manager) Active() ([]Lease, error) {
	rows, err := m.db.Query(`
		SELECT id, resource_id, holder_id, acquired_at FROM leases
		WHERE released_at IS NULL ORDER BY acquired_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leases []Lease
	for rows.Next() {
		var l Lease
		if err := rows.Scan(&l.ID, &l.ResourceID, &l.HolderID, &l.AcquiredAt); err != nil {
			return nil, err
		}
		leases = append(leases, l)
	}
	return leases, rows.Err()
}

// ReleaseOlderThan releases active leases acquired more than age ago and
// returns how many were released. Used for crash recovery.
func (m *Manager) ReleaseOlderThan(age time.Duration) (int, error) {
	now := time.Now().UTC()
	res, err := m.db.Exec(`
		UPDATE leases SET released_at = ?
		WHERE released_at IS NULL AND acquired_at < ?
	`, now, now.Add(-age))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
