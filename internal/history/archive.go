package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

// ErrSnapshotNotFound is returned when a snapshot id does not exist.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot describes one saved copy of a conversation.
type Snapshot struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Label     string    `json:"label"`
	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
}

// Archive stores named snapshots of exported history in SQLite. Nothing is
// written unless the user asks for it.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (and creates if needed) the snapshot database at path.
func OpenArchive(path string) (*Archive, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		label TEXT NOT NULL,
		turns INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create snapshots table: %w", err)
	}
	logger.L.Info("snapshot archive initialized", "path", path)
	return &Archive{db: db}, nil
}

// Close closes the database.
func (a *Archive) Close() error { return a.db.Close() }

// Save writes the store's current export under label.
func (a *Archive) Save(ctx context.Context, sessionID, label string, s *Store) (Snapshot, error) {
	payload, n, err := s.export()
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{SessionID: sessionID, Label: label, Turns: n, CreatedAt: time.Now().UTC()}
	res, err := a.db.ExecContext(ctx,
		`INSERT INTO snapshots (session_id, label, turns, payload, created_at) VALUES (?,?,?,?,?);`,
		snap.SessionID, snap.Label, snap.Turns, string(payload), snap.CreatedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot id: %w", err)
	}
	logger.L.Info("snapshot saved", "id", snap.ID, "session", sessionID, "turns", snap.Turns)
	return snap, nil
}

// List returns every snapshot, newest first.
func (a *Archive) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, label, turns, created_at FROM snapshots ORDER BY id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.SessionID, &s.Label, &s.Turns, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Load imports snapshot id into s, replacing its turns.
func (a *Archive) Load(ctx context.Context, id int64, s *Store) error {
	var payload string
	err := a.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE id = ?;`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrSnapshotNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	return s.Import([]byte(payload))
}
