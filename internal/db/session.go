package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session ID has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one recording run of the daemon.
type Session struct {
	ID         string     `json:"session_id"`
	Source     string     `json:"source"`
	ConfigJSON string     `json:"config_json"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Frames     int        `json:"frames"`
}

// FrameRecord is one applied frame as stored.
type FrameRecord struct {
	Seq        uint64
	ReceivedAt time.Time
	Payload    []byte
}

// StartSession creates a session row and returns its new ID.
func (db *DB) StartSession(source, configJSON string, at time.Time) (string, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, source, config_json, started_unix_nanos) VALUES (?, ?, ?, ?)`,
		id, source, configJSON, at.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession stamps the end time on a session.
func (db *DB) EndSession(id string, at time.Time) error {
	res, err := db.Exec(`UPDATE sessions SET ended_unix_nanos = ? WHERE session_id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

const sessionColumns = `s.session_id, s.source, s.config_json, s.started_unix_nanos, s.ended_unix_nanos,
	(SELECT COUNT(*) FROM frames f WHERE f.session_id = s.session_id)`

func scanSession(row interface{ Scan(...any) error }) (Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.Source, &s.ConfigJSON, &started, &ended, &s.Frames); err != nil {
		return Session{}, err
	}
	s.StartedAt = time.Unix(0, started).UTC()
	if ended.Valid {
		t := time.Unix(0, ended.Int64).UTC()
		s.EndedAt = &t
	}
	return s, nil
}

// Session returns one session by ID.
func (db *DB) Session(id string) (Session, error) {
	s, err := scanSession(db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return s, nil
}

// Sessions lists sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSession returns the most recently started session.
func (db *DB) LatestSession() (Session, error) {
	list, err := db.Sessions(1)
	if err != nil {
		return Session{}, err
	}
	if len(list) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return list[0], nil
}

// SessionFrames returns a session's frames in sequence order.
func (db *DB) SessionFrames(id string) ([]FrameRecord, error) {
	rows, err := db.Query(
		`SELECT seq, received_unix_nanos, payload FROM frames WHERE session_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load frames for %s: %w", id, err)
	}
	defer rows.Close()

	var out []FrameRecord
	for rows.Next() {
		var (
			r  FrameRecord
			ns int64
		)
		if err := rows.Scan(&r.Seq, &ns, &r.Payload); err != nil {
			return nil, err
		}
		r.ReceivedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// TriggerCounts returns how often each rule fired in a session.
func (db *DB) TriggerCounts(id string) (map[string]int, error) {
	rows, err := db.Query(`SELECT name, COUNT(*) FROM triggers WHERE session_id = ? GROUP BY name`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count triggers for %s: %w", id, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			name string
			n    int
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, rows.Err()
}

// DeleteSession removes a session with its frames and triggers.
func (db *DB) DeleteSession(id string) error {
	res, err := db.Exec(`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}
