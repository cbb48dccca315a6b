package store

import (
	"database/sql"
	"time"
)

// DefaultEventLimit bounds List when no limit is given.
const DefaultEventLimit = 100

// Event is one recognized gesture.
type Event struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Gesture     string    `json:"gesture"`
	TimestampMs int64     `json:"timestamp_ms"`
	Ambiguous   bool      `json:"ambiguous"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventRepository provides access to the gesture event log.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Create appends an event to the log.
func (r *EventRepository) Create(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO events (id, session_id, gesture, timestamp_ms, ambiguous, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Gesture, e.TimestampMs, e.Ambiguous, e.CreatedAt,
	)
	return err
}

// List returns the newest events first. An empty sessionID lists all
// sessions; a non-positive limit uses DefaultEventLimit.
func (r *EventRepository) List(sessionID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	query := `SELECT id, session_id, gesture, timestamp_ms, ambiguous, created_at FROM events`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY created_at DESC, timestamp_ms DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Gesture, &e.TimestampMs, &e.Ambiguous, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// Count returns the number of events for a session, or all events when
// sessionID is empty.
func (r *EventRepository) Count(sessionID string) (int, error) {
	var n int
	var err error
	if sessionID == "" {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	} else {
		err = r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	}
	return n, err
}
