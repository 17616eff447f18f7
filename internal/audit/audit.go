// Package audit keeps an append-only trail of appointment changes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Action identifies what happened to an appointment.
type Action string

const (
	ActionScheduled Action = "appointment.scheduled"
	ActionCancelled Action = "appointment.cancelled"
)

// Entry is an immutable audit record.
type Entry struct {
	ID            string          `json:"id"`
	Action        Action          `json:"action"`
	AppointmentID string          `json:"appointment_id"`
	PatientID     string          `json:"patient_id,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Log writes entries to appointment_audit_events. A nil Log or nil DB is a no-op.
type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log {
	return &Log{db: db}
}

// Record appends an entry, filling ID and CreatedAt when empty.
func (l *Log) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	details := entry.Details
	if len(details) == 0 {
		details = json.RawMessage(`{}`)
	}

	query := `
		INSERT INTO appointment_audit_events (
			id, action, appointment_id, patient_id, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.AppointmentID,
		nullString(entry.PatientID),
		[]byte(details),
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to record event: %w", err)
	}
	return nil
}

// ListForAppointment returns the trail of one appointment, oldest first,
// optionally narrowed to the given actions.
func (l *Log) ListForAppointment(ctx context.Context, appointmentID string, actions ...Action) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}
	filter := make([]string, 0, len(actions))
	for _, a := range actions {
		filter = append(filter, string(a))
	}

	query := `
		SELECT id, action, appointment_id, COALESCE(patient_id, ''), details, created_at
		FROM appointment_audit_events
		WHERE appointment_id = $1
		  AND (cardinality($2::text[]) = 0 OR action = ANY($2))
		ORDER BY created_at ASC
	`
	rows, err := l.db.QueryContext(ctx, query, appointmentID, pq.Array(filter))
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.AppointmentID, &e.PatientID, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Action = Action(action)
		e.Details = append(json.RawMessage(nil), details...)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
