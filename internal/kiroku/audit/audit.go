// Package audit records assistant-applied mutations in the audit_log table.
//
// The diary has no undo; the audit trail is the durable answer to "what did
// the assistant change and when". One row is written per executed action,
// success or failure.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kiroku-app/kiroku/common/redact"
	"github.com/kiroku-app/kiroku/internal/kiroku/catalog"
)

// Result values recorded in the audit trail.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Entry is one audit row. The struct is served verbatim by GET /api/audit.
type Entry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"ts"`
	TraceID      string    `json:"traceId"`
	Action       string    `json:"action"`
	Target       string    `json:"target,omitempty"`
	PayloadJSON  string    `json:"payload,omitempty"`
	Result       string    `json:"result"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// Log writes and reads audit rows.
type Log struct {
	db *catalog.Store
}

// New creates an audit Log backed by the application SQLite database.
func New(db *catalog.Store) *Log {
	return &Log{db: db}
}

// Record writes one audit row. payload may be nil; when present it is
// redacted (secret-looking keys masked) before serialization so credentials
// can never end up in the trail.
func (l *Log) Record(ctx context.Context, traceID, action, target, result string, payload map[string]any, errorMsg string) error {
	var payloadJSON sql.NullString
	if payload != nil {
		data, err := json.Marshal(redact.Map(payload))
		if err != nil {
			return fmt.Errorf("audit: marshal payload: %w", err)
		}
		payloadJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := l.db.DB().ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, action, target, payload_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, time.Now().UTC(), traceID, action,
		nullable(target), payloadJSON, result, nullable(errorMsg))
	if err != nil {
		return fmt.Errorf("audit: write entry: %w", err)
	}
	return nil
}

// Recent returns the newest audit rows, newest first. limit defaults to 100.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.DB().QueryContext(ctx, `
		SELECT id, ts, trace_id, action, target, payload_json, result, error_message
		FROM audit_log
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var target, payload, emsg sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.TraceID, &e.Action, &target, &payload, &e.Result, &emsg); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Target = target.String
		e.PayloadJSON = payload.String
		e.ErrorMessage = emsg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
