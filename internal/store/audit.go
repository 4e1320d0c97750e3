package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Audit event names.
const (
	EventEditAttempt     = "edit_attempt"
	EventEditFailed      = "edit_failed"
	EventEditSuccess     = "edit_success"
	EventEditLockCleared = "edit_lock_cleared"
)

// AuditEntry is one append-only record of an edit attempt, failure, or
// success.
type AuditEntry struct {
	ID        string         `json:"id"`
	OrderID   string         `json:"order_id"`
	Event     string         `json:"event"`
	UserID    string         `json:"user_id"`
	MessageID string         `json:"message_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// AppendAudit inserts an audit entry. Entries are never updated or
// deleted. A zero Timestamp is stamped with the store clock.
func (s *Store) AppendAudit(ctx context.Context, entry AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	details := entry.Details
	if details == nil {
		details = map[string]any{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("append audit: marshal details: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, order_id, event, user_id, message_id, ts, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.OrderID,
		entry.Event,
		entry.UserID,
		entry.MessageID,
		entry.Timestamp.UnixMilli(),
		string(detailsJSON),
	)
	if err != nil {
		return fmt.Errorf("append audit for order %s: %w", entry.OrderID, err)
	}

	return nil
}

// ListAudit returns the most recent audit entries for an order, newest
// first, up to limit.
func (s *Store) ListAudit(ctx context.Context, orderID string, limit int) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, event, user_id, message_id, ts, details
		FROM audit_log
		WHERE order_id = ?
		ORDER BY ts DESC, id DESC
		LIMIT ?
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit for order %s: %w", orderID, err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			entry   AuditEntry
			ts      int64
			details string
		)
		if err := rows.Scan(&entry.ID, &entry.OrderID, &entry.Event, &entry.UserID,
			&entry.MessageID, &ts, &details); err != nil {
			return nil, fmt.Errorf("list audit for order %s: scan: %w", orderID, err)
		}
		entry.Timestamp = time.UnixMilli(ts)
		if err := json.Unmarshal([]byte(details), &entry.Details); err != nil {
			return nil, fmt.Errorf("list audit for order %s: unmarshal details: %w", orderID, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit for order %s: %w", orderID, err)
	}

	return entries, nil
}
