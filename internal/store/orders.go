package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/textilio/intake/internal/order"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// IsNotFound reports whether err indicates a missing order. Handles
// wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Order is a stored order: its conversation, the state derived from it,
// and the edit-lock bookkeeping.
type Order struct {
	ID            string
	ClientEmail   string
	CreatedBy     string
	Conversation  []order.Message
	State         order.State
	LockedForEdit bool
	LockedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsOwner reports whether the given user id owns this order.
func (o *Order) IsOwner(userID string) bool {
	return o.ClientEmail == userID || o.CreatedBy == userID
}

// CreateOrder inserts a new order.
func (s *Store) CreateOrder(ctx context.Context, o Order) error {
	conversation, err := json.Marshal(o.Conversation)
	if err != nil {
		return fmt.Errorf("create order: marshal conversation: %w", err)
	}
	state, err := json.Marshal(o.State)
	if err != nil {
		return fmt.Errorf("create order: marshal state: %w", err)
	}

	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO orders
		(id, client_email, created_by, conversation, state, locked_for_edit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`,
		o.ID,
		o.ClientEmail,
		o.CreatedBy,
		string(conversation),
		string(state),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}

	return nil
}

// ReadOrder loads an order by id. Returns ErrNotFound if absent.
func (s *Store) ReadOrder(ctx context.Context, id string) (*Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, client_email, created_by, conversation, state,
		       locked_for_edit, locked_at, created_at, updated_at
		FROM orders
		WHERE id = ?
	`, id)

	var (
		o            Order
		conversation string
		state        string
		locked       int
		lockedAt     sql.NullInt64
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&o.ID, &o.ClientEmail, &o.CreatedBy, &conversation, &state,
		&locked, &lockedAt, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read order %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(conversation), &o.Conversation); err != nil {
		return nil, fmt.Errorf("read order %s: unmarshal conversation: %w", id, err)
	}
	if err := json.Unmarshal([]byte(state), &o.State); err != nil {
		return nil, fmt.Errorf("read order %s: unmarshal state: %w", id, err)
	}

	o.LockedForEdit = locked != 0
	if lockedAt.Valid {
		at := time.UnixMilli(lockedAt.Int64)
		o.LockedAt = &at
	}
	o.CreatedAt = time.UnixMilli(createdAt)
	o.UpdatedAt = time.UnixMilli(updatedAt)

	return &o, nil
}

// TryLockOrder attempts to acquire the edit lock via an atomic
// compare-and-set. Returns true if the lock was acquired.
//
// A held lock whose acquisition timestamp is older than the store's lock
// TTL is treated as abandoned and stolen. There is no blocking or
// queueing: a caller that observes false retries later.
func (s *Store) TryLockOrder(ctx context.Context, id string) (bool, error) {
	now := s.now()
	cutoff := now.Add(-s.lockTTL).UnixMilli()

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET locked_for_edit = 1, locked_at = ?
		WHERE id = ?
		  AND (locked_for_edit = 0 OR locked_at IS NULL OR locked_at < ?)
	`, now.UnixMilli(), id, cutoff)
	if err != nil {
		return false, fmt.Errorf("lock order %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("lock order %s: rows affected: %w", id, err)
	}

	return n == 1, nil
}

// UnlockOrder releases the edit lock. Idempotent: unlocking an unlocked
// order is a no-op.
func (s *Store) UnlockOrder(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET locked_for_edit = 0, locked_at = NULL
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("unlock order %s: %w", id, err)
	}
	return nil
}

// PersistEdit atomically replaces an order's conversation and state and
// releases the edit lock, all in one statement so a crash can never leave
// the new conversation with the old state.
func (s *Store) PersistEdit(ctx context.Context, id string, conversation []order.Message, state order.State) error {
	conversationJSON, err := json.Marshal(conversation)
	if err != nil {
		return fmt.Errorf("persist edit %s: marshal conversation: %w", id, err)
	}
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("persist edit %s: marshal state: %w", id, err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET conversation = ?, state = ?, locked_for_edit = 0, locked_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(conversationJSON), string(stateJSON), s.now().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("persist edit %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("persist edit %s: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("persist edit %s: %w", id, ErrNotFound)
	}

	return nil
}
