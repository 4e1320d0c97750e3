// Package edit orchestrates message edits: authorize, lock, splice the
// edited message into the conversation, replay everything after it, and
// persist the rebuilt state atomically.
//
// Every attempt leaves an audit entry whether it succeeds or not, and
// the lock is released on every path. A failed replay never changes the
// stored order.
package edit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/textilio/intake/internal/auth"
	"github.com/textilio/intake/internal/engine"
	"github.com/textilio/intake/internal/order"
	"github.com/textilio/intake/internal/store"
)

// historyLimit bounds how many audit entries History returns.
const historyLimit = 100

// Request names the message to edit and its replacement text.
type Request struct {
	OrderID    string
	MessageID  string
	NewContent string
}

// Result reports a successful edit: the persisted conversation and
// state, plus one replay entry per user message re-applied after the
// edit point.
type Result struct {
	OrderID      string               `json:"order_id"`
	MessageID    string               `json:"message_id"`
	EditedBy     string               `json:"edited_by"`
	Conversation []order.Message      `json:"conversation"`
	State        order.State          `json:"state"`
	Replay       []engine.ReplayEntry `json:"replay"`
}

// Service coordinates the stores, the reducer, and the caller identity
// for edit operations.
type Service struct {
	store   *store.Store
	auth    auth.Provider
	reducer *engine.Reducer
	ids     IDGenerator
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithIDGenerator overrides audit id generation. Used by tests.
func WithIDGenerator(ids IDGenerator) Option {
	return func(s *Service) {
		s.ids = ids
	}
}

// WithNowFunc overrides the clock. Used by tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates an edit service.
func NewService(st *store.Store, provider auth.Provider, reducer *engine.Reducer, opts ...Option) *Service {
	s := &Service{
		store:   st,
		auth:    provider,
		reducer: reducer,
		ids:     UUIDv7Generator{},
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EditMessage edits one user message and replays the conversation suffix.
//
// The sequence is: validate, authorize, acquire the edit lock via
// compare-and-set, splice the new text, rebuild the state before the
// edit point, strictly replay from the edit point, persist conversation
// and state in one write, release the lock. Failure at any step after
// the lock is taken still unlocks and still audits.
func (s *Service) EditMessage(ctx context.Context, req Request) (*Result, error) {
	if req.OrderID == "" || req.MessageID == "" {
		return nil, newError(ErrCodeBadRequest, req.OrderID, "order id and message id are required")
	}
	if strings.TrimSpace(req.NewContent) == "" {
		return nil, newError(ErrCodeBadRequest, req.OrderID, "new content must not be empty")
	}

	user, err := s.auth.Current(ctx)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnauthorized, Message: "no authenticated user", OrderID: req.OrderID, Err: err}
	}

	o, err := s.store.ReadOrder(ctx, req.OrderID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, newError(ErrCodeNotFound, req.OrderID, "order not found")
		}
		return nil, &Error{Code: ErrCodeInternal, Message: "read order", OrderID: req.OrderID, Err: err}
	}

	if !o.IsOwner(user.ID) && !user.IsAdmin() {
		s.audit(ctx, req, user, store.EventEditFailed, map[string]any{"reason": "unauthorized"})
		return nil, newError(ErrCodeUnauthorized, req.OrderID, "user %s may not edit this order", user.ID)
	}

	idx := findMessage(o.Conversation, req.MessageID)
	if idx == -1 {
		s.audit(ctx, req, user, store.EventEditAttempt, map[string]any{
			"error": "message_not_found",
		})
		return nil, newError(ErrCodeNotFound, req.OrderID, "message %s not found", req.MessageID)
	}
	if o.Conversation[idx].Role != order.RoleUser {
		return nil, newError(ErrCodeBadRequest, req.OrderID, "only user messages can be edited")
	}

	s.audit(ctx, req, user, store.EventEditAttempt, map[string]any{
		"old_text": o.Conversation[idx].Content,
		"new_text": req.NewContent,
	})

	acquired, err := s.store.TryLockOrder(ctx, req.OrderID)
	if err != nil {
		return nil, &Error{Code: ErrCodeInternal, Message: "acquire edit lock", OrderID: req.OrderID, Err: err}
	}
	if !acquired {
		s.audit(ctx, req, user, store.EventEditFailed, map[string]any{"reason": "locked"})
		return nil, newError(ErrCodeConflict, req.OrderID, "another edit is in progress")
	}

	// PersistEdit releases the lock together with the write; every other
	// exit releases it here.
	persisted := false
	defer func() {
		if persisted {
			return
		}
		if err := s.store.UnlockOrder(context.WithoutCancel(ctx), req.OrderID); err != nil {
			s.log.Error("failed to release edit lock, order stays locked until TTL expiry",
				"order_id", req.OrderID,
				"error", err,
			)
		}
	}()

	conversation := order.CloneConversation(o.Conversation)
	edited := &conversation[idx]
	if edited.OriginalContent == "" {
		edited.OriginalContent = edited.Content
	}
	edited.Content = req.NewContent
	now := s.now()
	edited.EditedAt = &now
	edited.EditedBy = user.ID

	prefix := s.reducer.BuildState(conversation[:idx])
	state, entries, err := s.reducer.Replay(prefix, conversation[idx:], idx)
	if err != nil {
		failedAt := -1
		var replayErr *engine.ReplayError
		if errors.As(err, &replayErr) {
			failedAt = replayErr.Index
		}
		s.audit(ctx, req, user, store.EventEditFailed, map[string]any{
			"reason":      "reparse_failed",
			"error":       err.Error(),
			"failed_at":   failedAt,
			"replay_logs": entries,
		})
		return nil, &Error{
			Code:    ErrCodeReparseFailed,
			Message: "edited conversation no longer parses",
			OrderID: req.OrderID,
			Err:     err,
		}
	}

	if err := s.store.PersistEdit(ctx, req.OrderID, conversation, state); err != nil {
		s.audit(ctx, req, user, store.EventEditFailed, map[string]any{
			"reason": "persist_failed",
			"error":  err.Error(),
		})
		return nil, &Error{Code: ErrCodeInternal, Message: "persist edit", OrderID: req.OrderID, Err: err}
	}
	persisted = true

	s.audit(ctx, req, user, store.EventEditSuccess, map[string]any{
		"replayed_messages": len(entries),
		"replay_logs":       entries,
	})
	s.log.Info("message edited",
		"order_id", req.OrderID,
		"message_id", req.MessageID,
		"user_id", user.ID,
		"replayed_messages", len(entries),
	)

	return &Result{
		OrderID:      req.OrderID,
		MessageID:    req.MessageID,
		EditedBy:     user.ID,
		Conversation: conversation,
		State:        state,
		Replay:       entries,
	}, nil
}

// History returns the audit trail for an order, newest first. Admin
// only: the trail records other users' activity, so even the order's
// owner may not read it.
func (s *Service) History(ctx context.Context, orderID string) ([]store.AuditEntry, error) {
	user, err := s.auth.Current(ctx)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnauthorized, Message: "no authenticated user", OrderID: orderID, Err: err}
	}
	if !user.IsAdmin() {
		return nil, newError(ErrCodeUnauthorized, orderID, "viewing the audit history requires the admin role")
	}

	if _, err := s.store.ReadOrder(ctx, orderID); err != nil {
		if store.IsNotFound(err) {
			return nil, newError(ErrCodeNotFound, orderID, "order not found")
		}
		return nil, &Error{Code: ErrCodeInternal, Message: "read order", OrderID: orderID, Err: err}
	}

	entries, err := s.store.ListAudit(ctx, orderID, historyLimit)
	if err != nil {
		return nil, &Error{Code: ErrCodeInternal, Message: "list audit", OrderID: orderID, Err: err}
	}
	return entries, nil
}

// ClearLock force-releases an order's edit lock. Admin only; used when a
// holder crashed and the TTL has not yet expired.
func (s *Service) ClearLock(ctx context.Context, orderID string) error {
	user, err := s.auth.Current(ctx)
	if err != nil {
		return &Error{Code: ErrCodeUnauthorized, Message: "no authenticated user", OrderID: orderID, Err: err}
	}
	if !user.IsAdmin() {
		return newError(ErrCodeUnauthorized, orderID, "clearing a lock requires the admin role")
	}

	if _, err := s.store.ReadOrder(ctx, orderID); err != nil {
		if store.IsNotFound(err) {
			return newError(ErrCodeNotFound, orderID, "order not found")
		}
		return &Error{Code: ErrCodeInternal, Message: "read order", OrderID: orderID, Err: err}
	}

	if err := s.store.UnlockOrder(ctx, orderID); err != nil {
		return &Error{Code: ErrCodeInternal, Message: "clear lock", OrderID: orderID, Err: err}
	}

	s.audit(ctx, Request{OrderID: orderID}, user, store.EventEditLockCleared, nil)
	return nil
}

// findMessage resolves a message reference: its id, or its decimal
// conversation index as a fallback for conversations recorded before ids
// were assigned.
func findMessage(conversation []order.Message, ref string) int {
	for i := range conversation {
		if conversation[i].ID == ref {
			return i
		}
	}
	if idx, err := strconv.Atoi(ref); err == nil && idx >= 0 && idx < len(conversation) {
		return idx
	}
	return -1
}

// audit appends an entry best-effort: an audit write failure is logged
// but never fails the operation it describes.
func (s *Service) audit(ctx context.Context, req Request, user auth.User, event string, details map[string]any) {
	entry := store.AuditEntry{
		ID:        s.ids.Generate(),
		OrderID:   req.OrderID,
		Event:     event,
		UserID:    user.ID,
		MessageID: req.MessageID,
		Timestamp: s.now(),
		Details:   details,
	}
	if err := s.store.AppendAudit(context.WithoutCancel(ctx), entry); err != nil {
		s.log.Error("failed to append audit entry",
			"order_id", req.OrderID,
			"event", event,
			"error", err,
		)
	}
}
