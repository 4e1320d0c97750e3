package engine

import (
	"fmt"

	"github.com/textilio/intake/internal/order"
)

// VariantSnapshot is a variant's numbers at one point of a replay,
// captured for the audit trail.
type VariantSnapshot struct {
	Color         string         `json:"color"`
	Quantities    map[string]int `json:"quantities"`
	Assigned      int            `json:"assigned"`
	TotalQuantity *int           `json:"total_quantity,omitempty"`
	IsComplete    bool           `json:"is_complete"`
	Error         string         `json:"error,omitempty"`
}

// ReplayError reports the conversation message a strict replay failed
// on. Unwraps to the underlying reducer error.
type ReplayError struct {
	Index     int
	MessageID string
	Err       error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("message %d: %v", e.Index, e.Err)
}

func (e *ReplayError) Unwrap() error { return e.Err }

// ReplayEntry records one user-message step of a strict replay, with
// before/after snapshots of every variant.
type ReplayEntry struct {
	Index               int               `json:"idx"`
	MessageID           string            `json:"message_id"`
	LastQuestion        string            `json:"last_question,omitempty"`
	ActiveVariantBefore string            `json:"active_variant_before,omitempty"`
	ActiveVariantAfter  string            `json:"active_variant_after,omitempty"`
	TargetVariant       string            `json:"target_variant,omitempty"`
	ParsedSizes         []string          `json:"parsed_sizes"`
	ParsedColors        []string          `json:"parsed_colors"`
	Before              []VariantSnapshot `json:"before"`
	After               []VariantSnapshot `json:"after"`
}

// BuildState folds the reducer over a conversation from an empty state.
//
// User messages go through Apply; assistant messages set the last
// question used for elliptical replies. A reducer failure on one
// historical message is logged and skipped so a single bad turn does not
// abort reconstruction of the rest. Referentially transparent: the same
// message list always yields an identical state.
func (r *Reducer) BuildState(msgs []order.Message) order.State {
	st := order.State{Variants: []order.Variant{}}

	for i, msg := range msgs {
		switch msg.Role {
		case order.RoleUser:
			next, _, err := r.Apply(st, msg.Content)
			if err != nil {
				r.log.Warn("skipping unparseable historical message",
					"index", i,
					"message_id", msg.ID,
					"error", err,
				)
				continue
			}
			st = next

		case order.RoleAssistant:
			st.LastQuestion = msg.Content
		}
	}

	return st
}

// Replay applies msgs on top of base, recording one entry per user
// message. Unlike BuildState it is strict: the first reducer failure
// aborts the whole replay, returning a *ReplayError naming the failing
// message and the entries accumulated so far for diagnostics. Used by
// the edit pipeline, where a contradiction
// introduced by the edited text must surface rather than be skipped.
//
// offset labels entries with their absolute conversation index.
func (r *Reducer) Replay(base order.State, msgs []order.Message, offset int) (order.State, []ReplayEntry, error) {
	st := base.Clone()
	entries := []ReplayEntry{}

	for i, msg := range msgs {
		if msg.Role == order.RoleAssistant {
			st.LastQuestion = msg.Content
			continue
		}
		if msg.Role != order.RoleUser {
			continue
		}

		entry := ReplayEntry{
			Index:               offset + i,
			MessageID:           msg.ID,
			LastQuestion:        st.LastQuestion,
			ActiveVariantBefore: st.ActiveVariant,
			Before:              snapshotVariants(st.Variants),
		}

		next, diag, err := r.Apply(st, msg.Content)
		if err != nil {
			return order.State{}, entries, &ReplayError{
				Index:     offset + i,
				MessageID: msg.ID,
				Err:       err,
			}
		}

		entry.ActiveVariantAfter = next.ActiveVariant
		entry.TargetVariant = diag.TargetVariant
		entry.ParsedSizes = diag.ParsedSizes
		entry.ParsedColors = diag.ParsedColors
		entry.After = snapshotVariants(next.Variants)
		entries = append(entries, entry)

		st = next
	}

	return st, entries, nil
}

func snapshotVariants(variants []order.Variant) []VariantSnapshot {
	out := make([]VariantSnapshot, len(variants))
	for i, v := range variants {
		clone := v.Clone()
		out[i] = VariantSnapshot{
			Color:         clone.Color,
			Quantities:    clone.QuantitiesPerSize,
			Assigned:      clone.AssignedTotal(),
			TotalQuantity: clone.TotalQuantity,
			IsComplete:    clone.IsComplete,
			Error:         clone.Error,
		}
	}
	return out
}
