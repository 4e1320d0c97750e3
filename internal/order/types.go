// Package order defines the value types the intake engine accumulates:
// the order state, its per-color variants, and the conversation messages
// the state is derived from.
//
// State is a pure value. The reducer never mutates a caller's State; it
// clones, applies, and returns. Everything derived (isComplete, error,
// remaining) is recomputed from the assigned quantities after every step,
// never set independently.
package order

import (
	"time"

	"github.com/textilio/intake/internal/textnorm"
)

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrOverCapacity tags a variant whose assigned size quantities sum to
// more than its declared total.
const ErrOverCapacity = "over_capacity"

// Message is one turn of the intake conversation.
//
// When a message is edited, the original text is preserved in
// OriginalContent and the edit is stamped with EditedAt/EditedBy so the
// audit trail can show exactly what changed.
type Message struct {
	ID              string     `json:"id" yaml:"id,omitempty"`
	Role            Role       `json:"role" yaml:"role"`
	Content         string     `json:"content" yaml:"content"`
	CreatedAt       time.Time  `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	EditedAt        *time.Time `json:"edited_at,omitempty" yaml:"edited_at,omitempty"`
	EditedBy        string     `json:"edited_by,omitempty" yaml:"edited_by,omitempty"`
	OriginalContent string     `json:"original_content,omitempty" yaml:"original_content,omitempty"`
}

// Personalization is one variant's personalization decision.
type Personalization struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Technique string `json:"technique,omitempty" yaml:"technique,omitempty"`
	Zone      string `json:"zone,omitempty" yaml:"zone,omitempty"`
}

// Variant is one color's worth of the order: its declared total, the
// per-size quantities assigned so far, and the personalization choice.
//
// QuantitiesPerSize entries are additive across messages - a size's value
// only ever grows, except through corrective replay of an edited history.
type Variant struct {
	Color             string          `json:"color" yaml:"color"`
	TotalQuantity     *int            `json:"total_quantity,omitempty" yaml:"total_quantity,omitempty"`
	QuantitiesPerSize map[string]int  `json:"quantities_per_size" yaml:"quantities_per_size"`
	Personalization   Personalization `json:"personalization" yaml:"personalization"`
	IsComplete        bool            `json:"is_complete" yaml:"is_complete"`
	Error             string          `json:"error,omitempty" yaml:"error,omitempty"`
	Remaining         int             `json:"remaining,omitempty" yaml:"remaining,omitempty"`
}

// State is the accumulated interpretation of a conversation.
type State struct {
	ProductType         string    `json:"product_type,omitempty" yaml:"product_type,omitempty"`
	Variants            []Variant `json:"variants" yaml:"variants"`
	Budget              *int      `json:"budget,omitempty" yaml:"budget,omitempty"`
	LastQuestion        string    `json:"last_question,omitempty" yaml:"last_question,omitempty"`
	ActiveVariant       string    `json:"active_variant,omitempty" yaml:"active_variant,omitempty"`
	ActiveVariantLocked bool      `json:"active_variant_locked,omitempty" yaml:"active_variant_locked,omitempty"`
}

// NewVariant returns an empty variant for the given canonical color.
// A nil total marks a placeholder created from a bare color mention.
func NewVariant(color string) Variant {
	return Variant{
		Color:             color,
		QuantitiesPerSize: map[string]int{},
	}
}

// AssignedTotal returns the sum of all per-size quantities.
func (v *Variant) AssignedTotal() int {
	sum := 0
	for _, q := range v.QuantitiesPerSize {
		sum += q
	}
	return sum
}

// Clone returns a deep copy of the variant.
func (v Variant) Clone() Variant {
	out := v
	out.QuantitiesPerSize = make(map[string]int, len(v.QuantitiesPerSize))
	for size, q := range v.QuantitiesPerSize {
		out.QuantitiesPerSize[size] = q
	}
	if v.TotalQuantity != nil {
		total := *v.TotalQuantity
		out.TotalQuantity = &total
	}
	return out
}

// Clone returns a deep copy of the state. The reducer clones before every
// application so the caller's state is never mutated.
func (s State) Clone() State {
	out := s
	out.Variants = make([]Variant, len(s.Variants))
	for i, v := range s.Variants {
		out.Variants[i] = v.Clone()
	}
	if s.Budget != nil {
		budget := *s.Budget
		out.Budget = &budget
	}
	return out
}

// VariantIndex returns the index of the variant with the given color
// (case/diacritic-insensitive), or -1 if no such variant exists.
//
// Index-based addressing matters here: the reducer appends to Variants
// mid-step, which would invalidate element pointers.
func (s *State) VariantIndex(color string) int {
	folded := textnorm.Fold(color)
	for i := range s.Variants {
		if textnorm.Fold(s.Variants[i].Color) == folded {
			return i
		}
	}
	return -1
}

// CloneConversation deep-copies a message slice.
func CloneConversation(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		if msgs[i].EditedAt != nil {
			at := *msgs[i].EditedAt
			out[i].EditedAt = &at
		}
	}
	return out
}
