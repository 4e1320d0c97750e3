package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textilio/intake/internal/catalog"
	"github.com/textilio/intake/internal/order"
)

func newTestReducer(t *testing.T) *Reducer {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	r, err := NewReducer(cat)
	require.NoError(t, err)
	return r
}

// applyAll folds a message sequence from an empty state, failing the test
// on any reducer error.
func applyAll(t *testing.T, r *Reducer, messages ...string) order.State {
	t.Helper()
	st := order.State{}
	for _, msg := range messages {
		next, _, err := r.Apply(st, msg)
		require.NoError(t, err, "message %q", msg)
		st = next
	}
	return st
}

func TestApply_ProductType_FirstWriterWins(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "vreau tricouri", "de fapt hanorace")
	assert.Equal(t, "tricouri", st.ProductType)
}

func TestApply_ProductType_Variations(t *testing.T) {
	r := newTestReducer(t)

	tests := []struct {
		message string
		want    string
	}{
		{"un tricou personalizat", "tricouri"},
		{"T-Shirt alb", "tricouri"},
		{"hanorac negru", "hanorace"},
		{"polo pentru firma", "polo"},
	}
	for _, tt := range tests {
		st := applyAll(t, r, tt.message)
		assert.Equal(t, tt.want, st.ProductType, "message %q", tt.message)
	}
}

// Scenario: "30 roșii", "10 M", "20 L" ends with one complete red variant.
func TestApply_DeclaredTotalThenSizes(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "10 M", "20 L")

	require.Len(t, st.Variants, 1)
	v := st.Variants[0]
	assert.Equal(t, "Roșu", v.Color)
	require.NotNil(t, v.TotalQuantity)
	assert.Equal(t, 30, *v.TotalQuantity)
	assert.Equal(t, map[string]int{"M": 10, "L": 20}, v.QuantitiesPerSize)
	assert.True(t, v.IsComplete)
	assert.Empty(t, v.Error)
	assert.Equal(t, 0, v.Remaining)

	// Completion releases the routing lock for the next color.
	assert.False(t, st.ActiveVariantLocked)
	assert.Equal(t, "Roșu", st.ActiveVariant)
}

// Scenario: "40 albe", "10 S", "restul L" assigns the remainder to L.
func TestApply_RestResolution(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "40 albe", "10 S", "restul L")

	require.Len(t, st.Variants, 1)
	v := st.Variants[0]
	assert.Equal(t, "Alb", v.Color)
	assert.Equal(t, map[string]int{"S": 10, "L": 30}, v.QuantitiesPerSize)
	assert.True(t, v.IsComplete)
}

func TestApply_RestResolution_SizeFirstShape(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "40 albe", "10 S", "L rest")
	assert.Equal(t, map[string]int{"S": 10, "L": 30}, st.Variants[0].QuantitiesPerSize)
}

// Scenario: plain additive overshoot tags the variant but does not fail.
func TestApply_AdditiveOvershoot_TagsVariant(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "40 albe", "10 S", "35 L")

	require.Len(t, st.Variants, 1)
	v := st.Variants[0]
	assert.False(t, v.IsComplete)
	assert.Equal(t, order.ErrOverCapacity, v.Error)
	assert.Equal(t, 45, v.AssignedTotal())
}

func TestApply_RestAtCapacity_Fails(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "40 albe", "40 S")
	require.True(t, st.Variants[0].IsComplete)

	_, diag, err := r.Apply(st, "restul L")
	require.Error(t, err)
	assert.True(t, IsOverCapacity(err))

	var re *ReduceError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "Alb", re.Color)
	assert.Equal(t, "L", re.Size)
	assert.Equal(t, 40, re.Assigned)
	assert.Equal(t, 40, re.Total)

	assert.NotEmpty(t, diag.Warnings)
}

func TestApply_RestWithoutDeclaredTotal_Ignored(t *testing.T) {
	r := newTestReducer(t)

	// Bare color mention creates a placeholder with no total; "rest" has
	// nothing to resolve against and is ignored.
	st := applyAll(t, r, "albe", "restul L")
	require.Len(t, st.Variants, 1)
	assert.Empty(t, st.Variants[0].QuantitiesPerSize)
}

func TestApply_AdditiveMerge_NeverReplaces(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "50 negre", "10 M", "10 M", "5 M")
	assert.Equal(t, 25, st.Variants[0].QuantitiesPerSize["M"])
}

func TestApply_SizeShapes(t *testing.T) {
	r := newTestReducer(t)

	tests := []struct {
		message string
		want    map[string]int
	}{
		{"10 M", map[string]int{"M": 10}},
		{"M: 10", map[string]int{"M": 10}},
		{"M10", map[string]int{"M": 10}}, // glued shape counted once
		{"xl: 20, xxl: 5", map[string]int{"XL": 20, "XXL": 5}},
		{"15 3xl", map[string]int{"3XL": 15}},
	}
	for _, tt := range tests {
		st := applyAll(t, r, "100 albe", tt.message)
		assert.Equal(t, tt.want, st.Variants[0].QuantitiesPerSize, "message %q", tt.message)
	}
}

func TestApply_UnknownSizeTokens_Ignored(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "100 albe", "10 XXXXL si alte vorbe")
	assert.Empty(t, st.Variants[0].QuantitiesPerSize)
}

func TestApply_InputStateNotMutated(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "10 M")
	before := st.Clone()

	_, _, err := r.Apply(st, "20 L")
	require.NoError(t, err)

	assert.Equal(t, before, st)
}

func TestApply_ExplicitColorLocksRouting(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii")
	assert.Equal(t, "Roșu", st.ActiveVariant)
	assert.True(t, st.ActiveVariantLocked)

	// While locked, a color mention does not redirect: sizes still land
	// on the red variant, the black mention only creates a placeholder.
	st = applyAll(t, r, "30 roșii", "10 M si negre")

	require.Len(t, st.Variants, 2)
	assert.Equal(t, "Roșu", st.ActiveVariant)
	assert.Equal(t, 10, st.Variants[0].QuantitiesPerSize["M"])
	assert.Equal(t, "Negru", st.Variants[1].Color)
	assert.Empty(t, st.Variants[1].QuantitiesPerSize)
}

func TestApply_UnlockPhraseReleasesRouting(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "alta culoare, 20 negre")

	assert.Equal(t, "Negru", st.ActiveVariant)
	require.Equal(t, 2, len(st.Variants))
	require.NotNil(t, st.Variants[1].TotalQuantity)
	assert.Equal(t, 20, *st.Variants[1].TotalQuantity)
}

func TestApply_CompletionUnlocksNextColor(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "30 M", "20 negre", "20 L")

	require.Len(t, st.Variants, 2)
	assert.True(t, st.Variants[0].IsComplete)
	assert.True(t, st.Variants[1].IsComplete)
	assert.Equal(t, "Negru", st.ActiveVariant)
}

func TestApply_FallbackToFirstUnconfiguredVariant(t *testing.T) {
	r := newTestReducer(t)

	st := order.State{Variants: []order.Variant{order.NewVariant("Alb")}}
	next, diag, err := r.Apply(st, "10 M")
	require.NoError(t, err)

	assert.Equal(t, "Alb", next.ActiveVariant)
	assert.Equal(t, "Alb", diag.TargetVariant)
	assert.Equal(t, 10, next.Variants[0].QuantitiesPerSize["M"])
}

func TestApply_SizesWithoutAnyVariant_Dropped(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "10 M si 20 L")
	assert.Empty(t, st.Variants)
}

func TestApply_TotalInferredFromSizes(t *testing.T) {
	r := newTestReducer(t)

	// No declared total: the first positive size sum becomes the total
	// and is fixed from then on.
	st := applyAll(t, r, "negre", "10 M, 5 L")

	v := st.Variants[0]
	require.NotNil(t, v.TotalQuantity)
	assert.Equal(t, 15, *v.TotalQuantity)
	assert.True(t, v.IsComplete)

	next, _, err := r.Apply(st, "5 S")
	require.NoError(t, err)
	v = next.Variants[0]
	assert.Equal(t, 15, *v.TotalQuantity)
	assert.Equal(t, order.ErrOverCapacity, v.Error)
}

func TestApply_DeclaredTotalOverride(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "de fapt 50 rosii")
	require.NotNil(t, st.Variants[0].TotalQuantity)
	assert.Equal(t, 50, *st.Variants[0].TotalQuantity)
}

// Scenario: a bare number answers the previous size question.
func TestApply_ShortAnswerResolution(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii")
	st.LastQuestion = "Ce cantitate pe mărimea XL?"

	next, diag, err := r.Apply(st, "15")
	require.NoError(t, err)

	v := next.Variants[0]
	assert.Equal(t, 15, v.QuantitiesPerSize["XL"])
	assert.Equal(t, 15, v.Remaining)
	assert.Contains(t, diag.ParsedSizes, "XL (short answer)")
}

func TestApply_ShortAnswer_WordBoundaries(t *testing.T) {
	r := newTestReducer(t)

	// "mărimea" must not read as size M: only XL is a standalone token.
	st := applyAll(t, r, "30 roșii")
	st.LastQuestion = "Ce cantitate pe mărimea XL?"

	next, _, err := r.Apply(st, "15")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"XL": 15}, next.Variants[0].QuantitiesPerSize)
}

func TestApply_ShortAnswer_NoQuestion_Ignored(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "15")
	assert.Empty(t, st.Variants[0].QuantitiesPerSize)
}

func TestApply_ColorWithProductWord(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "20 de tricouri negre")

	require.Len(t, st.Variants, 1)
	assert.Equal(t, "Negru", st.Variants[0].Color)
	require.NotNil(t, st.Variants[0].TotalQuantity)
	assert.Equal(t, 20, *st.Variants[0].TotalQuantity)
	assert.Equal(t, "tricouri", st.ProductType)
}

func TestApply_DuplicateColorNeverCreated(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii", "rosii", "25 red")

	require.Len(t, st.Variants, 1)
	assert.Equal(t, 25, *st.Variants[0].TotalQuantity)
}

func TestApply_Budget_FirstWriterWins(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "buget 5000 lei", "buget de 9000")
	require.NotNil(t, st.Budget)
	assert.Equal(t, 5000, *st.Budget)
}

func TestApply_Personalization(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii cu broderie pe piept")

	p := st.Variants[0].Personalization
	assert.True(t, p.Enabled)
	assert.Equal(t, "broderie", p.Technique)
	assert.Equal(t, "piept", p.Zone)
}

func TestApply_Personalization_DisablePhrase(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii cu serigrafie pe spate", "fara personalizare")

	p := st.Variants[0].Personalization
	assert.False(t, p.Enabled)
	assert.Empty(t, p.Technique)
	assert.Empty(t, p.Zone)
}

func TestApply_Diagnostics(t *testing.T) {
	r := newTestReducer(t)

	st := applyAll(t, r, "30 roșii")
	_, diag, err := r.Apply(st, "10 M, 5 L")
	require.NoError(t, err)

	assert.Equal(t, "Roșu", diag.TargetVariant)
	assert.ElementsMatch(t, []string{"M", "L"}, diag.ParsedSizes)
	assert.Equal(t, QuantityChange{Before: 0, Added: 10, After: 10}, diag.Quantities["M"])
	assert.Equal(t, QuantityChange{Before: 0, Added: 5, After: 5}, diag.Quantities["L"])
}

func TestApply_Determinism(t *testing.T) {
	r := newTestReducer(t)

	messages := []string{"20 de tricouri negre", "10 M", "alta culoare", "15 albe", "restul XL"}
	first := applyAll(t, r, messages...)
	second := applyAll(t, r, messages...)

	assert.Equal(t, first, second)
}
