package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textilio/intake/internal/order"
)

func userMsg(id, content string) order.Message {
	return order.Message{ID: id, Role: order.RoleUser, Content: content}
}

func assistantMsg(id, content string) order.Message {
	return order.Message{ID: id, Role: order.RoleAssistant, Content: content}
}

func TestBuildState_FoldsConversation(t *testing.T) {
	r := newTestReducer(t)

	st := r.BuildState([]order.Message{
		userMsg("m1", "30 roșii"),
		userMsg("m2", "10 M"),
		userMsg("m3", "20 L"),
	})

	require.Len(t, st.Variants, 1)
	assert.True(t, st.Variants[0].IsComplete)
	assert.Equal(t, map[string]int{"M": 10, "L": 20}, st.Variants[0].QuantitiesPerSize)
}

func TestBuildState_AssistantMessagesSetLastQuestion(t *testing.T) {
	r := newTestReducer(t)

	st := r.BuildState([]order.Message{
		userMsg("m1", "30 roșii"),
		assistantMsg("m2", "Ce cantitate pe mărimea XL?"),
		userMsg("m3", "15"),
	})

	assert.Equal(t, "Ce cantitate pe mărimea XL?", st.LastQuestion)
	assert.Equal(t, 15, st.Variants[0].QuantitiesPerSize["XL"])
}

func TestBuildState_SkipsFailingMessage(t *testing.T) {
	r := newTestReducer(t)

	// The "restul" step fails at capacity; reconstruction must carry on
	// and keep the information from later messages.
	st := r.BuildState([]order.Message{
		userMsg("m1", "20 albe"),
		userMsg("m2", "20 S"),
		userMsg("m3", "restul L"),
		userMsg("m4", "10 negre"),
	})

	require.Len(t, st.Variants, 2)
	assert.True(t, st.Variants[0].IsComplete)
	assert.Equal(t, "Negru", st.Variants[1].Color)
}

func TestBuildState_ReferentiallyTransparent(t *testing.T) {
	r := newTestReducer(t)

	msgs := []order.Message{
		userMsg("m1", "20 de tricouri negre"),
		assistantMsg("m2", "Ce mărimi doriți?"),
		userMsg("m3", "10 M"),
		userMsg("m4", "restul L"),
	}

	assert.Equal(t, r.BuildState(msgs), r.BuildState(msgs))
}

func TestBuildState_Empty(t *testing.T) {
	r := newTestReducer(t)

	st := r.BuildState(nil)
	assert.Empty(t, st.Variants)
	assert.NotNil(t, st.Variants)
}

func TestReplay_RecordsEntries(t *testing.T) {
	r := newTestReducer(t)

	base := r.BuildState([]order.Message{userMsg("m1", "30 roșii")})

	st, entries, err := r.Replay(base, []order.Message{
		userMsg("m2", "10 M"),
		assistantMsg("m3", "Altceva?"),
		userMsg("m4", "20 L"),
	}, 1)
	require.NoError(t, err)

	assert.True(t, st.Variants[0].IsComplete)

	// One entry per user message; the assistant turn only moves the
	// last question.
	require.Len(t, entries, 2)

	assert.Equal(t, 1, entries[0].Index)
	assert.Equal(t, "m2", entries[0].MessageID)
	assert.Equal(t, "Roșu", entries[0].TargetVariant)
	assert.Equal(t, 0, entries[0].Before[0].Assigned)
	assert.Equal(t, 10, entries[0].After[0].Assigned)

	assert.Equal(t, 3, entries[1].Index)
	assert.Equal(t, "Altceva?", entries[1].LastQuestion)
	assert.Equal(t, 30, entries[1].After[0].Assigned)
	assert.True(t, entries[1].After[0].IsComplete)
}

func TestReplay_AbortsOnFailure(t *testing.T) {
	r := newTestReducer(t)

	base := r.BuildState([]order.Message{
		userMsg("m1", "20 albe"),
		userMsg("m2", "20 S"),
	})

	_, entries, err := r.Replay(base, []order.Message{
		userMsg("m3", "restul L"),
		userMsg("m4", "10 negre"),
	}, 2)

	require.Error(t, err)
	assert.True(t, IsOverCapacity(err))

	// The error names the failing message by absolute index.
	var replayErr *ReplayError
	require.ErrorAs(t, err, &replayErr)
	assert.Equal(t, 2, replayErr.Index)
	assert.Equal(t, "m3", replayErr.MessageID)

	// Nothing after the failing step was processed.
	assert.Empty(t, entries)
}

func TestReplay_DoesNotMutateBase(t *testing.T) {
	r := newTestReducer(t)

	base := r.BuildState([]order.Message{userMsg("m1", "30 roșii")})
	want := base.Clone()

	_, _, err := r.Replay(base, []order.Message{userMsg("m2", "10 M")}, 1)
	require.NoError(t, err)

	assert.Equal(t, want, base)
}

// Replaying [m1, m2] equals replaying [m1] plus the delta of m2 alone:
// within a size, addition commutes.
func TestReplay_Additivity(t *testing.T) {
	r := newTestReducer(t)

	m1 := userMsg("m1", "10 M")
	m2 := userMsg("m2", "5 M, 3 L")

	base := r.BuildState([]order.Message{userMsg("m0", "100 negre")})

	both, _, err := r.Replay(base, []order.Message{m1, m2}, 1)
	require.NoError(t, err)

	onlyFirst, _, err := r.Replay(base, []order.Message{m1}, 1)
	require.NoError(t, err)

	deltaOnly, _, err := r.Replay(base, []order.Message{m2}, 1)
	require.NoError(t, err)

	for _, size := range []string{"M", "L"} {
		sum := onlyFirst.Variants[0].QuantitiesPerSize[size] +
			deltaOnly.Variants[0].QuantitiesPerSize[size]
		assert.Equal(t, sum, both.Variants[0].QuantitiesPerSize[size], "size %s", size)
	}
}
