package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCandidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range n {
		id := string(rune('a' + i))
		out[i] = Candidate{ID: id, Title: "Video " + id, URL: WatchURL(id), SourceKeyword: "kw"}
	}
	return out
}

func discovered(t *testing.T, n int) *Session {
	t.Helper()
	sess := NewSession()
	gen := sess.StartDiscovery([]string{"kw"})
	require.True(t, sess.CompleteDiscovery(gen, testCandidates(n), nil))
	return sess
}

func TestSessionSelectRequiresCandidates(t *testing.T) {
	sess := NewSession()
	assert.ErrorIs(t, sess.Select([]string{"a"}), ErrNoCandidates)
}

func TestSessionSelectValidatesIDs(t *testing.T) {
	sess := discovered(t, 3)

	assert.ErrorIs(t, sess.Select(nil), ErrNoSelection)
	assert.ErrorIs(t, sess.Select([]string{"a", "zz"}), ErrUnknownVideo)

	require.NoError(t, sess.Select([]string{"c", "a", "c"}))
	selected := sess.Selected()
	require.Len(t, selected, 2)
	assert.Equal(t, "c", selected[0].ID)
	assert.Equal(t, "a", selected[1].ID)
}

func TestSessionNewDiscoveryClearsDerivedStages(t *testing.T) {
	sess := discovered(t, 3)
	require.NoError(t, sess.Select([]string{"a"}))

	gen, cands, err := sess.StartEnrichment()
	require.NoError(t, err)
	require.True(t, sess.CompleteEnrichment(gen, []EnrichmentResult{NewEnrichmentResult(cands[0], "text", true)}))

	gen, _, err = sess.StartSynthesis()
	require.NoError(t, err)
	require.True(t, sess.CompleteSynthesis(gen, Synthesis{Order: []string{"related"}, Outputs: map[string]string{"related": "x"}}))

	sess.StartDiscovery([]string{"other"})
	state := sess.Snapshot()
	assert.Equal(t, StageInProgress, state.Candidates.Status)
	assert.Equal(t, StageNotStarted, state.Selection.Status)
	assert.Equal(t, StageNotStarted, state.Enrichment.Status)
	assert.Equal(t, StageNotStarted, state.Synthesis.Status)
	assert.Equal(t, []string{"other"}, state.Keywords)
}

func TestSessionReselectClearsEnrichment(t *testing.T) {
	sess := discovered(t, 3)
	require.NoError(t, sess.Select([]string{"a"}))
	gen, cands, err := sess.StartEnrichment()
	require.NoError(t, err)
	require.True(t, sess.CompleteEnrichment(gen, []EnrichmentResult{NewEnrichmentResult(cands[0], "text", true)}))

	require.NoError(t, sess.Select([]string{"b"}))
	state := sess.Snapshot()
	assert.Equal(t, StageNotStarted, state.Enrichment.Status)
	_, ok := state.Enrichment.Value()
	assert.False(t, ok)
}

func TestSessionDropsStaleCompletion(t *testing.T) {
	sess := discovered(t, 3)
	require.NoError(t, sess.Select([]string{"a", "b"}))

	gen, _, err := sess.StartEnrichment()
	require.NoError(t, err)

	// selection changes while enrichment is running
	require.NoError(t, sess.Select([]string{"c"}))

	assert.False(t, sess.CompleteEnrichment(gen, []EnrichmentResult{{ItemID: "a", Success: true}}))
	assert.Equal(t, StageNotStarted, sess.Snapshot().Enrichment.Status)
}

func TestSessionStaleDiscovery(t *testing.T) {
	sess := NewSession()
	first := sess.StartDiscovery([]string{"one"})
	second := sess.StartDiscovery([]string{"two"})

	assert.False(t, sess.CompleteDiscovery(first, testCandidates(2), nil))
	assert.True(t, sess.CompleteDiscovery(second, testCandidates(1), nil))

	cands, ok := sess.Snapshot().Candidates.Value()
	require.True(t, ok)
	assert.Len(t, cands, 1)
}

func TestSessionSynthesisNeedsSuccessfulEnrichment(t *testing.T) {
	sess := discovered(t, 2)

	_, _, err := sess.StartSynthesis()
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, sess.Select([]string{"a", "b"}))
	gen, cands, err := sess.StartEnrichment()
	require.NoError(t, err)
	require.True(t, sess.CompleteEnrichment(gen, []EnrichmentResult{
		NewEnrichmentResult(cands[0], "captions disabled", false),
		NewEnrichmentResult(cands[1], "captions disabled", false),
	}))

	_, _, err = sess.StartSynthesis()
	assert.ErrorIs(t, err, ErrNothingToAnalyze)
}

func TestSessionFailDiscovery(t *testing.T) {
	sess := NewSession()
	gen := sess.StartDiscovery([]string{"kw"})
	require.True(t, sess.FailDiscovery(gen, "all searches failed"))

	state := sess.Snapshot()
	assert.Equal(t, StageFailed, state.Candidates.Status)
	assert.Equal(t, "all searches failed", state.Candidates.Reason)
	assert.ErrorIs(t, sess.Select([]string{"a"}), ErrNoCandidates)
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(0)
	sess := store.Create()

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.Equal(t, 1, store.Len())

	store.Delete(sess.ID)
	_, err = store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreExpiry(t *testing.T) {
	store := NewSessionStore(time.Minute)
	sess := store.Create()
	sess.CreatedAt = time.Now().Add(-2 * time.Minute)

	_, err := store.Get(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	store.Create()
	assert.Equal(t, 1, store.Len())
}
