package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverUnionsAndDeduplicates(t *testing.T) {
	searcher := SearcherFunc(func(_ context.Context, q SearchQuery) ([]Candidate, error) {
		switch q.Keyword {
		case "notion":
			return []Candidate{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}, nil
		case "obsidian":
			return []Candidate{{ID: "b", Title: "B again"}, {ID: "c", Title: "C"}, {ID: ""}}, nil
		}
		return nil, nil
	})

	res := NewDiscoverer(searcher, DiscardLogger()).Discover(context.Background(), []string{"notion, obsidian", "Notion"}, DiscoverOptions{Limit: 5})

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{res.Candidates[0].ID, res.Candidates[1].ID, res.Candidates[2].ID})
	assert.Equal(t, "notion", res.Candidates[1].SourceKeyword)
	assert.Equal(t, "obsidian", res.Candidates[2].SourceKeyword)
	assert.Equal(t, WatchURL("c"), res.Candidates[2].URL)
	assert.Empty(t, res.Notices())
	assert.False(t, res.Failed())
}

func TestDiscoverReportsFailuresAndEmpty(t *testing.T) {
	searcher := SearcherFunc(func(_ context.Context, q SearchQuery) ([]Candidate, error) {
		switch q.Keyword {
		case "broken":
			return nil, errors.New("quota exceeded")
		case "good":
			return []Candidate{{ID: "x"}}, nil
		}
		return nil, nil
	})

	res := NewDiscoverer(searcher, DiscardLogger()).Discover(context.Background(), []string{"broken", "nothing", "good"}, DiscoverOptions{})

	require.Len(t, res.Candidates, 1)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, OutcomeFailed, res.Outcomes[0].Outcome)
	assert.Equal(t, OutcomeEmpty, res.Outcomes[1].Outcome)
	assert.Equal(t, OutcomeOK, res.Outcomes[2].Outcome)
	assert.Equal(t, []string{`"broken": search failed: quota exceeded`, `"nothing": no results`}, res.Notices())
	assert.False(t, res.Failed())
}

func TestDiscoverAllFailed(t *testing.T) {
	searcher := SearcherFunc(func(context.Context, SearchQuery) ([]Candidate, error) {
		return nil, errors.New("offline")
	})
	res := NewDiscoverer(searcher, DiscardLogger()).Discover(context.Background(), []string{"a", "b"}, DiscoverOptions{})
	assert.Empty(t, res.Candidates)
	assert.True(t, res.Failed())
}

func TestDiscoverCapsPerKeyword(t *testing.T) {
	searcher := SearcherFunc(func(context.Context, SearchQuery) ([]Candidate, error) {
		return testCandidates(6), nil
	})
	res := NewDiscoverer(searcher, DiscardLogger()).Discover(context.Background(), []string{"kw"}, DiscoverOptions{Limit: 2})
	assert.Len(t, res.Candidates, 2)
}

func TestNormalizeKeywords(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, NormalizeKeywords([]string{" a ,b c", "", "A", "d,,"}))
	assert.Empty(t, NormalizeKeywords([]string{" ", ","}))
}
