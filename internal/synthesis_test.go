package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextSkipsFailedResults(t *testing.T) {
	results := []EnrichmentResult{
		{ItemID: "a", Title: "First", URL: WatchURL("a"), ViewCount: 1200, SourceKeyword: "kw", Body: "body a  \n", Success: true},
		{ItemID: "b", Title: "Second", URL: WatchURL("b"), Body: "No captions available", Success: false},
		{ItemID: "c", Title: "Third", URL: WatchURL("c"), ViewCount: 5, Body: "body c", Success: true},
	}

	got := BuildContext("Header line", results)
	assert.True(t, strings.HasPrefix(got, "Header line\n\n### Video 1: First\n"))
	assert.Contains(t, got, "Views: 1,200\nKeyword: kw\n\nbody a\n")
	assert.Contains(t, got, "### Video 2: Third")
	assert.NotContains(t, got, "Second")
	assert.NotContains(t, got, WatchURL("b"))
}

func TestBuildContextKeepsTruncatedPrefix(t *testing.T) {
	body := TruncateText("  indented opening line and more text", 20)
	results := []EnrichmentResult{{ItemID: "a", Title: "First", URL: WatchURL("a"), Body: body, Success: true}}

	got := BuildContext("", results)
	assert.True(t, strings.HasSuffix(got, "\n\n"+body), got)
	assert.Contains(t, got, "\n\n  indented opening l"+TruncationMarker)
}

func TestSynthesizeReturnsFailureText(t *testing.T) {
	pm := NewPromptManager(t.TempDir(), "")
	completer := CompleterFunc(func(context.Context, CompletionRequest) (Completion, error) {
		return Completion{}, errors.New("quota exceeded")
	})
	s := NewSynthesizer(completer, pm, "gpt-4o-mini", time.Second, DiscardLogger())

	got := s.Synthesize(context.Background(), SynthesisRequest{TemplateKey: "related", Keyword: "kw"})
	assert.Equal(t, "Synthesis failed (related): quota exceeded", got)

	got = s.Synthesize(context.Background(), SynthesisRequest{TemplateKey: "missing"})
	assert.True(t, strings.HasPrefix(got, "Synthesis failed (missing): "))
}

func TestSynthesizeAll(t *testing.T) {
	pm := NewPromptManager(t.TempDir(), "")
	var mu sync.Mutex
	var prompts []string
	completer := CompleterFunc(func(_ context.Context, req CompletionRequest) (Completion, error) {
		mu.Lock()
		prompts = append(prompts, req.Prompt)
		mu.Unlock()
		if strings.Contains(req.Prompt, "four week") {
			return Completion{}, errors.New("timeout")
		}
		return Completion{Text: "ok"}, nil
	})
	s := NewSynthesizer(completer, pm, "m", 0, DiscardLogger())

	keys := []string{"related", "titles", "content_plan"}
	out := s.SynthesizeAll(context.Background(), SynthesisRequest{
		Context:  "### Video 1: Coffee",
		Keyword:  "coffee",
		Goal:     "open a cafe channel",
		Language: "English",
	}, keys, 2)

	require.Len(t, out, 3)
	assert.Equal(t, "ok", out["related"])
	assert.Equal(t, "ok", out["titles"])
	assert.Equal(t, "Synthesis failed (content_plan): timeout", out["content_plan"])

	require.Len(t, prompts, 3)
	for _, p := range prompts {
		assert.Contains(t, p, "### Video 1: Coffee")
		assert.Contains(t, p, "Creator goal: open a cafe channel")
		assert.Contains(t, p, "Answer in English")
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	n := EstimateTokens("The quick brown fox jumps over the lazy dog")
	assert.Greater(t, n, 5)
	assert.Less(t, n, 20)
}
