package internal

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// TruncationMarker is appended to text cut at the configured bound
const TruncationMarker = "\n...[truncated]"

// DefaultTranscriptMaxChars bounds enrichment text when none is configured
const DefaultTranscriptMaxChars = 4000

// Enrichment strategy names
const (
	StrategyTranscript = "transcript"
	StrategyModel      = "model"
)

// Enricher fetches detail for one candidate. It never returns an error:
// failures come back as results with Success=false.
type Enricher interface {
	Enrich(ctx context.Context, c Candidate) EnrichmentResult
}

// EnricherFunc adapts a function to the Enricher interface
type EnricherFunc func(ctx context.Context, c Candidate) EnrichmentResult

func (f EnricherFunc) Enrich(ctx context.Context, c Candidate) EnrichmentResult {
	return f(ctx, c)
}

// TranscriptFetcher retrieves caption text for a video
type TranscriptFetcher interface {
	Transcript(ctx context.Context, videoID string, langs []string) (string, error)
}

// TruncateText cuts s to at most limit runes and appends TruncationMarker
// when anything was removed. A limit of zero or less disables truncation.
func TruncateText(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}

// TranscriptEnricher uses video captions as the enrichment body
type TranscriptEnricher struct {
	fetcher  TranscriptFetcher
	cache    TranscriptCache
	langs    []string
	maxChars int
	logger   *slog.Logger
}

// NewTranscriptEnricher creates a caption-based enricher
func NewTranscriptEnricher(fetcher TranscriptFetcher, cache TranscriptCache, langs []string, maxChars int, logger *slog.Logger) *TranscriptEnricher {
	if cache == nil {
		cache = NopCache{}
	}
	if len(langs) == 0 {
		langs = DefaultTranscriptLanguages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TranscriptEnricher{
		fetcher:  fetcher,
		cache:    cache,
		langs:    langs,
		maxChars: maxChars,
		logger:   logger,
	}
}

// Fetch returns the full transcript, using the cache when possible
func (e *TranscriptEnricher) Fetch(ctx context.Context, videoID string) (string, error) {
	key := TranscriptKey(videoID, e.langs)
	if text, ok := e.cache.Get(ctx, key); ok {
		e.logger.Debug("transcript: cache hit", slog.String("id", videoID))
		return text, nil
	}

	text, err := e.fetcher.Transcript(ctx, videoID, e.langs)
	if err != nil {
		return "", err
	}
	if err := e.cache.Set(ctx, key, text); err != nil {
		e.logger.Warn("transcript: caching failed", slog.String("id", videoID), slog.Any("err", err))
	}
	return text, nil
}

func (e *TranscriptEnricher) Enrich(ctx context.Context, c Candidate) EnrichmentResult {
	text, err := e.Fetch(ctx, c.ID)
	if err != nil {
		e.logger.Info("transcript: unavailable", slog.String("id", c.ID), slog.Any("err", err))
		return NewEnrichmentResult(c, describeTranscriptError(err), false)
	}
	return NewEnrichmentResult(c, TruncateText(text, e.maxChars), true)
}

func describeTranscriptError(err error) string {
	switch {
	case errors.Is(err, ErrCaptionsDisabled):
		return "No captions available: captions are disabled for this video"
	case errors.Is(err, ErrNoMatchingTrack):
		return fmt.Sprintf("No captions available: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "Transcript fetch timed out"
	default:
		return fmt.Sprintf("Transcript fetch failed: %v", err)
	}
}

// ModelEnricher asks a search-capable model to summarise a video from its
// URL and title
type ModelEnricher struct {
	completer Completer
	prompts   *PromptManager
	model     string
	language  string
	maxChars  int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewModelEnricher creates a model-driven enricher
func NewModelEnricher(completer Completer, prompts *PromptManager, model, language string, maxChars int, timeout time.Duration, logger *slog.Logger) *ModelEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelEnricher{
		completer: completer,
		prompts:   prompts,
		model:     model,
		language:  language,
		maxChars:  maxChars,
		timeout:   timeout,
		logger:    logger,
	}
}

func (e *ModelEnricher) Enrich(ctx context.Context, c Candidate) EnrichmentResult {
	prompt, err := e.prompts.CreateExtractionPrompt(PromptData{
		Title:    c.Title,
		Channel:  c.Channel,
		URL:      c.URL,
		Keyword:  c.SourceKeyword,
		Language: e.language,
	})
	if err != nil {
		return NewEnrichmentResult(c, fmt.Sprintf("Model extraction failed: %v", err), false)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	out, err := e.completer.Complete(ctx, CompletionRequest{
		Prompt:    prompt,
		Model:     e.model,
		WebSearch: true,
	})
	if err != nil {
		e.logger.Info("model extraction failed", slog.String("id", c.ID), slog.Any("err", err))
		return NewEnrichmentResult(c, fmt.Sprintf("Model extraction failed: %v", err), false)
	}
	return NewEnrichmentResult(c, TruncateText(out.Text, e.maxChars), true)
}

// EnrichAll runs the enricher over candidates with bounded concurrency and
// returns the results in candidate order
func EnrichAll(ctx context.Context, enricher Enricher, candidates []Candidate, workers int, opts ...GatherOption) []EnrichmentResult {
	results := Gather(ctx, candidates, workers,
		func(ctx context.Context, c Candidate) (EnrichmentResult, error) {
			return enricher.Enrich(ctx, c), nil
		},
		func(c Candidate, err error) EnrichmentResult {
			return NewEnrichmentResult(c, fmt.Sprintf("Enrichment failed: %v", err), false)
		},
		opts...,
	)
	return SortResults(results, candidates)
}

// SortResults orders results to match the candidate order
func SortResults(results []EnrichmentResult, order []Candidate) []EnrichmentResult {
	pos := make(map[string]int, len(order))
	for i, c := range order {
		pos[c.ID] = i
	}
	sorted := make([]EnrichmentResult, len(results))
	copy(sorted, results)
	rank := func(r EnrichmentResult) int {
		if p, ok := pos[r.ItemID]; ok {
			return p
		}
		return len(order)
	}
	slices.SortStableFunc(sorted, func(a, b EnrichmentResult) int {
		return cmp.Compare(rank(a), rank(b))
	})
	return sorted
}

// EnrichmentWarning returns a notice when few enrichments succeeded, or ""
func EnrichmentWarning(results []EnrichmentResult) string {
	ok := CountSucceeded(results)
	switch {
	case len(results) == 0:
		return ""
	case ok == 0:
		return fmt.Sprintf("None of the %d selected videos could be enriched", len(results))
	case ok*2 < len(results):
		return fmt.Sprintf("Only %d of %d selected videos could be enriched; the analysis may be thin", ok, len(results))
	default:
		return ""
	}
}

// CountSucceeded counts results with Success set
func CountSucceeded(results []EnrichmentResult) int {
	n := 0
	for _, r := range results {
		if r.Success {
			n++
		}
	}
	return n
}
