package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

// ModelSearcher discovers videos by asking a search-capable model for a JSON
// list of results
type ModelSearcher struct {
	completer Completer
	prompts   *PromptManager
	model     string
	logger    *slog.Logger
}

// NewModelSearcher creates a model-driven searcher
func NewModelSearcher(completer Completer, prompts *PromptManager, model string, logger *slog.Logger) *ModelSearcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelSearcher{
		completer: completer,
		prompts:   prompts,
		model:     model,
		logger:    logger,
	}
}

type modelVideo struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Channel     string          `json:"channel"`
	ViewCount   json.RawMessage `json:"view_count"`
	URL         string          `json:"url"`
	Description string          `json:"description"`
}

func (m *ModelSearcher) Search(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	prompt, err := m.prompts.CreateSearchPrompt(PromptData{
		Keyword:  q.Keyword,
		Limit:    limit,
		Region:   q.Region,
		Language: q.Language,
	})
	if err != nil {
		return nil, err
	}

	out, err := m.completer.Complete(ctx, CompletionRequest{
		Prompt:    prompt,
		Model:     m.model,
		WebSearch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("model search: %w", err)
	}

	videos, err := parseModelVideos(out.Text)
	if err != nil {
		m.logger.Debug("model search: unparseable reply", slog.String("keyword", q.Keyword), slog.String("reply", truncateRunes(out.Text, 200)))
		return nil, fmt.Errorf("model search: %w", err)
	}

	var cands []Candidate
	for _, v := range videos {
		id := v.ID
		if id == "" {
			id, _ = getVideoID(v.URL)
		}
		if id == "" {
			continue
		}
		cands = append(cands, Candidate{
			ID:            id,
			Title:         strings.TrimSpace(v.Title),
			Channel:       strings.TrimSpace(v.Channel),
			ViewCount:     parseModelViewCount(v.ViewCount),
			URL:           WatchURL(id),
			Snippet:       truncateRunes(strings.TrimSpace(v.Description), 300),
			SourceKeyword: q.Keyword,
		})
		if len(cands) == limit {
			break
		}
	}
	return cands, nil
}

// parseModelVideos reads the JSON array out of a model reply. Code fences and
// surrounding prose are stripped, and small syntax slips are repaired.
func parseModelVideos(reply string) ([]modelVideo, error) {
	s := stripCodeFence(reply)
	if start := strings.Index(s, "["); start >= 0 {
		if end := strings.LastIndex(s, "]"); end > start {
			s = s[start : end+1]
		}
	}
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty reply")
	}

	var videos []modelVideo
	if err := json.Unmarshal([]byte(s), &videos); err == nil {
		return videos, nil
	}

	repaired, err := jsonrepair.RepairJSON(s)
	if err != nil {
		return nil, fmt.Errorf("repairing JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &videos); err != nil {
		return nil, fmt.Errorf("decoding video list: %w", err)
	}
	return videos, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseModelViewCount accepts a number or a display string like "1.2M views"
func parseModelViewCount(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int64(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return v
		}
		return parseViewCount(s)
	}
	return 0
}
