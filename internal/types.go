package internal

import (
	"fmt"
	"strconv"
)

// Candidate is one video returned by discovery
type Candidate struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Channel       string `json:"channel"`
	ViewCount     int64  `json:"view_count"`
	URL           string `json:"url"`
	ThumbnailURL  string `json:"thumbnail_url,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
	SourceKeyword string `json:"source_keyword"`
}

// EnrichmentResult holds the per-video detail fetched for a selected candidate.
// A failed fetch keeps Success=false and puts the reason in Body.
type EnrichmentResult struct {
	ItemID        string `json:"item_id"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	ViewCount     int64  `json:"view_count"`
	SourceKeyword string `json:"source_keyword"`
	Body          string `json:"body"`
	Success       bool   `json:"success"`
}

// NewEnrichmentResult copies the identifying fields of a candidate
func NewEnrichmentResult(c Candidate, body string, success bool) EnrichmentResult {
	return EnrichmentResult{
		ItemID:        c.ID,
		Title:         c.Title,
		URL:           c.URL,
		ViewCount:     c.ViewCount,
		SourceKeyword: c.SourceKeyword,
		Body:          body,
		Success:       success,
	}
}

// Synthesis is the set of model outputs for one analysis run, keyed by template
type Synthesis struct {
	Goal    string            `json:"goal"`
	Order   []string          `json:"order"`
	Outputs map[string]string `json:"outputs"`
}

// StageStatus is the state of one pipeline stage in a session
type StageStatus int

const (
	StageNotStarted StageStatus = iota
	StageInProgress
	StageSucceeded
	StageFailed
)

// String returns a human-readable representation of the stage status
func (s StageStatus) String() string {
	switch s {
	case StageInProgress:
		return "in_progress"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// MarshalText lets stage statuses appear as strings in JSON
func (s StageStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stage is a tagged union over the lifecycle of a stage output.
// Data is only meaningful when Status is StageSucceeded and Reason only when StageFailed.
type Stage[T any] struct {
	Status StageStatus `json:"status"`
	Data   T           `json:"data,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

func (s *Stage[T]) start() {
	var zero T
	*s = Stage[T]{Status: StageInProgress, Data: zero}
}

func (s *Stage[T]) succeed(data T) {
	*s = Stage[T]{Status: StageSucceeded, Data: data}
}

func (s *Stage[T]) fail(reason string) {
	*s = Stage[T]{Status: StageFailed, Reason: reason}
}

func (s *Stage[T]) reset() {
	*s = Stage[T]{}
}

// Value returns the stage data and whether the stage succeeded
func (s Stage[T]) Value() (T, bool) {
	if s.Status != StageSucceeded {
		var zero T
		return zero, false
	}
	return s.Data, true
}

// Outcome classifies what discovery produced for a single keyword
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// KeywordOutcome reports how a single keyword fared during discovery
type KeywordOutcome struct {
	Keyword string  `json:"keyword"`
	Outcome Outcome `json:"outcome"`
	Count   int     `json:"count"`
	Error   string  `json:"error,omitempty"`
}

// String formats the outcome as a user-facing notice
func (o KeywordOutcome) String() string {
	switch o.Outcome {
	case OutcomeFailed:
		return fmt.Sprintf("%q: search failed: %s", o.Keyword, o.Error)
	case OutcomeEmpty:
		return fmt.Sprintf("%q: no results", o.Keyword)
	default:
		return fmt.Sprintf("%q: %d results", o.Keyword, o.Count)
	}
}

// FormatViews renders a view count with thousands separators
func FormatViews(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 {
		return s
	}
	var out []byte
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	return string(out)
}
