package internal

import (
	"context"
	"log/slog"
	"strings"
)

// SearchQuery is a single-keyword discovery request
type SearchQuery struct {
	Keyword  string
	Limit    int
	Region   string
	Language string
}

// Searcher maps one keyword to an ordered list of candidates
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]Candidate, error)
}

// SearcherFunc adapts a function to the Searcher interface
type SearcherFunc func(ctx context.Context, q SearchQuery) ([]Candidate, error)

func (f SearcherFunc) Search(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	return f(ctx, q)
}

// DiscoverOptions are shared by every keyword of a discovery run
type DiscoverOptions struct {
	Limit    int
	Region   string
	Language string
}

// DiscoveryResult is the union of candidates across keywords
type DiscoveryResult struct {
	Candidates []Candidate
	Outcomes   []KeywordOutcome
}

// Failed reports whether every keyword failed
func (r DiscoveryResult) Failed() bool {
	if len(r.Outcomes) == 0 {
		return false
	}
	for _, o := range r.Outcomes {
		if o.Outcome != OutcomeFailed {
			return false
		}
	}
	return true
}

// Notices returns user-facing messages for keywords that did not return results
func (r DiscoveryResult) Notices() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Outcome != OutcomeOK {
			out = append(out, o.String())
		}
	}
	return out
}

// Discoverer runs a Searcher over several keywords
type Discoverer struct {
	searcher Searcher
	logger   *slog.Logger
}

// NewDiscoverer creates a discoverer
func NewDiscoverer(searcher Searcher, logger *slog.Logger) *Discoverer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discoverer{searcher: searcher, logger: logger}
}

// Discover searches each keyword in turn and unions the results,
// de-duplicating by id in first-seen order. It never fails: a keyword whose
// search errors contributes nothing and is reported in the outcomes.
func (d *Discoverer) Discover(ctx context.Context, keywords []string, opts DiscoverOptions) DiscoveryResult {
	var res DiscoveryResult
	seen := make(map[string]struct{})

	for _, kw := range NormalizeKeywords(keywords) {
		found, err := d.searcher.Search(ctx, SearchQuery{
			Keyword:  kw,
			Limit:    opts.Limit,
			Region:   opts.Region,
			Language: opts.Language,
		})
		if err != nil {
			d.logger.Warn("discovery: search failed", slog.String("keyword", kw), slog.Any("err", err))
			res.Outcomes = append(res.Outcomes, KeywordOutcome{Keyword: kw, Outcome: OutcomeFailed, Error: err.Error()})
			continue
		}

		if opts.Limit > 0 && len(found) > opts.Limit {
			found = found[:opts.Limit]
		}

		added := 0
		for _, c := range found {
			if c.ID == "" {
				continue
			}
			if _, dup := seen[c.ID]; dup {
				continue
			}
			seen[c.ID] = struct{}{}
			if c.SourceKeyword == "" {
				c.SourceKeyword = kw
			}
			if c.URL == "" {
				c.URL = WatchURL(c.ID)
			}
			res.Candidates = append(res.Candidates, c)
			added++
		}

		outcome := OutcomeOK
		if len(found) == 0 {
			outcome = OutcomeEmpty
		}
		d.logger.Debug("discovery: keyword done", slog.String("keyword", kw), slog.Int("found", len(found)), slog.Int("new", added))
		res.Outcomes = append(res.Outcomes, KeywordOutcome{Keyword: kw, Outcome: outcome, Count: len(found)})
	}

	return res
}

// NormalizeKeywords trims keywords, splits comma-separated input and drops
// blanks and repeats
func NormalizeKeywords(keywords []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range keywords {
		for _, kw := range strings.Split(raw, ",") {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			key := strings.ToLower(kw)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}
