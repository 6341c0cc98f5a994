package internal

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoKeywords       = errors.New("no keywords given")
	ErrNoCandidates     = errors.New("no candidates to select from, run discovery first")
	ErrNoSelection      = errors.New("no videos selected")
	ErrNothingToAnalyze = errors.New("no enrichment succeeded, nothing to analyze")
	ErrSessionNotFound  = errors.New("session not found")
	ErrUnknownVideo     = errors.New("unknown video id")
)

// Session is the explicit state of one analysis run.
//
// Every stage write clears the stages derived from it, so a selection,
// enrichment or synthesis is never kept once its upstream input changes.
// Each Start call returns a generation; a completion carrying an older
// generation is dropped.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	gen        uint64
	keywords   []string
	outcomes   []KeywordOutcome
	candidates Stage[[]Candidate]
	selection  Stage[[]string]
	enrichment Stage[[]EnrichmentResult]
	synthesis  Stage[Synthesis]
}

// SessionState is a read-only copy of a session
type SessionState struct {
	ID         string                    `json:"id"`
	CreatedAt  time.Time                 `json:"created_at"`
	Keywords   []string                  `json:"keywords"`
	Outcomes   []KeywordOutcome          `json:"outcomes,omitempty"`
	Candidates Stage[[]Candidate]        `json:"candidates"`
	Selection  Stage[[]string]           `json:"selection"`
	Enrichment Stage[[]EnrichmentResult] `json:"enrichment"`
	Synthesis  Stage[Synthesis]          `json:"synthesis"`
}

// NewSession creates an empty session
func NewSession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SessionState{
		ID:         s.ID,
		CreatedAt:  s.CreatedAt,
		Keywords:   slices.Clone(s.keywords),
		Outcomes:   slices.Clone(s.outcomes),
		Candidates: s.candidates,
		Selection:  s.selection,
		Enrichment: s.enrichment,
		Synthesis:  s.synthesis,
	}
}

// Keywords returns the current keyword list
func (s *Session) Keywords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keywords)
}

// StartDiscovery records the keywords and marks discovery as running.
// All derived state is cleared.
func (s *Session) StartDiscovery(keywords []string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.keywords = slices.Clone(keywords)
	s.outcomes = nil
	s.candidates.start()
	s.clearFromSelection()
	return s.gen
}

// CompleteDiscovery stores the candidate list. It reports false when the
// result is stale.
func (s *Session) CompleteDiscovery(gen uint64, candidates []Candidate, outcomes []KeywordOutcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.outcomes = slices.Clone(outcomes)
	s.candidates.succeed(slices.Clone(candidates))
	return true
}

// FailDiscovery marks discovery as failed
func (s *Session) FailDiscovery(gen uint64, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.candidates.fail(reason)
	return true
}

// Select sets the chosen candidate ids. Ids must belong to the current
// candidate list; duplicates are dropped. Enrichment and synthesis are cleared.
func (s *Session) Select(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidates, ok := s.candidates.Value()
	if !ok || len(candidates) == 0 {
		return ErrNoCandidates
	}
	if len(ids) == 0 {
		return ErrNoSelection
	}

	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(ids))
	selected := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w %q", ErrUnknownVideo, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		selected = append(selected, id)
	}

	s.gen++
	s.clearFromSelection()
	s.selection.succeed(selected)
	return nil
}

// Selected returns the selected candidates in selection order
func (s *Session) Selected() []Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

func (s *Session) selectedLocked() []Candidate {
	ids, ok := s.selection.Value()
	if !ok {
		return nil
	}
	candidates, _ := s.candidates.Value()
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// StartEnrichment marks enrichment as running and returns the candidates to
// enrich. Synthesis is cleared.
func (s *Session) StartEnrichment() (uint64, []Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	selected := s.selectedLocked()
	if len(selected) == 0 {
		return 0, nil, ErrNoSelection
	}
	s.gen++
	s.enrichment.start()
	s.synthesis.reset()
	return s.gen, selected, nil
}

// CompleteEnrichment stores enrichment results
func (s *Session) CompleteEnrichment(gen uint64, results []EnrichmentResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.enrichment.succeed(slices.Clone(results))
	return true
}

// FailEnrichment marks enrichment as failed
func (s *Session) FailEnrichment(gen uint64, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.enrichment.fail(reason)
	return true
}

// StartSynthesis marks synthesis as running and returns the enrichment
// results it should use. It fails with ErrNothingToAnalyze unless at least
// one enrichment succeeded.
func (s *Session) StartSynthesis() (uint64, []EnrichmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results, ok := s.enrichment.Value()
	if !ok {
		if s.selection.Status != StageSucceeded {
			return 0, nil, ErrNoSelection
		}
		return 0, nil, ErrNothingToAnalyze
	}
	if CountSucceeded(results) == 0 {
		return 0, nil, ErrNothingToAnalyze
	}
	s.gen++
	s.synthesis.start()
	return s.gen, slices.Clone(results), nil
}

// CompleteSynthesis stores the synthesis outputs
func (s *Session) CompleteSynthesis(gen uint64, out Synthesis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.synthesis.succeed(out)
	return true
}

// FailSynthesis marks synthesis as failed
func (s *Session) FailSynthesis(gen uint64, reason string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return false
	}
	s.synthesis.fail(reason)
	return true
}

func (s *Session) clearFromSelection() {
	s.selection.reset()
	s.enrichment.reset()
	s.synthesis.reset()
}

// SessionStore keeps sessions in memory for the HTTP API
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
}

// NewSessionStore creates a store. Sessions older than ttl are dropped on
// access; a zero ttl keeps them forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Create adds a new empty session
func (st *SessionStore) Create() *Session {
	sess := NewSession()
	st.mu.Lock()
	defer st.mu.Unlock()
	st.evictLocked()
	st.sessions[sess.ID] = sess
	return sess
}

// Get looks up a session by id
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	sess, ok := st.sessions[id]
	if !ok || st.expired(sess) {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete removes a session
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, id)
}

// Len returns the number of stored sessions
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *SessionStore) expired(sess *Session) bool {
	return st.ttl > 0 && time.Since(sess.CreatedAt) > st.ttl
}

func (st *SessionStore) evictLocked() {
	for id, sess := range st.sessions {
		if st.expired(sess) {
			delete(st.sessions, id)
		}
	}
}
