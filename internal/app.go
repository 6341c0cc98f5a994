package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// App holds the application state and dependencies
type App struct {
	config        *Config
	logger        *slog.Logger
	ui            UIManager
	promptManager *PromptManager
	httpClient    *http.Client
	youtube       *YouTube
	suggester     *Suggester
	sessions      *SessionStore

	// injected or built on first use
	completerMu sync.Mutex
	completer   Completer
	searcher    Searcher
	enricher    Enricher
	transcripts TranscriptFetcher

	cacheOnce sync.Once
	cache     TranscriptCache
}

// AppOption customizes App creation
type AppOption func(*App)

// WithCompleter replaces the model transport
func WithCompleter(c Completer) AppOption {
	return func(a *App) {
		a.completer = c
	}
}

// WithSearcher replaces the discovery backend selected by discovery_source
func WithSearcher(s Searcher) AppOption {
	return func(a *App) {
		a.searcher = s
	}
}

// WithEnricher replaces the enrichment strategy selected by enrich_strategy
func WithEnricher(e Enricher) AppOption {
	return func(a *App) {
		a.enricher = e
	}
}

// WithTranscriptFetcher replaces the caption source
func WithTranscriptFetcher(f TranscriptFetcher) AppOption {
	return func(a *App) {
		a.transcripts = f
	}
}

// WithCache sets the transcript cache instead of opening the configured one
func WithCache(c TranscriptCache) AppOption {
	return func(a *App) {
		a.cacheOnce.Do(func() {})
		a.cache = c
	}
}

// WithUI sets the user interface
func WithUI(ui UIManager) AppOption {
	return func(a *App) {
		a.ui = ui
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) AppOption {
	return func(a *App) {
		a.logger = l
	}
}

// WithSuggester replaces the suggestion client
func WithSuggester(s *Suggester) AppOption {
	return func(a *App) {
		a.suggester = s
	}
}

// NewApp initializes the application
func NewApp(config *Config, options ...AppOption) *App {
	httpClient := &http.Client{Timeout: config.HTTPTimeout}

	app := &App{
		config:        config,
		logger:        slog.Default(),
		ui:            NewUIManager(config.Verbose, config.Quiet),
		promptManager: NewPromptManager(config.ConfigDir, config.TemplatesFile),
		httpClient:    httpClient,
		sessions:      NewSessionStore(24 * time.Hour),
	}

	for _, option := range options {
		option(app)
	}

	app.youtube = NewYouTube(httpClient, app.logger,
		WithAPIKeys(config.YouTubeAPIKey, config.YouTubeAPIKeyFallback),
		WithRequestRate(config.ScrapeRPS),
	)
	if app.suggester == nil {
		app.suggester = NewSuggester(httpClient, config.SuggestLocale, config.SuggestTimeout, app.logger)
	}
	if app.transcripts == nil {
		app.transcripts = app.youtube
	}

	return app
}

// Prompts returns the prompt manager
func (app *App) Prompts() *PromptManager {
	return app.promptManager
}

// Sessions returns the in-memory session store
func (app *App) Sessions() *SessionStore {
	return app.sessions
}

// Close releases the transcript cache
func (app *App) Close() error {
	if app.cache != nil {
		return app.cache.Close()
	}
	return nil
}

func (app *App) transcriptCache() TranscriptCache {
	app.cacheOnce.Do(func() {
		cache, err := NewTranscriptCache(app.config)
		if err != nil {
			app.logger.Warn("transcript cache unavailable, continuing without it", slog.Any("err", err))
			cache = NopCache{}
		}
		app.cache = cache
	})
	return app.cache
}

// modelCompleter returns the failover completer, creating it on first use.
// It fails with ErrMissingAPIKey before any network call when no key is set.
func (app *App) modelCompleter() (Completer, error) {
	app.completerMu.Lock()
	defer app.completerMu.Unlock()
	if app.completer != nil {
		return app.completer, nil
	}
	if err := ValidateOpenAIAPIKey(app.config.OpenAIAPIKey); err != nil {
		return nil, err
	}
	primary := NewOpenAIClient(app.config.OpenAIAPIKey, app.config.OpenAIBaseURL, nil)
	secondary := NewResponsesClient(app.config.OpenAIAPIKey, app.config.OpenAIBaseURL, &http.Client{Timeout: app.config.SummaryTimeout})
	app.completer = NewFailoverCompleter(primary, secondary, app.config.FallbackSignatures, app.logger)
	return app.completer, nil
}

// Searcher returns the discovery backend for source
func (app *App) Searcher(source string) (Searcher, error) {
	if app.searcher != nil {
		return app.searcher, nil
	}
	if source == "" {
		source = app.config.DiscoverySource
	}
	switch source {
	case SourceAPI:
		if app.config.YouTubeAPIKey == "" && app.config.YouTubeAPIKeyFallback == "" {
			return nil, ErrMissingYouTubeKey
		}
		return SearcherFunc(app.youtube.SearchAPI), nil
	case SourceScrape:
		return SearcherFunc(app.youtube.SearchScrape), nil
	case SourceModel:
		completer, err := app.modelCompleter()
		if err != nil {
			return nil, err
		}
		return NewModelSearcher(completer, app.promptManager, app.config.Model, app.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown discovery source %q (want api, scrape or model)", ErrInvalidOption, source)
	}
}

// Enricher returns the enrichment strategy for name
func (app *App) Enricher(strategy string) (Enricher, error) {
	if app.enricher != nil {
		return app.enricher, nil
	}
	if strategy == "" {
		strategy = app.config.EnrichStrategy
	}
	switch strategy {
	case StrategyTranscript:
		return app.transcriptEnricher(), nil
	case StrategyModel:
		completer, err := app.modelCompleter()
		if err != nil {
			return nil, err
		}
		return NewModelEnricher(completer, app.promptManager, app.config.Model, app.config.ReportLanguage,
			app.config.TranscriptMaxChars, app.config.SummaryTimeout, app.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown enrichment strategy %q (want transcript or model)", ErrInvalidOption, strategy)
	}
}

func (app *App) transcriptEnricher() *TranscriptEnricher {
	return NewTranscriptEnricher(app.transcripts, app.transcriptCache(),
		app.config.TranscriptLanguages, app.config.TranscriptMaxChars, app.logger)
}

// Suggest returns keyword completions; failures yield an empty list
func (app *App) Suggest(ctx context.Context, keyword string) []string {
	return app.suggester.Suggest(ctx, keyword)
}

// Transcript fetches the full caption text for a video, through the cache
func (app *App) Transcript(ctx context.Context, videoID string, langs []string) (string, error) {
	enricher := app.transcriptEnricher()
	if len(langs) > 0 {
		enricher = NewTranscriptEnricher(app.transcripts, app.transcriptCache(), langs, 0, app.logger)
	}
	return enricher.Fetch(ctx, videoID)
}

// DiscoverRequest holds the parameters of one discovery run
type DiscoverRequest struct {
	Keywords []string
	Source   string
	Limit    int
	Region   string
	Language string
}

func (app *App) discoverOptions(req DiscoverRequest) DiscoverOptions {
	opts := DiscoverOptions{Limit: req.Limit, Region: req.Region, Language: req.Language}
	if opts.Limit <= 0 {
		opts.Limit = app.config.MaxResults
	}
	if opts.Region == "" {
		opts.Region = app.config.Region
	}
	if opts.Language == "" {
		opts.Language = app.config.Language
	}
	return opts
}

// Discover runs discovery for the session. Input is validated before any
// network call; search failures are reported in the result, not as an error.
func (app *App) Discover(ctx context.Context, sess *Session, req DiscoverRequest) (DiscoveryResult, error) {
	keywords := NormalizeKeywords(req.Keywords)
	if len(keywords) == 0 {
		return DiscoveryResult{}, ErrNoKeywords
	}
	searcher, err := app.Searcher(req.Source)
	if err != nil {
		return DiscoveryResult{}, err
	}

	gen := sess.StartDiscovery(keywords)
	res := NewDiscoverer(searcher, app.logger).Discover(ctx, keywords, app.discoverOptions(req))
	if res.Failed() {
		sess.FailDiscovery(gen, strings.Join(res.Notices(), "; "))
		return res, nil
	}
	sess.CompleteDiscovery(gen, res.Candidates, res.Outcomes)
	return res, nil
}

// Enrich fetches detail for every selected video in the session. Results
// come back in selection order.
func (app *App) Enrich(ctx context.Context, sess *Session, strategy string) ([]EnrichmentResult, error) {
	enricher, err := app.Enricher(strategy)
	if err != nil {
		return nil, err
	}
	gen, selected, err := sess.StartEnrichment()
	if err != nil {
		return nil, err
	}

	bar := app.ui.NewProgressBar(len(selected), "Enriching videos")
	var barMu sync.Mutex
	results := EnrichAll(ctx, enricher, selected, app.config.Workers,
		WithProgress(func(done, total int) {
			barMu.Lock()
			bar.Set(done)
			barMu.Unlock()
		}))
	bar.Finish()

	if ctx.Err() != nil {
		sess.FailEnrichment(gen, ctx.Err().Error())
		return nil, ctx.Err()
	}
	sess.CompleteEnrichment(gen, results)
	app.logger.Debug("enrichment done", slog.Int("selected", len(selected)), slog.Int("succeeded", CountSucceeded(results)))
	return results, nil
}

// Synthesize runs the requested templates over the session's successful
// enrichment results. No keys runs every template.
func (app *App) Synthesize(ctx context.Context, sess *Session, keys []string, goal string) (Synthesis, error) {
	completer, err := app.modelCompleter()
	if err != nil {
		return Synthesis{}, err
	}
	if len(keys) == 0 {
		keys = app.config.Templates
	}
	order, err := app.promptManager.ResolveKeys(keys)
	if err != nil {
		return Synthesis{}, err
	}

	gen, results, err := sess.StartSynthesis()
	if err != nil {
		return Synthesis{}, err
	}

	keyword := strings.Join(sess.Keywords(), ", ")
	header, err := app.promptManager.CreateContextHeader(PromptData{
		Keyword:  keyword,
		Goal:     goal,
		Language: app.config.ReportLanguage,
	})
	if err != nil {
		sess.FailSynthesis(gen, err.Error())
		return Synthesis{}, err
	}
	contextBlock := BuildContext(header, results)

	spinner := app.ui.NewSpinner(fmt.Sprintf("Running %d analyses", len(order)))
	synth := NewSynthesizer(completer, app.promptManager, app.config.Model, app.config.SummaryTimeout, app.logger)
	outputs := synth.SynthesizeAll(ctx, SynthesisRequest{
		Context:  contextBlock,
		Goal:     goal,
		Keyword:  keyword,
		Language: app.config.ReportLanguage,
	}, order, app.config.Workers)
	spinner.Finish()

	if ctx.Err() != nil {
		sess.FailSynthesis(gen, ctx.Err().Error())
		return Synthesis{}, ctx.Err()
	}

	out := Synthesis{Goal: goal, Order: order, Outputs: outputs}
	sess.CompleteSynthesis(gen, out)
	return out, nil
}

// Report assembles the current session state into a report
func (app *App) Report(sess *Session) (*Report, error) {
	state := sess.Snapshot()
	if len(state.Keywords) == 0 {
		return nil, ErrNoKeywords
	}

	report := &Report{
		Keywords:    state.Keywords,
		GeneratedAt: time.Now(),
		Selected:    sess.Selected(),
	}
	for _, o := range state.Outcomes {
		if o.Outcome != OutcomeOK {
			report.Notices = append(report.Notices, o.String())
		}
	}
	if state.Candidates.Status == StageFailed {
		report.Notices = append(report.Notices, "Discovery failed: "+state.Candidates.Reason)
	}

	if results, ok := state.Enrichment.Value(); ok {
		report.Enrichment = results
		if w := EnrichmentWarning(results); w != "" {
			report.Notices = append(report.Notices, w)
		}
	}

	if syn, ok := state.Synthesis.Value(); ok {
		report.Goal = syn.Goal
		for _, key := range syn.Order {
			title := key
			if t, err := app.promptManager.Lookup(key); err == nil && t.Title != "" {
				title = t.Title
			}
			report.Sections = append(report.Sections, ReportSection{Key: key, Title: title, Body: syn.Outputs[key]})
		}
	}
	return report, nil
}

// AnalyzeRequest drives a full discover, select, enrich and synthesize run
type AnalyzeRequest struct {
	DiscoverRequest
	Strategy  string
	Templates []string
	Goal      string

	// Select picks candidate ids from the discovered list
	Select func(candidates []Candidate) ([]string, error)
}

// Analyze runs the whole pipeline in a fresh session and returns its report.
// Empty discovery stops before enrichment; zero successful enrichments stop
// before synthesis. Both cases still return a report with notices.
func (app *App) Analyze(ctx context.Context, req AnalyzeRequest) (*Session, *Report, error) {
	if len(NormalizeKeywords(req.Keywords)) == 0 {
		return nil, nil, ErrNoKeywords
	}
	if req.Select == nil {
		return nil, nil, errors.New("no selection function given")
	}
	// fail on a missing key before spending any network calls
	if _, err := app.modelCompleter(); err != nil {
		return nil, nil, err
	}
	if _, err := app.Enricher(req.Strategy); err != nil {
		return nil, nil, err
	}

	sess := app.sessions.Create()

	spinner := app.ui.NewSpinner("Searching YouTube")
	res, err := app.Discover(ctx, sess, req.DiscoverRequest)
	spinner.Finish()
	if err != nil {
		return sess, nil, err
	}
	for _, n := range res.Notices() {
		app.ui.Printf("Note: %s\n", n)
	}
	if len(res.Candidates) == 0 {
		report, err := app.Report(sess)
		if report != nil {
			report.Notices = append(report.Notices, "No videos found; nothing to analyze")
		}
		return sess, report, err
	}

	ids, err := req.Select(res.Candidates)
	if err != nil {
		return sess, nil, err
	}
	if err := sess.Select(ids); err != nil {
		return sess, nil, err
	}

	results, err := app.Enrich(ctx, sess, req.Strategy)
	if err != nil {
		return sess, nil, err
	}
	if w := EnrichmentWarning(results); w != "" {
		app.ui.Printf("Warning: %s\n", w)
	}

	if _, err := app.Synthesize(ctx, sess, req.Templates, req.Goal); err != nil {
		if !errors.Is(err, ErrNothingToAnalyze) {
			return sess, nil, err
		}
		app.ui.Printf("Warning: %v\n", err)
	}

	report, err := app.Report(sess)
	if report != nil && report.Goal == "" {
		report.Goal = req.Goal
	}
	return sess, report, err
}
