package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxRequestBodySize = 1 << 20

type discoverBody struct {
	Keywords []string `json:"keywords"`
	Source   string   `json:"source"`
	Limit    int      `json:"limit"`
	Region   string   `json:"region"`
	Language string   `json:"language"`
}

type selectBody struct {
	IDs []string `json:"ids"`
}

type enrichBody struct {
	Strategy string `json:"strategy"`
}

type synthesizeBody struct {
	Templates []string `json:"templates"`
	Goal      string   `json:"goal"`
}

// NewHandler returns the dashboard API router
func NewHandler(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/suggest", handleSuggest(app))
	r.Get("/templates", handleTemplates(app))

	r.Post("/sessions", handleCreateSession(app))
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", handleGetSession(app))
		r.Delete("/", handleDeleteSession(app))
		r.Post("/discover", handleDiscover(app))
		r.Post("/select", handleSelect(app))
		r.Post("/enrich", handleEnrich(app))
		r.Post("/synthesize", handleSynthesize(app))
		r.Get("/report.md", handleReportMarkdown(app))
		r.Get("/report.html", handleReportHTML(app))
		r.Get("/candidates.csv", handleCandidatesCSV(app))
	})

	return r
}

// Serve runs the dashboard API until ctx is cancelled
func Serve(ctx context.Context, app *App, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("api server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleSuggest(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
			return
		}
		suggestions := app.Suggest(r.Context(), q)
		if suggestions == nil {
			suggestions = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"query": q, "suggestions": suggestions})
	}
}

func handleTemplates(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates, err := app.Prompts().Templates()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading templates: %v", err)
			return
		}
		type item struct {
			Key         string `json:"key"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		out := make([]item, 0, len(templates))
		for _, t := range templates {
			out = append(out, item{Key: t.Key, Title: t.Title, Description: t.Description})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func handleCreateSession(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := app.Sessions().Create()
		writeJSON(w, http.StatusCreated, sess.Snapshot())
	}
}

func sessionFromRequest(app *App, w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := app.Sessions().Get(chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
		return nil, false
	}
	return sess, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func handleGetSession(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func handleDeleteSession(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		app.Sessions().Delete(sess.ID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDiscover(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		var body discoverBody
		if !decodeBody(w, r, &body) {
			return
		}
		res, err := app.Discover(r.Context(), sess, DiscoverRequest{
			Keywords: body.Keywords,
			Source:   body.Source,
			Limit:    body.Limit,
			Region:   body.Region,
			Language: body.Language,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		candidates := res.Candidates
		if candidates == nil {
			candidates = []Candidate{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"candidates": candidates,
			"outcomes":   res.Outcomes,
			"notices":    res.Notices(),
		})
	}
}

func handleSelect(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		var body selectBody
		if !decodeBody(w, r, &body) {
			return
		}
		if err := sess.Select(body.IDs); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"selected": sess.Selected()})
	}
}

func handleEnrich(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		var body enrichBody
		if !decodeBody(w, r, &body) {
			return
		}
		results, err := app.Enrich(r.Context(), sess, body.Strategy)
		if err != nil {
			writeAppError(w, err)
			return
		}
		resp := map[string]any{
			"results":   results,
			"succeeded": CountSucceeded(results),
		}
		if warn := EnrichmentWarning(results); warn != "" {
			resp["warning"] = warn
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSynthesize(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		var body synthesizeBody
		if !decodeBody(w, r, &body) {
			return
		}
		out, err := app.Synthesize(r.Context(), sess, body.Templates, body.Goal)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func sessionReport(app *App, w http.ResponseWriter, r *http.Request) (*Report, bool) {
	sess, ok := sessionFromRequest(app, w, r)
	if !ok {
		return nil, false
	}
	report, err := app.Report(sess)
	if err != nil {
		writeAppError(w, err)
		return nil, false
	}
	return report, true
}

func handleReportMarkdown(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := sessionReport(app, w, r)
		if !ok {
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		fmt.Fprint(w, report.Markdown())
	}
}

func handleReportHTML(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := sessionReport(app, w, r)
		if !ok {
			return
		}
		page, err := report.HTMLPage()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}
}

func handleCandidatesCSV(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromRequest(app, w, r)
		if !ok {
			return
		}
		candidates, found := sess.Snapshot().Candidates.Value()
		if !found {
			writeAppError(w, ErrNoCandidates)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="candidates.csv"`)
		if err := WriteCandidatesCSV(w, candidates); err != nil {
			slog.Warn("writing candidates csv", slog.Any("err", err))
		}
	}
}

// writeAppError maps pipeline errors to status codes. Missing or invalid
// input is a 400 so callers can fix the request.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, ErrNoKeywords),
		errors.Is(err, ErrNoSelection),
		errors.Is(err, ErrNoCandidates),
		errors.Is(err, ErrUnknownVideo),
		errors.Is(err, ErrMissingAPIKey),
		errors.Is(err, ErrMissingYouTubeKey),
		errors.Is(err, ErrInvalidOption):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, ErrNothingToAnalyze):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpError(w, http.StatusGatewayTimeout, "api_error", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
