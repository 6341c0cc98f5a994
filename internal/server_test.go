package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func newTestHandler(t *testing.T) (http.Handler, *recordingCompleter) {
	t.Helper()
	completer := &recordingCompleter{reply: "SECTION BODY"}
	enricher := EnricherFunc(func(_ context.Context, c Candidate) EnrichmentResult {
		return NewEnrichmentResult(c, "transcript of video "+c.ID, c.ID != "2")
	})
	app := newTestApp(t, testConfig(t),
		WithSearcher(numberedSearcher(4)),
		WithEnricher(enricher),
		WithCompleter(completer),
	)
	return NewHandler(app), completer
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &created)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownSession(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/sessions/does-not-exist/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var e apiError
	decodeJSON(t, rec, &e)
	assert.Equal(t, "not_found_error", e.Error.Type)
}

func TestDiscoverValidation(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodPost, "/sessions/"+id+"/discover", map[string]any{"keywords": []string{" "}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var e apiError
	decodeJSON(t, rec, &e)
	assert.Equal(t, "invalid_request_error", e.Error.Type)
	assert.Contains(t, e.Error.Message, "no keywords")

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/discover", strings.NewReader("{not json"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectBeforeDiscovery(t *testing.T) {
	h, _ := newTestHandler(t)
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodPost, "/sessions/"+id+"/select", map[string]any{"ids": []string{"1"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodGet, "/sessions/"+id+"/candidates.csv", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDashboardFlow(t *testing.T) {
	h, completer := newTestHandler(t)
	id := createSession(t, h)
	base := "/sessions/" + id

	rec := doRequest(t, h, http.MethodPost, base+"/discover", map[string]any{"keywords": []string{"productivity tools"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var discovered struct {
		Candidates []Candidate      `json:"candidates"`
		Outcomes   []KeywordOutcome `json:"outcomes"`
		Notices    []string         `json:"notices"`
	}
	decodeJSON(t, rec, &discovered)
	require.Len(t, discovered.Candidates, 4)
	assert.Equal(t, OutcomeOK, discovered.Outcomes[0].Outcome)

	rec = doRequest(t, h, http.MethodPost, base+"/select", map[string]any{"ids": []string{"1", "9"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, h, http.MethodPost, base+"/select", map[string]any{"ids": []string{"1", "2", "3"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, http.MethodPost, base+"/enrich", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	var enriched struct {
		Results   []EnrichmentResult `json:"results"`
		Succeeded int                `json:"succeeded"`
		Warning   string             `json:"warning"`
	}
	decodeJSON(t, rec, &enriched)
	require.Len(t, enriched.Results, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{enriched.Results[0].ItemID, enriched.Results[1].ItemID, enriched.Results[2].ItemID})
	assert.Equal(t, 2, enriched.Succeeded)
	assert.Empty(t, enriched.Warning)

	rec = doRequest(t, h, http.MethodPost, base+"/synthesize", map[string]any{"templates": []string{"related"}, "goal": "grow"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var syn Synthesis
	decodeJSON(t, rec, &syn)
	assert.Equal(t, []string{"related"}, syn.Order)
	assert.Equal(t, "SECTION BODY", syn.Outputs["related"])
	require.Len(t, completer.prompts, 1)
	assert.NotContains(t, completer.prompts[0], "transcript of video 2")

	rec = doRequest(t, h, http.MethodGet, base+"/report.md", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	md := rec.Body.String()
	assert.Contains(t, md, "## Related topics")
	assert.Contains(t, md, "SECTION BODY")
	assert.Contains(t, md, "**Goal:** grow")
	assert.NotContains(t, md, "watch?v=4)")

	rec = doRequest(t, h, http.MethodGet, base+"/report.html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h2>Related topics</h2>")

	rec = doRequest(t, h, http.MethodGet, base+"/candidates.csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, strings.Count(rec.Body.String(), "\n"))

	// reselecting drops the downstream stages
	rec = doRequest(t, h, http.MethodPost, base+"/select", map[string]any{"ids": []string{"4"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, h, http.MethodGet, base+"/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		Enrichment struct {
			Status string `json:"status"`
		} `json:"enrichment"`
		Synthesis struct {
			Status string `json:"status"`
		} `json:"synthesis"`
	}
	decodeJSON(t, rec, &state)
	assert.Equal(t, StageNotStarted.String(), state.Enrichment.Status)
	assert.Equal(t, StageNotStarted.String(), state.Synthesis.Status)

	rec = doRequest(t, h, http.MethodPost, base+"/synthesize", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = doRequest(t, h, http.MethodDelete, base+"/", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, h, http.MethodGet, base+"/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplatesEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var items []struct {
		Key   string `json:"key"`
		Title string `json:"title"`
	}
	decodeJSON(t, rec, &items)
	require.NotEmpty(t, items)
	assert.Equal(t, "related", items[0].Key)
}

func TestSuggestEndpointRequiresQuery(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/suggest", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
