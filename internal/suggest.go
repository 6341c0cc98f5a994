package internal

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	suggestEndpoint       = "http://suggestqueries.google.com/complete/search"
	defaultSuggestTimeout = 3 * time.Second
)

// Suggester looks up YouTube autocomplete suggestions for a keyword.
// It does not consume any Data API quota.
type Suggester struct {
	client   *http.Client
	endpoint string
	locale   string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewSuggester creates a suggester for the given locale (hl parameter)
func NewSuggester(client *http.Client, locale string, timeout time.Duration, logger *slog.Logger) *Suggester {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultSuggestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Suggester{
		client:   client,
		endpoint: suggestEndpoint,
		locale:   locale,
		timeout:  timeout,
		logger:   logger,
	}
}

// WithEndpoint points the suggester at a different server
func (s *Suggester) WithEndpoint(endpoint string) *Suggester {
	s.endpoint = endpoint
	return s
}

// Suggest returns completion strings for keyword. Timeouts, transport
// errors and garbled responses all yield an empty list.
func (s *Suggester) Suggest(ctx context.Context, keyword string) []string {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("client", "firefox")
	params.Set("ds", "yt")
	params.Set("q", keyword)
	if s.locale != "" {
		params.Set("hl", s.locale)
	}
	params.Set("ie", "utf-8")
	params.Set("oe", "utf-8")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		s.logger.Debug("suggest: building request", slog.Any("err", err))
		return nil
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("suggest: request failed", slog.String("keyword", keyword), slog.Any("err", err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("suggest: unexpected status", slog.String("keyword", keyword), slog.Int("status", resp.StatusCode))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		s.logger.Warn("suggest: reading body", slog.Any("err", err))
		return nil
	}

	return parseSuggestions(body)
}

// parseSuggestions reads the second element of the ["query", [suggestions...]] array
func parseSuggestions(body []byte) []string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	list := gjson.GetBytes(body, "1")
	if !list.IsArray() {
		return nil
	}
	var out []string
	for _, item := range list.Array() {
		if item.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(item.String()); s != "" {
			out = append(out, s)
		}
	}
	return out
}
