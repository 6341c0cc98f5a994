package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const (
	ytWebBase           = "https://www.youtube.com"
	ytDataAPIBase       = "https://www.googleapis.com/youtube/v3"
	ytInitialDataMarker = "var ytInitialData = "
	ytSearchFilter      = "EgIQAQ%3D%3D" // videos only
	ytUserAgent         = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0 Safari/537.36"
	ytMaxAPIResults     = 50
)

// ErrMissingYouTubeKey is returned by the Data API searcher without a key
var ErrMissingYouTubeKey = errors.New("YouTube Data API key is required - set youtube_api_key in config.toml or YOUTUBE_API_KEY environment variable")

// YouTube talks to youtube.com and the YouTube Data API
type YouTube struct {
	client  *http.Client
	webBase string
	apiBase string
	apiKeys []string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// YouTubeOption customizes a YouTube client
type YouTubeOption func(*YouTube)

// WithYouTubeBaseURLs overrides the web and Data API endpoints
func WithYouTubeBaseURLs(web, api string) YouTubeOption {
	return func(yt *YouTube) {
		if web != "" {
			yt.webBase = strings.TrimRight(web, "/")
		}
		if api != "" {
			yt.apiBase = strings.TrimRight(api, "/")
		}
	}
}

// WithAPIKeys sets the Data API keys; later keys are tried when earlier ones fail
func WithAPIKeys(keys ...string) YouTubeOption {
	return func(yt *YouTube) {
		yt.apiKeys = yt.apiKeys[:0]
		for _, k := range keys {
			if k != "" {
				yt.apiKeys = append(yt.apiKeys, k)
			}
		}
	}
}

// WithRequestRate paces requests to youtube.com. Zero or less disables pacing.
func WithRequestRate(perSecond float64) YouTubeOption {
	return func(yt *YouTube) {
		if perSecond <= 0 {
			yt.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		yt.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewYouTube creates a YouTube client
func NewYouTube(client *http.Client, logger *slog.Logger, options ...YouTubeOption) *YouTube {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	yt := &YouTube{
		client:  client,
		webBase: ytWebBase,
		apiBase: ytDataAPIBase,
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  logger,
	}
	for _, option := range options {
		option(yt)
	}
	return yt
}

// WatchURL returns the canonical watch URL for a video id
func WatchURL(videoID string) string {
	return ytWebBase + "/watch?v=" + videoID
}

// --- Data API v3 ---

type ytSearchListResp struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type ytThumbnail struct {
	URL string `json:"url"`
}

type ytVideosListResp struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				Default ytThumbnail `json:"default"`
				Medium  ytThumbnail `json:"medium"`
				High    ytThumbnail `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// SearchAPI searches through the Data API: search.list for ids, then
// videos.list for snippets and statistics. Each configured key is tried in
// turn.
func (yt *YouTube) SearchAPI(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	if len(yt.apiKeys) == 0 {
		return nil, ErrMissingYouTubeKey
	}
	var lastErr error
	for i, key := range yt.apiKeys {
		videos, err := yt.searchAPIWithKey(ctx, q, key)
		if err == nil {
			return videos, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(yt.apiKeys)-1 {
			yt.logger.Debug("youtube: data API key failed, trying fallback", slog.Any("err", err))
		}
	}
	return nil, lastErr
}

func (yt *YouTube) searchAPIWithKey(ctx context.Context, q SearchQuery, key string) ([]Candidate, error) {
	limit := q.Limit
	if limit <= 0 || limit > ytMaxAPIResults {
		limit = ytMaxAPIResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("q", q.Keyword)
	params.Set("type", "video")
	params.Set("maxResults", strconv.Itoa(limit))
	if q.Region != "" {
		params.Set("regionCode", q.Region)
	}
	if q.Language != "" && q.Language != "all" {
		params.Set("relevanceLanguage", q.Language)
	}

	var search ytSearchListResp
	if err := yt.getJSON(ctx, yt.apiBase+"/search?"+params.Encode(), key, &search); err != nil {
		return nil, fmt.Errorf("youtube search.list: %w", err)
	}

	ids := make([]string, 0, len(search.Items))
	for _, item := range search.Items {
		if item.ID.VideoID != "" {
			ids = append(ids, item.ID.VideoID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	params = url.Values{}
	params.Set("part", "snippet,statistics")
	params.Set("id", strings.Join(ids, ","))

	var details ytVideosListResp
	if err := yt.getJSON(ctx, yt.apiBase+"/videos?"+params.Encode(), key, &details); err != nil {
		return nil, fmt.Errorf("youtube videos.list: %w", err)
	}

	byID := make(map[string]Candidate, len(details.Items))
	for _, item := range details.Items {
		views, _ := strconv.ParseInt(item.Statistics.ViewCount, 10, 64)
		thumb := item.Snippet.Thumbnails.High.URL
		if thumb == "" {
			thumb = item.Snippet.Thumbnails.Medium.URL
		}
		if thumb == "" {
			thumb = item.Snippet.Thumbnails.Default.URL
		}
		byID[item.ID] = Candidate{
			ID:            item.ID,
			Title:         item.Snippet.Title,
			Channel:       item.Snippet.ChannelTitle,
			ViewCount:     views,
			URL:           WatchURL(item.ID),
			ThumbnailURL:  thumb,
			Snippet:       truncateRunes(item.Snippet.Description, 300),
			SourceKeyword: q.Keyword,
		}
	}

	// keep search.list ranking
	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// getJSON sends the key as a header so it never shows up in url.Error text
func (yt *YouTube) getJSON(ctx context.Context, rawURL, key string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Goog-Api-Key", key)
	resp, err := yt.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// --- results page scraping ---

type ytRuns struct {
	Runs []struct {
		Text string `json:"text"`
	} `json:"runs"`
	SimpleText string `json:"simpleText"`
}

func (r ytRuns) String() string {
	if r.SimpleText != "" {
		return r.SimpleText
	}
	var sb strings.Builder
	for _, run := range r.Runs {
		sb.WriteString(run.Text)
	}
	return sb.String()
}

type ytVideoRenderer struct {
	VideoID   string `json:"videoId"`
	Title     ytRuns `json:"title"`
	OwnerText ytRuns `json:"ownerText"`
	Thumbnail struct {
		Thumbnails []ytThumbnail `json:"thumbnails"`
	} `json:"thumbnail"`
	ViewCountText        ytRuns  `json:"viewCountText"`
	DescriptionSnippet   *ytRuns `json:"descriptionSnippet"`
	DetailedMetadataRuns []struct {
		SnippetText ytRuns `json:"snippetText"`
	} `json:"detailedMetadataSnippets"`
}

// SearchScrape scrapes the youtube.com results page and reads ytInitialData
func (yt *YouTube) SearchScrape(ctx context.Context, q SearchQuery) ([]Candidate, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	params := url.Values{}
	params.Set("search_query", q.Keyword)
	if q.Language != "" {
		params.Set("hl", q.Language)
	}
	if q.Region != "" {
		params.Set("gl", q.Region)
	}
	searchURL := yt.webBase + "/results?" + params.Encode() + "&sp=" + ytSearchFilter

	body, err := yt.fetchPage(ctx, searchURL, 4*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("youtube search page: %w", err)
	}

	idx := strings.Index(string(body), ytInitialDataMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialData not found in YouTube search response")
	}
	data := extractJSON(body[idx+len(ytInitialDataMarker):])
	if data == nil {
		return nil, errors.New("failed to extract ytInitialData JSON")
	}

	out := extractVideoRenderers(data, limit)
	for i := range out {
		out[i].SourceKeyword = q.Keyword
	}
	return out, nil
}

func (yt *YouTube) fetchPage(ctx context.Context, pageURL string, maxBytes int64) ([]byte, error) {
	if err := yt.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", ytUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := yt.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

// extractJSON returns the JSON object starting at b[0] by tracking brace depth
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}

// extractVideoRenderers walks ytInitialData depth-first, in document order,
// collecting videoRenderer entries
func extractVideoRenderers(data []byte, limit int) []Candidate {
	var results []Candidate
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		if len(results) >= limit || !(v.IsObject() || v.IsArray()) {
			return
		}
		if raw := v.Get("videoRenderer"); v.IsObject() && raw.Exists() {
			var vr ytVideoRenderer
			if err := json.Unmarshal([]byte(raw.Raw), &vr); err == nil && vr.VideoID != "" {
				results = append(results, candidateFromRenderer(vr))
				return
			}
		}
		v.ForEach(func(_, child gjson.Result) bool {
			walk(child)
			return len(results) < limit
		})
	}
	walk(gjson.ParseBytes(data))
	return results
}

func candidateFromRenderer(vr ytVideoRenderer) Candidate {
	snippet := ""
	if vr.DescriptionSnippet != nil {
		snippet = vr.DescriptionSnippet.String()
	} else if len(vr.DetailedMetadataRuns) > 0 {
		snippet = vr.DetailedMetadataRuns[0].SnippetText.String()
	}
	thumb := ""
	if n := len(vr.Thumbnail.Thumbnails); n > 0 {
		thumb = vr.Thumbnail.Thumbnails[n-1].URL
	}
	return Candidate{
		ID:           vr.VideoID,
		Title:        vr.Title.String(),
		Channel:      vr.OwnerText.String(),
		ViewCount:    parseViewCount(vr.ViewCountText.String()),
		URL:          WatchURL(vr.VideoID),
		ThumbnailURL: thumb,
		Snippet:      truncateRunes(snippet, 300),
	}
}

// parseViewCount reads "1,234,567 views" style text. Abbreviated counts
// such as "1.2M views" are expanded.
func parseViewCount(s string) int64 {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0
	}
	fields := strings.Fields(s)
	num := fields[0]
	mult := 1.0
	switch {
	case strings.HasSuffix(num, "k"):
		mult, num = 1e3, strings.TrimSuffix(num, "k")
	case strings.HasSuffix(num, "m"):
		mult, num = 1e6, strings.TrimSuffix(num, "m")
	case strings.HasSuffix(num, "b"):
		mult, num = 1e9, strings.TrimSuffix(num, "b")
	}
	if mult > 1 {
		f, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0
		}
		return int64(f * mult)
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, num)
	n, _ := strconv.ParseInt(digits, 10, 64)
	return n
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
