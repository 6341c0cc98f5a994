package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><script>var ytInitialData = {"contents":{"sectionListRenderer":{"contents":[{"itemSectionRenderer":{"contents":[
{"videoRenderer":{"videoId":"vid00000001","title":{"runs":[{"text":"Best "},{"text":"productivity apps"}]},"ownerText":{"runs":[{"text":"Ali Abdaal"}]},"viewCountText":{"simpleText":"1,234,567 views"},"thumbnail":{"thumbnails":[{"url":"small.jpg"},{"url":"big.jpg"}]},"descriptionSnippet":{"runs":[{"text":"My {favourite} tools"}]}}},
{"adSlotRenderer":{}},
{"videoRenderer":{"videoId":"vid00000002","title":{"runs":[{"text":"Notion tour"}]},"ownerText":{"runs":[{"text":"Thomas"}]},"viewCountText":{"simpleText":"3.5K views"}}}
]}}]}}};</script></html>`

func TestSearchScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/results", r.URL.Path)
		assert.Equal(t, "productivity tools", r.URL.Query().Get("search_query"))
		assert.Equal(t, "TW", r.URL.Query().Get("gl"))
		fmt.Fprint(w, resultsPage)
	}))
	t.Cleanup(srv.Close)

	yt := NewYouTube(srv.Client(), DiscardLogger(), WithYouTubeBaseURLs(srv.URL, ""))
	got, err := yt.SearchScrape(context.Background(), SearchQuery{Keyword: "productivity tools", Region: "TW", Limit: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "vid00000001", got[0].ID)
	assert.Equal(t, "Best productivity apps", got[0].Title)
	assert.Equal(t, "Ali Abdaal", got[0].Channel)
	assert.Equal(t, int64(1234567), got[0].ViewCount)
	assert.Equal(t, "big.jpg", got[0].ThumbnailURL)
	assert.Equal(t, "My {favourite} tools", got[0].Snippet)
	assert.Equal(t, "productivity tools", got[0].SourceKeyword)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid00000001", got[0].URL)
	assert.Equal(t, int64(3500), got[1].ViewCount)
}

func TestSearchScrapeRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, resultsPage)
	}))
	t.Cleanup(srv.Close)

	yt := NewYouTube(srv.Client(), DiscardLogger(), WithYouTubeBaseURLs(srv.URL, ""))
	got, err := yt.SearchScrape(context.Background(), SearchQuery{Keyword: "kw", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearchScrapeMissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>consent page</html>")
	}))
	t.Cleanup(srv.Close)

	yt := NewYouTube(srv.Client(), DiscardLogger(), WithYouTubeBaseURLs(srv.URL, ""))
	_, err := yt.SearchScrape(context.Background(), SearchQuery{Keyword: "kw"})
	assert.ErrorContains(t, err, "ytInitialData not found")
}

func TestSearchAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "good-key", r.Header.Get("X-Goog-Api-Key"))
			assert.Empty(t, r.URL.Query().Get("key"))
			assert.Equal(t, "video", r.URL.Query().Get("type"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			fmt.Fprint(w, `{"items":[{"id":{"videoId":"b"}},{"id":{"videoId":"a"}}]}`)
		case "/videos":
			assert.Equal(t, "b,a", r.URL.Query().Get("id"))
			fmt.Fprint(w, `{"items":[
				{"id":"a","snippet":{"title":"A","channelTitle":"Chan A","thumbnails":{"default":{"url":"a.jpg"}}},"statistics":{"viewCount":"10"}},
				{"id":"b","snippet":{"title":"B","channelTitle":"Chan B","thumbnails":{"high":{"url":"b.jpg"}}},"statistics":{"viewCount":"2000"}}
			]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	yt := NewYouTube(srv.Client(), DiscardLogger(), WithYouTubeBaseURLs("", srv.URL), WithAPIKeys("good-key"))
	got, err := yt.SearchAPI(context.Background(), SearchQuery{Keyword: "kw", Limit: 5})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, int64(2000), got[0].ViewCount)
	assert.Equal(t, "b.jpg", got[0].ThumbnailURL)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "a.jpg", got[1].ThumbnailURL)
	assert.Equal(t, "kw", got[1].SourceKeyword)
}

func TestSearchAPIFallsBackToSecondKey(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-Goog-Api-Key")
		keys = append(keys, key)
		if key == "spent" {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"error":{"message":"quotaExceeded"}}`)
			return
		}
		fmt.Fprint(w, `{"items":[]}`)
	}))
	t.Cleanup(srv.Close)

	yt := NewYouTube(srv.Client(), DiscardLogger(), WithYouTubeBaseURLs("", srv.URL), WithAPIKeys("spent", "", "fresh"))
	got, err := yt.SearchAPI(context.Background(), SearchQuery{Keyword: "kw"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"spent", "fresh"}, keys)
}

func TestSearchAPIErrorsDoNotExposeKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	yt := NewYouTube(http.DefaultClient, DiscardLogger(), WithYouTubeBaseURLs("", base), WithAPIKeys("AIzaSecretKey"))
	res := NewDiscoverer(SearcherFunc(yt.SearchAPI), DiscardLogger()).Discover(context.Background(), []string{"kw"}, DiscoverOptions{})
	require.True(t, res.Failed())
	require.Len(t, res.Outcomes, 1)
	assert.NotEmpty(t, res.Outcomes[0].Error)
	assert.NotContains(t, res.Outcomes[0].Error, "AIzaSecretKey")
	for _, notice := range res.Notices() {
		assert.NotContains(t, notice, "AIzaSecretKey")
	}
}

func TestSearchAPIWithoutKey(t *testing.T) {
	yt := NewYouTube(nil, DiscardLogger())
	_, err := yt.SearchAPI(context.Background(), SearchQuery{Keyword: "kw"})
	assert.ErrorIs(t, err, ErrMissingYouTubeKey)
}

func TestParseViewCount(t *testing.T) {
	tests := map[string]int64{
		"1,234 views": 1234,
		"3.5K views":  3500,
		"2M views":    2000000,
		"No views":    0,
		"":            0,
		"987 次觀看":    987,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseViewCount(in), in)
	}
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":"}{","b":{"c":1}}`, string(extractJSON([]byte(`{"a":"}{","b":{"c":1}};var x = 1;`))))
	assert.Nil(t, extractJSON([]byte(`{"unterminated":`)))
	assert.Nil(t, extractJSON([]byte(`[1,2]`)))
}
