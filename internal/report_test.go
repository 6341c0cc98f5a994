package internal

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	return &Report{
		Keywords:    []string{"latte art", "coffee"},
		Goal:        "grow a cafe channel",
		GeneratedAt: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Selected: []Candidate{
			{ID: "a", Title: "Heart | Tulip", Channel: "Barista", ViewCount: 1234567, URL: WatchURL("a")},
			{ID: "b", Title: "Rosetta", Channel: "Cafe", ViewCount: 99, URL: WatchURL("b")},
		},
		Enrichment: []EnrichmentResult{
			{ItemID: "a", Success: true},
			{ItemID: "b", Success: false},
		},
		Sections: []ReportSection{
			{Key: "related", Title: "Related topics", Body: "- milk frothing\n- <b>espresso</b>"},
			{Key: "titles", Title: "Titles and thumbnails", Body: "Synthesis failed (titles): timeout"},
		},
		Notices: []string{`"coffee": no results`},
	}
}

func TestReportMarkdown(t *testing.T) {
	md := sampleReport().Markdown()

	assert.True(t, strings.HasPrefix(md, "# Content strategy: latte art, coffee\n"))
	assert.Contains(t, md, "**Goal:** grow a cafe channel")
	assert.Contains(t, md, "_Generated 2026-03-01 09:30_")
	assert.Contains(t, md, "> **Note:** \"coffee\": no results")
	assert.Contains(t, md, `| 1 | [Heart \| Tulip](https://www.youtube.com/watch?v=a) | Barista | 1,234,567 | ok |`)
	assert.Contains(t, md, "| 2 | [Rosetta](https://www.youtube.com/watch?v=b) | Cafe | 99 | unavailable |")
	assert.Contains(t, md, "## Titles and thumbnails\n\nSynthesis failed (titles): timeout")

	assert.Less(t, strings.Index(md, "## Related topics"), strings.Index(md, "## Titles and thumbnails"))
}

func TestReportMarkdownWithoutSelection(t *testing.T) {
	r := &Report{Keywords: []string{"kw"}, Notices: []string{"No videos found; nothing to analyze"}}
	md := r.Markdown()
	assert.NotContains(t, md, "## Analyzed videos")
	assert.Contains(t, md, "No videos found")
}

func TestReportHTMLPage(t *testing.T) {
	r := sampleReport()
	r.Keywords = []string{"<script>"}
	page, err := r.HTMLPage()
	require.NoError(t, err)

	assert.Contains(t, page, "<title>Content strategy: &lt;script&gt;</title>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<h2>Related topics</h2>")
	assert.Contains(t, page, "<li>milk frothing</li>")
	// raw HTML in model output is not passed through
	assert.NotContains(t, page, "<b>espresso</b>")
}

func TestReportWriteDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, sampleReport().WriteDOCX(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestWriteCandidatesCSV(t *testing.T) {
	var buf bytes.Buffer
	cands := []Candidate{
		{ID: "a", Title: `Say "hi", world`, Channel: "C", ViewCount: 10, URL: WatchURL("a"), SourceKeyword: "kw"},
	}
	require.NoError(t, WriteCandidatesCSV(&buf, cands))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"index", "id", "title", "channel", "view_count", "url", "source_keyword"}, rows[0])
	assert.Equal(t, []string{"1", "a", `Say "hi", world`, "C", "10", WatchURL("a"), "kw"}, rows[1])
}

func TestCandidatesMarkdown(t *testing.T) {
	md := CandidatesMarkdown([]Candidate{{ID: "a", Title: "A\nB", Channel: "C", ViewCount: 1000, SourceKeyword: "kw"}})
	assert.Contains(t, md, "| 1 | A B | C | 1,000 | kw |")
}

func TestFormatViews(t *testing.T) {
	assert.Equal(t, "0", FormatViews(0))
	assert.Equal(t, "999", FormatViews(999))
	assert.Equal(t, "1,000", FormatViews(1000))
	assert.Equal(t, "12,345,678", FormatViews(12345678))
}
