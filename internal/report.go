package internal

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gingfrederik/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
)

// ReportSection is one synthesis output with its display title
type ReportSection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Report is the rendered result of an analysis run
type Report struct {
	Keywords    []string           `json:"keywords"`
	Goal        string             `json:"goal,omitempty"`
	GeneratedAt time.Time          `json:"generated_at"`
	Selected    []Candidate        `json:"selected"`
	Enrichment  []EnrichmentResult `json:"enrichment"`
	Sections    []ReportSection    `json:"sections"`
	Notices     []string           `json:"notices,omitempty"`
}

// Markdown renders the report. Only selected videos are listed.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Content strategy: %s\n\n", strings.Join(r.Keywords, ", "))
	if r.Goal != "" {
		fmt.Fprintf(&b, "**Goal:** %s\n\n", r.Goal)
	}
	if !r.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "_Generated %s_\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))
	}

	for _, n := range r.Notices {
		fmt.Fprintf(&b, "> **Note:** %s\n\n", n)
	}

	if len(r.Selected) > 0 {
		status := make(map[string]bool, len(r.Enrichment))
		for _, e := range r.Enrichment {
			status[e.ItemID] = e.Success
		}

		b.WriteString("## Analyzed videos\n\n")
		b.WriteString("| # | Title | Channel | Views | Detail |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for i, c := range r.Selected {
			detail := "-"
			if ok, found := status[c.ID]; found {
				detail = "ok"
				if !ok {
					detail = "unavailable"
				}
			}
			fmt.Fprintf(&b, "| %d | [%s](%s) | %s | %s | %s |\n",
				i+1, escapeCell(c.Title), c.URL, escapeCell(c.Channel), FormatViews(c.ViewCount), detail)
		}
		b.WriteString("\n")
	}

	for _, s := range r.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Body))
	}

	return strings.TrimSpace(b.String()) + "\n"
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

// HTML renders the markdown report as an HTML fragment
func (r *Report) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("rendering HTML: %w", err)
	}
	return buf.String(), nil
}

// HTMLPage wraps the HTML report in a standalone document
func (r *Report) HTMLPage() (string, error) {
	body, err := r.HTML()
	if err != nil {
		return "", err
	}
	title := "Content strategy: " + strings.Join(r.Keywords, ", ")
	return fmt.Sprintf("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>%s</title>\n</head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), body), nil
}

// WriteDOCX saves the report as a Word document
func (r *Report) WriteDOCX(path string) error {
	f := docx.NewFile()

	run := f.AddParagraph().AddText("Content strategy: " + strings.Join(r.Keywords, ", "))
	run.Size(20)

	if r.Goal != "" {
		f.AddParagraph().AddText("Goal: " + r.Goal)
	}
	if !r.GeneratedAt.IsZero() {
		run = f.AddParagraph().AddText("Generated " + r.GeneratedAt.Format("2006-01-02 15:04"))
		run.Size(10)
		run.Color("808080")
	}
	for _, n := range r.Notices {
		run = f.AddParagraph().AddText("Note: " + n)
		run.Color("B00000")
	}
	f.AddParagraph()

	if len(r.Selected) > 0 {
		run = f.AddParagraph().AddText("Analyzed videos")
		run.Size(16)
		for i, c := range r.Selected {
			f.AddParagraph().AddText(fmt.Sprintf("%d. %s (%s, %s views)", i+1, c.Title, c.Channel, FormatViews(c.ViewCount)))
			run = f.AddParagraph().AddText(c.URL)
			run.Size(10)
			run.Color("0000FF")
		}
		f.AddParagraph().AddText("--------------------------------------------------")
	}

	for _, s := range r.Sections {
		run = f.AddParagraph().AddText(s.Title)
		run.Size(16)
		for _, para := range strings.Split(s.Body, "\n\n") {
			para = strings.TrimSpace(para)
			if para != "" {
				f.AddParagraph().AddText(para)
			}
		}
		f.AddParagraph().AddText("--------------------------------------------------")
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("saving DOCX: %w", err)
	}
	return nil
}

// WriteCandidatesCSV writes the candidate list as CSV with a header row
func WriteCandidatesCSV(w io.Writer, candidates []Candidate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "id", "title", "channel", "view_count", "url", "source_keyword"}); err != nil {
		return err
	}
	for i, c := range candidates {
		row := []string{
			strconv.Itoa(i + 1),
			c.ID,
			c.Title,
			c.Channel,
			strconv.FormatInt(c.ViewCount, 10),
			c.URL,
			c.SourceKeyword,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CandidatesMarkdown renders a numbered candidate table for selection
func CandidatesMarkdown(candidates []Candidate) string {
	var b strings.Builder
	b.WriteString("| # | Title | Channel | Views | Keyword |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for i, c := range candidates {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s |\n",
			i+1, escapeCell(c.Title), escapeCell(c.Channel), FormatViews(c.ViewCount), escapeCell(c.SourceKeyword))
	}
	return b.String()
}
