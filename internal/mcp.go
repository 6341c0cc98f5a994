package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	app       *App
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(app *App, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = DiscardLogger()
	}
	mcpServer := server.NewMCPServer(
		"ytscout-server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		app:       app,
		mcpServer: mcpServer,
		logger:    logger,
	}

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("youtube_suggest",
		mcp.WithDescription("List YouTube search autocomplete suggestions for a keyword. Free, no API key needed. Useful to widen a topic before searching."),
		mcp.WithString("keyword",
			mcp.Description("Seed keyword"),
			mcp.Required(),
		),
	), s.handleSuggest)

	s.mcpServer.AddTool(mcp.NewTool("youtube_search",
		mcp.WithDescription("Search YouTube for popular videos on one or more comma-separated keywords. Returns a numbered table with video ids, titles, channels and view counts."),
		mcp.WithString("keywords",
			mcp.Description("Comma-separated keywords"),
			mcp.Required(),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results per keyword"),
		),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("youtube_transcript",
		mcp.WithDescription("Get existing YouTube captions for a video (free). Fails if the video has no captions in the preferred languages."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL or id"),
			mcp.Required(),
		),
		mcp.WithString("languages",
			mcp.Description("Comma-separated caption languages in order of preference"),
		),
	), s.handleTranscript)

	s.mcpServer.AddTool(mcp.NewTool("content_strategy",
		mcp.WithDescription("Run a content strategy analysis: search YouTube for the keywords, enrich the chosen videos and generate strategy sections with an OpenAI model (PAID, requires OPENAI_API_KEY). Returns a markdown report."),
		mcp.WithString("keywords",
			mcp.Description("Comma-separated keywords"),
			mcp.Required(),
		),
		mcp.WithString("video_ids",
			mcp.Description("Comma-separated video ids to analyze; defaults to the top results"),
		),
		mcp.WithString("goal",
			mcp.Description("What the creator wants to achieve"),
		),
		mcp.WithString("templates",
			mcp.Description("Comma-separated template keys to run; defaults to all"),
		),
		mcp.WithNumber("top",
			mcp.Description("How many top results to analyze when video_ids is empty"),
		),
	), s.handleContentStrategy)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *MCPServer) handleSuggest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError("keyword parameter is required and must be a string"), nil
	}

	s.logger.Info("tool call", slog.String("tool", "youtube_suggest"), slog.String("keyword", keyword))
	suggestions := s.app.Suggest(ctx, keyword)
	if len(suggestions) == 0 {
		return mcp.NewToolResultText("No suggestions found"), nil
	}
	return mcp.NewToolResultText(strings.Join(suggestions, "\n")), nil
}

func (s *MCPServer) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords, err := request.RequireString("keywords")
	if err != nil {
		return mcp.NewToolResultError("keywords parameter is required and must be a string"), nil
	}
	limit := request.GetInt("limit", 0)

	s.logger.Info("tool call", slog.String("tool", "youtube_search"), slog.String("keywords", keywords))
	sess := s.app.Sessions().Create()
	defer s.app.Sessions().Delete(sess.ID)

	res, err := s.app.Discover(ctx, sess, DiscoverRequest{Keywords: splitList(keywords), Limit: limit})
	if err != nil {
		s.logger.Error("search failed", slog.Any("err", err))
		return mcp.NewToolResultErrorFromErr("search failed", err), nil
	}

	var buf strings.Builder
	for _, n := range res.Notices() {
		fmt.Fprintf(&buf, "Note: %s\n", n)
	}
	if len(res.Candidates) == 0 {
		buf.WriteString("No videos found\n")
		return mcp.NewToolResultText(buf.String()), nil
	}
	buf.WriteString("| # | ID | Title | Channel | Views |\n|---|---|---|---|---|\n")
	for i, c := range res.Candidates {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s | %s |\n", i+1, c.ID, escapeCell(c.Title), escapeCell(c.Channel), FormatViews(c.ViewCount))
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *MCPServer) handleTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	langs := splitList(request.GetString("languages", ""))

	_, videoID := ParseArg(url)
	s.logger.Info("tool call", slog.String("tool", "youtube_transcript"), slog.String("id", videoID))

	transcript, err := s.app.Transcript(ctx, videoID, langs)
	if err != nil {
		s.logger.Error("transcript failed", slog.String("id", videoID), slog.Any("err", err))
		return mcp.NewToolResultErrorFromErr("no captions available", err), nil
	}
	return mcp.NewToolResultText(transcript), nil
}

func (s *MCPServer) handleContentStrategy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keywords, err := request.RequireString("keywords")
	if err != nil {
		return mcp.NewToolResultError("keywords parameter is required and must be a string"), nil
	}
	ids := splitList(request.GetString("video_ids", ""))
	top := request.GetInt("top", 5)

	s.logger.Info("tool call", slog.String("tool", "content_strategy"), slog.String("keywords", keywords))
	sess, report, err := s.app.Analyze(ctx, AnalyzeRequest{
		DiscoverRequest: DiscoverRequest{Keywords: splitList(keywords)},
		Templates:       splitList(request.GetString("templates", "")),
		Goal:            request.GetString("goal", ""),
		Select: func(candidates []Candidate) ([]string, error) {
			if len(ids) > 0 {
				return ids, nil
			}
			return TopCandidateIDs(candidates, top), nil
		},
	})
	if sess != nil {
		defer s.app.Sessions().Delete(sess.ID)
	}
	if err != nil {
		s.logger.Error("analysis failed", slog.Any("err", err))
		return mcp.NewToolResultErrorFromErr("analysis failed", err), nil
	}
	return mcp.NewToolResultText(report.Markdown()), nil
}

// TopCandidateIDs returns the ids of the first n candidates
func TopCandidateIDs(candidates []Candidate, n int) []string {
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}
	ids := make([]string, n)
	for i := range n {
		ids[i] = candidates[i].ID
	}
	return ids
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Info("starting MCP server", slog.String("transport", "http"), slog.String("addr", addr))
		return httpServer.Start(addr)
	}

	s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
	return server.ServeStdio(s.mcpServer)
}
