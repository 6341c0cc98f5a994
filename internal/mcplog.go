package internal

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// NewMCPLogger opens the MCP log file in the cache directory. stdio MCP
// sessions own stdout, so nothing else may write there. The returned closer
// must be called on shutdown.
func NewMCPLogger(config *Config) (*slog.Logger, io.Closer) {
	if !config.MCPLogEnabled {
		return DiscardLogger(), io.NopCloser(nil)
	}

	if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
		return DiscardLogger(), io.NopCloser(nil)
	}

	logPath := filepath.Join(config.CacheDir, "mcp.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return DiscardLogger(), io.NopCloser(nil)
	}

	handler := slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(handler).With(slog.String("component", "mcp")), logFile
}
