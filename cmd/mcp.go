package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/rtzll/ytscout/internal"
)

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server for ytscout",
	Long: `Run a Model Context Protocol (MCP) server that exposes ytscout functionality as tools.

The MCP server provides four tools:
- youtube_suggest: Autocomplete suggestions for a keyword
- youtube_search: Popular videos for comma-separated keywords
- youtube_transcript: Existing captions of a video
- content_strategy: Full keyword analysis rendered as a markdown report

This allows AI assistants to research YouTube topics through the MCP protocol.

Transport options:
- stdio (default): Standard MCP transport via stdin/stdout
- http: HTTP transport on specified port (use --port to configure)`,
	Example: `  # Run MCP server with stdio transport (e.g. for Claude Desktop)
  ytscout mcp

  # Run MCP server with HTTP transport on port 8080
  ytscout mcp --transport=http --port=8080

  # Set up Claude Desktop integration
  ytscout mcp setup-claude`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		// stdout belongs to the protocol
		config.Verbose = false
		config.Quiet = true
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		transport, _ := cmd.Flags().GetString("transport")
		port, _ := cmd.Flags().GetInt("port")

		logger, closer := internal.NewMCPLogger(config)
		defer closer.Close()

		app := internal.NewApp(config,
			internal.WithLogger(logger),
			internal.WithUI(internal.NewUIManagerWithWriters(false, true, io.Discard, io.Discard)),
		)
		defer app.Close()

		mcpServer := internal.NewMCPServer(app, logger)

		// Start the server (this will block until context is cancelled)
		return mcpServer.Start(cmd.Context(), transport, port)
	},
}

// setupClaudeCmd represents the setup-claude subcommand
var setupClaudeCmd = &cobra.Command{
	Use:   "setup-claude",
	Short: "Configure Claude Desktop to use the ytscout MCP server",
	Long: `Register ytscout as an MCP server in Claude Desktop's claude_desktop_config.json.

Only the mcpServers.ytscout entry is written; every other setting in the file
is kept as is. The entry points at this binary and pins the XDG directories so
the server reads the same config and cache as the CLI.`,
	Example: `  # Register the server
  ytscout mcp setup-claude

  # Show the resulting config without writing it
  ytscout mcp setup-claude --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return setupClaudeDesktop(dryRun)
	},
}

// mcpServerEntry is one server under mcpServers in claude_desktop_config.json
type mcpServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

func setupClaudeDesktop(dryRun bool) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("getting executable path: %w", err)
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	configPath, err := claudeDesktopConfigPath()
	if err != nil {
		return fmt.Errorf("getting Claude Desktop config path: %w", err)
	}
	data, err := os.ReadFile(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config for Claude Desktop not found at %s", configPath)
	}
	if err != nil {
		return fmt.Errorf("reading existing config: %w", err)
	}

	updated, err := addMCPServerEntry(data, internal.AppName, mcpServerEntry{
		Command: execPath,
		Args:    []string{"mcp"},
		Env: map[string]string{
			"XDG_DATA_HOME":   xdg.DataHome,
			"XDG_CONFIG_HOME": xdg.ConfigHome,
			"XDG_CACHE_HOME":  xdg.CacheHome,
		},
	})
	if err != nil {
		return err
	}

	if dryRun {
		fmt.Println(string(updated))
		return nil
	}
	if err := os.WriteFile(configPath, updated, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Printf("Added the %s MCP server to %s\n", internal.AppName, configPath)
	fmt.Println("Restart Claude Desktop to use it")
	return nil
}

// addMCPServerEntry sets mcpServers.<name> in a Claude Desktop config and
// returns the indented result. Unrelated keys are preserved.
func addMCPServerEntry(data []byte, name string, entry mcpServerEntry) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("parsing existing config: invalid JSON")
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, errors.New("parsing existing config: top level is not an object")
	}

	updated, err := sjson.SetBytes(data, "mcpServers."+gjsonEscape(name), entry)
	if err != nil {
		return nil, fmt.Errorf("updating config: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, updated, "", "  "); err != nil {
		return nil, fmt.Errorf("formatting config: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

// gjsonEscape escapes path syntax in a single key
func gjsonEscape(key string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(key)
}

// claudeDesktopConfigPath returns the platform config path for Claude
// Desktop. os.UserConfigDir already maps to Application Support on macOS and
// %AppData% on Windows.
func claudeDesktopConfigPath() (string, error) {
	switch runtime.GOOS {
	case "darwin", "windows", "linux":
	default:
		return "", fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "Claude", "claude_desktop_config.json"), nil
}

func init() {
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol (stdio or http)")
	mcpCmd.Flags().Int("port", 8080, "Port for HTTP transport (only used with --transport=http)")
	setupClaudeCmd.Flags().Bool("dry-run", false, "Print the updated config instead of writing it")
	mcpCmd.AddCommand(setupClaudeCmd)
	rootCmd.AddCommand(mcpCmd)
}
