package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API",
	Long: `Run an HTTP API that exposes the analysis pipeline step by step.

Each dashboard session keeps its own keywords, candidates, selection,
enrichment and synthesis. Changing an earlier step clears the later ones.

  POST /sessions                      create a session
  GET  /sessions/{id}                 session state
  POST /sessions/{id}/discover        {"keywords": [...], "limit": 10}
  POST /sessions/{id}/select          {"ids": [...]}
  POST /sessions/{id}/enrich          {"strategy": "transcript"}
  POST /sessions/{id}/synthesize      {"templates": [...], "goal": "..."}
  GET  /sessions/{id}/report.md       markdown report
  GET  /sessions/{id}/report.html     HTML report
  GET  /sessions/{id}/candidates.csv  candidates as CSV
  GET  /suggest?q=...                 keyword suggestions
  GET  /templates                     available analyses`,
	Example: `  # Serve on the configured port
  ytscout serve

  # Serve on port 9000
  ytscout serve --port 9000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Validate(); err != nil {
			return err
		}
		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			port = config.ServerPort
		}

		app := internal.NewApp(config, internal.WithLogger(slog.Default()), internal.WithUI(internal.NewUIManager(false, true)))
		defer app.Close()

		addr := fmt.Sprintf(":%d", port)
		printStatus("Serving ytscout API on http://localhost%s\n", addr)
		return internal.Serve(cmd.Context(), app, addr)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Port to listen on (default from config)")
	rootCmd.AddCommand(serveCmd)
}
