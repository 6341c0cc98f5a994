package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search [keywords...]",
	Short: "List popular YouTube videos for keywords",
	Example: `  # Search one keyword
  ytscout search "productivity tools"

  # Several keywords through the Data API, saved as CSV
  ytscout search "notion, obsidian" --source api --csv -o candidates.csv

  # Pretty JSON output
  ytscout search "latte art" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config, internal.WithLogger(slog.Default()))
		defer app.Close()

		req := internal.DiscoverRequest{Keywords: args}
		internal.ApplyDiscoveryFlags(cmd, &req)

		sess := app.Sessions().Create()
		res, err := app.Discover(cmd.Context(), sess, req)
		if err != nil {
			return err
		}
		for _, n := range res.Notices() {
			printStatus("Note: %s\n", n)
		}

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		asCSV, _ := cmd.Flags().GetBool("csv")
		asJSON, _ := cmd.Flags().GetBool("json")
		switch {
		case asCSV:
			return internal.WriteCandidatesCSV(out, res.Candidates)
		case asJSON:
			candidates := res.Candidates
			if candidates == nil {
				candidates = []internal.Candidate{}
			}
			data, err := json.MarshalIndent(candidates, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding candidates: %w", err)
			}
			_, err = fmt.Fprintln(out, string(data))
			return err
		}

		if len(res.Candidates) == 0 {
			printStatus("No videos found\n")
			return nil
		}
		if out != os.Stdout {
			_, err := fmt.Fprint(out, internal.CandidatesMarkdown(res.Candidates))
			return err
		}
		printMarkdown(internal.CandidatesMarkdown(res.Candidates))
		return nil
	},
}

func init() {
	internal.AddDiscoveryFlags(searchCmd)
	searchCmd.Flags().Bool("csv", false, "Print results as CSV")
	searchCmd.Flags().Bool("json", false, "Print results as JSON")
	searchCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(searchCmd)
}
