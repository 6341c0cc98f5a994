package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [keywords...]",
	Short: "Build a content strategy report from YouTube keywords",
	Example: `  # Search, choose videos interactively and analyze them
  ytscout analyze "productivity tools"

  # Non-interactive: analyze the top 5 results
  ytscout analyze "productivity tools" --yes --top 5

  # Summarize videos with the model instead of captions
  ytscout analyze "latte art" --strategy model --select 1-3

  # Save the report in several formats
  ytscout analyze "budget travel" --select all -o report.md --html report.html --docx report.docx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd, args)
	},
}

func addAnalyzeFlags(cmd *cobra.Command) {
	internal.AddDiscoveryFlags(cmd)
	internal.AddOpenAIFlags(cmd)
	cmd.Flags().StringP("select", "s", "", `Videos to analyze: indices ("1,3", "2-4"), video ids or "all"`)
	cmd.Flags().BoolP("yes", "y", false, "Analyze the top results without asking")
	cmd.Flags().Int("top", 5, "How many top results --yes selects")
	cmd.Flags().StringP("goal", "g", "", "What you want to achieve with the content")
	cmd.Flags().StringP("templates", "t", "", "Comma-separated analyses to run (see 'ytscout templates')")
	cmd.Flags().String("strategy", "", "Enrichment strategy: transcript or model (default from config)")
	cmd.Flags().StringP("output", "o", "", "Write the markdown report to a file")
	cmd.Flags().String("html", "", "Write an HTML report to a file")
	cmd.Flags().String("docx", "", "Write a Word report to a file")
	cmd.Flags().String("csv", "", "Write all discovered candidates as CSV")
	cmd.Flags().Bool("copy", false, "Copy the markdown report to the clipboard")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if err := internal.ValidateOpenAIRequirements(cmd, config); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}

	app := internal.NewApp(config, internal.WithLogger(slog.Default()))
	defer app.Close()

	if err := internal.HandlePromptFlag(cmd, app); err != nil {
		return err
	}

	req := internal.AnalyzeRequest{
		DiscoverRequest: internal.DiscoverRequest{Keywords: args},
	}
	internal.ApplyDiscoveryFlags(cmd, &req.DiscoverRequest)
	req.Strategy, _ = cmd.Flags().GetString("strategy")
	req.Goal, _ = cmd.Flags().GetString("goal")
	templates, _ := cmd.Flags().GetString("templates")
	req.Templates = splitFlagList(templates)

	selection, _ := cmd.Flags().GetString("select")
	yes, _ := cmd.Flags().GetBool("yes")
	top, _ := cmd.Flags().GetInt("top")
	req.Select = candidateSelector(selection, yes, top)

	sess, report, err := app.Analyze(cmd.Context(), req)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("csv"); path != "" && sess != nil {
		if candidates, ok := sess.Snapshot().Candidates.Value(); ok {
			if err := writeCandidatesFile(path, candidates); err != nil {
				return err
			}
		}
	}

	return writeReport(cmd, report)
}

// candidateSelector decides which discovered videos to analyze: an explicit
// --select wins, then --yes or a non-interactive stdin takes the top results,
// otherwise the user is asked.
func candidateSelector(selection string, yes bool, top int) func([]internal.Candidate) ([]string, error) {
	return func(candidates []internal.Candidate) ([]string, error) {
		if selection != "" {
			return internal.ParseSelection(selection, candidates)
		}
		if yes || !internal.IsInteractive() {
			return internal.TopCandidateIDs(candidates, top), nil
		}

		printMarkdown(internal.CandidatesMarkdown(candidates))
		answer := internal.AskSelection(`Select videos to analyze (e.g. "1,3", "2-4" or "all")`)
		return internal.ParseSelection(answer, candidates)
	}
}

func writeReport(cmd *cobra.Command, report *internal.Report) error {
	md := report.Markdown()

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := os.WriteFile(path, []byte(md), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		printStatus("Report saved to %s\n", path)
	}

	if path, _ := cmd.Flags().GetString("html"); path != "" {
		page, err := report.HTMLPage()
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(page), 0644); err != nil {
			return fmt.Errorf("writing HTML report: %w", err)
		}
		printStatus("HTML report saved to %s\n", path)
	}

	if path, _ := cmd.Flags().GetString("docx"); path != "" {
		if err := report.WriteDOCX(path); err != nil {
			return err
		}
		printStatus("Word report saved to %s\n", path)
	}

	if copyReport, _ := cmd.Flags().GetBool("copy"); copyReport {
		if err := clipboard.WriteAll(md); err != nil {
			return fmt.Errorf("copying report to clipboard: %w", err)
		}
		printStatus("Report copied to clipboard\n")
	}

	printMarkdown(md)
	return nil
}

func writeCandidatesFile(path string, candidates []internal.Candidate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating CSV file: %w", err)
	}
	defer f.Close()
	if err := internal.WriteCandidatesCSV(f, candidates); err != nil {
		return fmt.Errorf("writing CSV: %w", err)
	}
	printStatus("Candidates saved to %s\n", path)
	return nil
}

// printMarkdown renders markdown on a terminal and prints it raw otherwise
func printMarkdown(md string) {
	if !internal.IsTerminal() {
		fmt.Print(md)
		return
	}
	rendered, err := internal.RenderMarkdown(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(rendered)
}

func printStatus(format string, args ...any) {
	if !config.Quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func splitFlagList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	addAnalyzeFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
