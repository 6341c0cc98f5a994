package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// suggestCmd represents the suggest command
var suggestCmd = &cobra.Command{
	Use:   "suggest [keyword]",
	Short: "Show YouTube autocomplete suggestions for a keyword",
	Example: `  # Related searches for a keyword
  ytscout suggest "productivity"

  # Suggestions in another locale, as JSON
  ytscout suggest "coffee" --locale en --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if locale, _ := cmd.Flags().GetString("locale"); locale != "" {
			config.SuggestLocale = locale
		}
		app := internal.NewApp(config, internal.WithLogger(slog.Default()))
		defer app.Close()

		keyword := strings.Join(args, " ")
		suggestions := app.Suggest(cmd.Context(), keyword)

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			if suggestions == nil {
				suggestions = []string{}
			}
			data, err := json.MarshalIndent(suggestions, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding suggestions: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(suggestions) == 0 {
			printStatus("No suggestions for %q\n", keyword)
			return nil
		}
		for _, s := range suggestions {
			fmt.Println(s)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().String("locale", "", "Suggestion locale (hl), default from config")
	suggestCmd.Flags().Bool("json", false, "Print suggestions as a JSON array")
	rootCmd.AddCommand(suggestCmd)
}
