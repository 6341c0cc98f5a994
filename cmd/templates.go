package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// templatesCmd lists the analyses that can be passed to --templates
var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the available analyses",
	Example: `  # Show analysis keys and where the template file lives
  ytscout templates`,
	RunE: func(cmd *cobra.Command, args []string) error {
		pm := internal.NewPromptManager(config.ConfigDir, config.TemplatesFile)
		templates, err := pm.Templates()
		if err != nil {
			return err
		}

		var b strings.Builder
		b.WriteString("| Key | Title | Description |\n|---|---|---|\n")
		for _, t := range templates {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", t.Key, t.Title, t.Description)
		}
		printMarkdown(b.String())

		path := config.TemplatesFile
		if path == "" {
			path = filepath.Join(config.ConfigDir, "templates.yaml")
		}
		printStatus("\nEdit %s to change the prompts.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}
