package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AddDiscoveryFlags adds flags that shape candidate discovery
func AddDiscoveryFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Discovery source: api, scrape or model (default from config)")
	cmd.Flags().IntP("limit", "n", 0, "Maximum results per keyword (default from config)")
	cmd.Flags().String("region", "", "Region code for search results, e.g. TW or US")
	cmd.Flags().String("lang", "", "Search language, e.g. zh-TW or en")
}

// AddOpenAIFlags adds flags related to OpenAI API functionality
func AddOpenAIFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("model", "m", "", "OpenAI model to use")
	cmd.Flags().StringP("prompt", "p", "", "Extra analysis prompt (string or file path)")
}

// ApplyDiscoveryFlags copies discovery flags onto a request
func ApplyDiscoveryFlags(cmd *cobra.Command, req *DiscoverRequest) {
	req.Source, _ = cmd.Flags().GetString("source")
	req.Limit, _ = cmd.Flags().GetInt("limit")
	req.Region, _ = cmd.Flags().GetString("region")
	req.Language, _ = cmd.Flags().GetString("lang")
	req.Source = strings.ToLower(req.Source)
}

// HandlePromptFlag registers the --prompt value as the custom template
func HandlePromptFlag(cmd *cobra.Command, app *App) error {
	prompt := app.config.Prompt
	if f := cmd.Flags().Lookup("prompt"); f != nil && f.Changed {
		prompt, _ = cmd.Flags().GetString("prompt")
	}
	if prompt == "" {
		return nil
	}

	if err := app.Prompts().SetCustomPrompt(prompt); err != nil {
		return err
	}

	if IsLikelyFilePath(prompt) && FileExists(prompt) {
		app.ui.Verbose("Using custom prompt file: %s\n", prompt)
	} else {
		app.ui.Verbose("Using custom prompt string\n")
	}

	return nil
}

// HandleVerboseFlag processes the --verbose and --quiet flags to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if verbose {
		config.Verbose = true
	}
	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	config.Quiet = quiet
	return nil
}

// ValidateOpenAIRequirements validates OpenAI API key and model from command flags and config
func ValidateOpenAIRequirements(cmd *cobra.Command, config *Config) error {
	if err := ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
		return err
	}

	// compatible servers host models outside the known list
	customEndpoint := config.OpenAIBaseURL != "" && config.OpenAIBaseURL != defaultOpenAIBaseURL

	modelFlag, _ := cmd.Flags().GetString("model")
	if modelFlag != "" {
		if !customEndpoint {
			if err := ValidateModel(modelFlag); err != nil {
				return err
			}
		}
		config.Model = modelFlag
	} else if !customEndpoint {
		if err := ValidateModel(config.Model); err != nil {
			return fmt.Errorf("invalid model in config: %w", err)
		}
	}

	return nil
}
