package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// fetchTranscript retrieves the caption text for a video URL or id, honouring --lang
func fetchTranscript(cmd *cobra.Command, app *internal.App, arg string) (string, error) {
	_, videoID := internal.ParseArg(arg)
	if !internal.IsValidYouTubeID(videoID) {
		return "", fmt.Errorf("not a YouTube video URL or id: %s", arg)
	}
	langs, _ := cmd.Flags().GetString("lang")
	return app.Transcript(cmd.Context(), videoID, splitFlagList(langs))
}

func addTranscriptFlags(cmd *cobra.Command) {
	cmd.Flags().String("lang", "", "Comma-separated caption languages in order of preference (default from config)")
}
