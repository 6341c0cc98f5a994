package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

// transcriptCmd represents the transcript command
var transcriptCmd = &cobra.Command{
	Use:   "transcript [YouTube URL or ID]",
	Short: "Get the captions of a YouTube video",
	Example: `  # Print captions
  ytscout transcript "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  ytscout transcript tAP1eZYEuKA

  # Prefer English captions and save to a file
  ytscout transcript tAP1eZYEuKA --lang en -o transcript.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := internal.NewApp(config, internal.WithLogger(slog.Default()))
		defer app.Close()

		transcript, err := fetchTranscript(cmd, app, args[0])
		if err != nil {
			return err
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			return os.WriteFile(outputFile, []byte(transcript), 0644)
		}

		if save, _ := cmd.Flags().GetBool("save"); save {
			_, videoID := internal.ParseArg(args[0])
			path, err := internal.SaveTranscript(videoID, transcript, config.DataDir)
			if err != nil {
				return err
			}
			printStatus("Transcript saved to %s\n", path)
		}

		fmt.Println(transcript)
		return nil
	},
}

func init() {
	addTranscriptFlags(transcriptCmd)
	transcriptCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	transcriptCmd.Flags().Bool("save", false, "Also keep a copy in the data directory")
	rootCmd.AddCommand(transcriptCmd)
}
