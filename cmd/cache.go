package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rtzll/ytscout/internal"
)

func transcriptCachePath() string {
	return filepath.Join(config.CacheDir, "transcripts.db")
}

// cacheCmd groups transcript cache maintenance
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local transcript cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove expired transcripts from the local cache",
	Example: `  # Drop entries older than cache_ttl
  ytscout cache prune`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := internal.NewBoltCache(transcriptCachePath(), config.CacheTTL)
		if err != nil {
			return err
		}
		defer cache.Close()

		removed, err := cache.Prune()
		if err != nil {
			return fmt.Errorf("pruning cache: %w", err)
		}
		fmt.Printf("Removed %d expired transcripts\n", removed)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the local transcript cache",
	Example: `  # Delete every cached transcript
  ytscout cache clear --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := transcriptCachePath()
		if !internal.FileExists(path) {
			fmt.Println("Cache is already empty")
			return nil
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force && !internal.AskUser(fmt.Sprintf("Delete %s?", path)) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("removing cache: %w", err)
		}
		fmt.Println("Cache cleared")
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")
	cacheCmd.AddCommand(cachePruneCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
