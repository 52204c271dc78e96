// Package hash provides the "hash" command for computing the Merkle
// digest of a directory. This is the simplest way to get a single
// digest out of dmerk without saving a document to disk.
package hash

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/krishraghuram/dmerk/internal/logger"
	"github.com/krishraghuram/dmerk/internal/merkle"

	"github.com/krishraghuram/dmerk/cmd"
	"github.com/spf13/cobra"
)

// hashCmd represents the hash command for computing Merkle digests.
var hashCmd = &cobra.Command{
	Use:   "hash [path]",
	Short: "Compute the Merkle digest of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		log := logger.With("path", path, "command", "hash")

		// Read flags directly from command to ensure they're parsed correctly
		excludePatterns, err := cmd.Flags().GetStringArray("exclude")
		if err != nil {
			log.Warn("Failed to read exclude patterns", "error", err)
			excludePatterns = []string{}
		}
		customIgnoreFile, err := cmd.Flags().GetString("ignore-file")
		if err != nil {
			log.Warn("Failed to read ignore-file flag", "error", err)
			customIgnoreFile = ""
		}
		continueOnError, err := cmd.Flags().GetBool("continue-on-error")
		if err != nil {
			log.Warn("Failed to read continue-on-error flag", "error", err)
			continueOnError = false
		}

		log.Info("Starting hash computation")
		start := time.Now()

		pathInfo, err := os.Stat(path)
		if err != nil || !pathInfo.IsDir() {
			log.Error("Path is not a directory", "error", err)
			return fmt.Errorf("%w: %q", merkle.ErrNotADirectory, path)
		}

		// Always create a generator with exclusions (automatically loads .dmerkignore and .gitignore)
		// Custom ignore file and exclude patterns are optional additions
		gen, err := merkle.NewGeneratorWithOptions(merkle.DefaultMaxWorkers, continueOnError, excludePatterns, path, true, customIgnoreFile)
		if err != nil {
			log.Error("Failed to create generator", "error", err)
			return fmt.Errorf("failed to create generator: %w", err)
		}
		node, err := gen.Generate(path)
		if err != nil {
			log.Error("Hash computation failed", "error", err, "duration", time.Since(start))
			return err
		}

		duration := time.Since(start)
		log.Info("Hash computation completed",
			"duration", duration,
			"digest", node.Digest,
			"size", humanize.IBytes(node.Size),
		)

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s (d): %s (size: %s)\n",
			path, node.Digest, humanize.IBytes(node.Size)); err != nil {
			log.Error("Failed to write output to stdout", "error", err)
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	},
}

func init() {
	hashCmd.Flags().StringArrayP("exclude", "e", []string{}, "Exclude patterns (e.g., 'node_modules', '.git'). Can be specified multiple times.")
	hashCmd.Flags().StringP("ignore-file", "i", "", "Path to a custom ignore file (takes highest priority). .dmerkignore and .gitignore are always loaded automatically from the working directory.")
	hashCmd.Flags().Bool("continue-on-error", false, "Skip entries that fail to hash instead of aborting the whole computation.")

	cmd.Register(hashCmd)
}
