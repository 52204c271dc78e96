// Package calc provides the "calc" command for verifying that a
// directory matches a given Merkle digest. This is useful for
// integrity verification against a previously recorded digest.
package calc

import (
	"fmt"
	"strings"
	"time"

	"github.com/krishraghuram/dmerk/internal/logger"
	"github.com/krishraghuram/dmerk/internal/merkle"

	"github.com/krishraghuram/dmerk/cmd"
	"github.com/spf13/cobra"
)

// calcCmd represents the calc command for digest verification.
var calcCmd = &cobra.Command{
	Use:   "calc [path] [digest]",
	Short: "Verify that a directory matches the given digest",
	Long: `Verify that a directory matches the given digest.
Computes the Merkle digest of the specified path and compares it with the provided digest.
Exits with code 0 if the digests match, non-zero otherwise.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		expectedDigest := strings.ToLower(args[1])
		log := logger.With("path", path, "command", "calc", "expected_digest", expectedDigest)

		if len(expectedDigest) != merkle.DigestHexSize {
			err := fmt.Errorf("invalid digest format: %q (expected a %d-character hexadecimal string)", args[1], merkle.DigestHexSize)
			log.Error("Failed to parse expected digest", "error", err)
			if _, writeErr := fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err); writeErr != nil {
				log.Error("Failed to write error to stderr", "error", writeErr)
			}
			return err
		}

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

		log.Info("Starting digest computation for verification")
		start := time.Now()

		gen, err := merkle.NewGeneratorWithOptions(merkle.DefaultMaxWorkers, false, excludePatterns, path, true, customIgnoreFile)
		if err != nil {
			log.Error("Failed to create generator", "error", err)
			return fmt.Errorf("failed to create generator: %w", err)
		}
		node, err := gen.Generate(path)
		if err != nil {
			log.Error("Digest computation failed", "error", err, "duration", time.Since(start))
			return err
		}

		duration := time.Since(start)
		computedDigest := strings.ToLower(node.Digest)
		log.Info("Digest computation completed",
			"duration", duration,
			"computed_digest", computedDigest,
			"size", node.Size,
		)

		if computedDigest == expectedDigest {
			log.Info("Digest verification successful", "digest", computedDigest)
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Digest matches: %s\n", computedDigest); err != nil {
				log.Error("Failed to write output to stdout", "error", err)
				return fmt.Errorf("failed to write output: %w", err)
			}
			return nil
		}

		log.Error("Digest verification failed", "computed_digest", computedDigest, "expected_digest", expectedDigest)
		if _, err := fmt.Fprintf(cmd.OutOrStderr(), "Digest mismatch!\nComputed: %s\nExpected: %s\n", computedDigest, expectedDigest); err != nil {
			log.Error("Failed to write output to stderr", "error", err)
			return fmt.Errorf("failed to write output: %w", err)
		}
		return fmt.Errorf("digest mismatch")
	},
}

func init() {
	calcCmd.Flags().StringArrayP("exclude", "e", []string{}, "Exclude patterns (e.g., 'node_modules', '.git'). Can be specified multiple times.")
	calcCmd.Flags().StringP("ignore-file", "i", "", "Path to a custom ignore file (takes highest priority). .dmerkignore and .gitignore are always loaded automatically from the working directory.")

	cmd.Register(calcCmd)
}
