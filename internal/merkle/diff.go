// Package merkle (diff.go) provides the simple whole-root comparison
// used by the diff command: two paths are hashed independently and
// their root digests compared, with no attempt to localize where a
// difference lies. For a structural breakdown of what matched and
// what didn't, see compare.go's CompareTrees.
package merkle

import (
	"fmt"
	"time"

	"github.com/krishraghuram/dmerk/internal/logger"
)

// noDifferencesMsg is the message returned when two paths have identical digests
const noDifferencesMsg = "No differences detected"

// Compare computes the Merkle root digests of two paths and returns a list of differences.
// If the digests are identical, it returns a message indicating no differences.
// Otherwise, it returns a message showing the digest mismatch.
// It automatically loads .dmerkignore and .gitignore files from the working directory.
//
// This is a convenience function that uses default exclusion settings.
// For more control, use CompareWithExclusions.
//
// Parameters:
//   - a: The first path to compare (directory)
//   - b: The second path to compare (directory)
//
// Returns a slice of difference messages and any error encountered.
func Compare(a, b string) ([]string, error) {
	return CompareWithExclusions(a, b, nil, true, "")
}

// CompareWithExclusions computes the Merkle root digests of two paths with exclusion patterns.
// It applies the same exclusion patterns to both paths to ensure fair comparison.
//
// Parameters:
//   - a: The first path to compare (directory)
//   - b: The second path to compare (directory)
//   - patterns: Exclusion patterns to apply to both paths (e.g., "node_modules", ".git")
//   - loadIgnoreFile: If true, loads .dmerkignore and .gitignore files from the working directory
//   - customIgnoreFile: Optional path to a custom ignore file (takes highest priority if provided)
//
// Returns a slice of difference messages. If paths are identical, returns a single
// "No differences detected" message. Otherwise, returns digest mismatch information.
func CompareWithExclusions(a, b string, patterns []string, loadIgnoreFile bool, customIgnoreFile string) ([]string, error) {
	log := logger.With("pathA", a, "pathB", b, "operation", "compare")

	nodeA, durationA, err := timedGenerate(a, patterns, loadIgnoreFile, customIgnoreFile)
	if err != nil {
		log.Error("Failed to hash path A", "error", err)
		return nil, fmt.Errorf("failed to hash path %q: %w", a, err)
	}
	log.Info("Hash computation for path A completed", "duration", durationA, "digest", nodeA.Digest, "size", nodeA.Size)

	nodeB, durationB, err := timedGenerate(b, patterns, loadIgnoreFile, customIgnoreFile)
	if err != nil {
		log.Error("Failed to hash path B", "error", err)
		return nil, fmt.Errorf("failed to hash path %q: %w", b, err)
	}
	log.Info("Hash computation for path B completed", "duration", durationB, "digest", nodeB.Digest, "size", nodeB.Size)

	if nodeA.Digest == nodeB.Digest {
		log.Info("Paths are identical", "total_duration", durationA+durationB)
		return []string{noDifferencesMsg}, nil
	}

	log.Warn("Paths differ", "digestA", nodeA.Digest, "digestB", nodeB.Digest, "sizeA", nodeA.Size, "sizeB", nodeB.Size)
	return []string{
		fmt.Sprintf("Root mismatch:\nA: %s (size: %d)\nB: %s (size: %d)",
			nodeA.Digest, nodeA.Size, nodeB.Digest, nodeB.Size),
	}, nil
}

func timedGenerate(path string, patterns []string, loadIgnoreFile bool, customIgnoreFile string) (*Node, time.Duration, error) {
	gen, err := NewGeneratorWithOptions(DefaultMaxWorkers, false, patterns, path, loadIgnoreFile, customIgnoreFile)
	if err != nil {
		return nil, 0, err
	}
	start := time.Now()
	node, err := gen.Generate(path)
	return node, time.Since(start), err
}
