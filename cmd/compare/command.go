// Package compare provides the "compare" command: a structural,
// level-by-level comparison of two Merkle trees. Unlike diff's
// whole-root comparison, compare reports exactly which subtrees
// matched and which parts of each side were left over. Either side
// may be a live directory or a previously saved .dmerk document
// (json, msgpack, or yaml), and a sub-path may be selected within
// either tree before comparing.
package compare

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/krishraghuram/dmerk/internal/document"
	"github.com/krishraghuram/dmerk/internal/logger"
	"github.com/krishraghuram/dmerk/internal/merkle"

	"github.com/krishraghuram/dmerk/cmd"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Structurally compare two Merkle trees (directories or .dmerk documents)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p1, _ := cmd.Flags().GetString("p1")
		p2, _ := cmd.Flags().GetString("p2")
		sp1, _ := cmd.Flags().GetString("sp1")
		sp2, _ := cmd.Flags().GetString("sp2")
		excludePatterns, _ := cmd.Flags().GetStringArray("exclude")
		customIgnoreFile, _ := cmd.Flags().GetString("ignore-file")
		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
		asJSON, _ := cmd.Flags().GetBool("json")

		if p1 == "" || p2 == "" {
			return fmt.Errorf("both --p1 and --p2 are required")
		}

		log := logger.With("p1", p1, "p2", p2, "command", "compare")

		nodeA, err := loadOrGenerate(p1, excludePatterns, customIgnoreFile, continueOnError)
		if err != nil {
			log.Error("Failed to load or generate p1", "error", err)
			return fmt.Errorf("failed to load %q: %w", p1, err)
		}
		nodeB, err := loadOrGenerate(p2, excludePatterns, customIgnoreFile, continueOnError)
		if err != nil {
			log.Error("Failed to load or generate p2", "error", err)
			return fmt.Errorf("failed to load %q: %w", p2, err)
		}

		if sp1 != "" {
			nodeA, err = nodeA.Traverse(sp1)
			if err != nil {
				return fmt.Errorf("failed to resolve sub-path %q in p1: %w", sp1, err)
			}
		}
		if sp2 != "" {
			nodeB, err = nodeB.Traverse(sp2)
			if err != nil {
				return fmt.Errorf("failed to resolve sub-path %q in p2: %w", sp2, err)
			}
		}

		report := merkle.CompareTrees(nodeA, nodeB)
		log.Info("Comparison completed",
			"matches", len(report.Matches),
			"unmatched_1", len(report.Unmatched1),
			"unmatched_2", len(report.Unmatched2),
		)

		if asJSON {
			return printJSON(cmd, report)
		}
		return printHuman(cmd, report)
	},
}

// loadOrGenerate treats path as a live directory to hash if it is a
// directory, and as a saved document to load otherwise.
func loadOrGenerate(path string, patterns []string, customIgnoreFile string, continueOnError bool) (*merkle.Node, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", merkle.ErrNotFound, path)
	}
	if !info.IsDir() {
		return document.LoadAny(path)
	}
	gen, err := merkle.NewGeneratorWithOptions(merkle.DefaultMaxWorkers, continueOnError, patterns, path, true, customIgnoreFile)
	if err != nil {
		return nil, err
	}
	return gen.Generate(path)
}

type reportDoc struct {
	Matches    []matchDoc `json:"matches"`
	Unmatched1 []groupDoc `json:"unmatched_1"`
	Unmatched2 []groupDoc `json:"unmatched_2"`
}

type matchDoc struct {
	Digest string   `json:"digest"`
	Paths1 []string `json:"paths_1"`
	Paths2 []string `json:"paths_2"`
}

type groupDoc struct {
	Digest string   `json:"digest"`
	Paths  []string `json:"paths"`
}

func toReportDoc(r merkle.Report) reportDoc {
	doc := reportDoc{
		Matches:    make([]matchDoc, len(r.Matches)),
		Unmatched1: make([]groupDoc, len(r.Unmatched1)),
		Unmatched2: make([]groupDoc, len(r.Unmatched2)),
	}
	for i, m := range r.Matches {
		doc.Matches[i] = matchDoc{Digest: m.Digest, Paths1: m.PathsA, Paths2: m.PathsB}
	}
	for i, g := range r.Unmatched1 {
		doc.Unmatched1[i] = groupDoc{Digest: g.Digest, Paths: g.Paths}
	}
	for i, g := range r.Unmatched2 {
		doc.Unmatched2[i] = groupDoc{Digest: g.Digest, Paths: g.Paths}
	}
	return doc
}

func printJSON(cmd *cobra.Command, report merkle.Report) error {
	data, err := json.MarshalIndent(toReportDoc(report), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func printHuman(cmd *cobra.Command, report merkle.Report) error {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	for _, m := range report.Matches {
		if _, err := fmt.Fprintf(out, "%s %s\n  1: %v\n  2: %v\n", green("MATCH"), m.Digest, m.PathsA, m.PathsB); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	for _, g := range report.Unmatched1 {
		if _, err := fmt.Fprintf(out, "%s %s %v\n", yellow("UNMATCHED 1"), g.Digest, g.Paths); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	for _, g := range report.Unmatched2 {
		if _, err := fmt.Fprintf(out, "%s %s %v\n", red("UNMATCHED 2"), g.Digest, g.Paths); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if len(report.Unmatched1) == 0 && len(report.Unmatched2) == 0 {
		if _, err := fmt.Fprintln(out, green("Trees are structurally identical")); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func init() {
	compareCmd.Flags().String("p1", "", "First path to compare (directory or .dmerk document)")
	compareCmd.Flags().String("p2", "", "Second path to compare (directory or .dmerk document)")
	compareCmd.Flags().String("sp1", "", "Sub-path within the first tree to compare, instead of its root")
	compareCmd.Flags().String("sp2", "", "Sub-path within the second tree to compare, instead of its root")
	compareCmd.Flags().StringArrayP("exclude", "e", []string{}, "Exclude patterns, applied when a side is a live directory. Can be specified multiple times.")
	compareCmd.Flags().StringP("ignore-file", "i", "", "Path to a custom ignore file, applied when a side is a live directory.")
	compareCmd.Flags().Bool("continue-on-error", false, "Skip entries that fail to hash instead of aborting, when a side is a live directory.")
	compareCmd.Flags().Bool("json", false, "Print the comparison report as JSON instead of a colorized summary.")

	cmd.Register(compareCmd)
}
