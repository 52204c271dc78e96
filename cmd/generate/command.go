// Package generate provides the "generate" command: it builds a
// Merkle tree for a directory and, unless --no-save is given, writes
// it to a .dmerk document in the current working directory.
package generate

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/krishraghuram/dmerk/internal/document"
	"github.com/krishraghuram/dmerk/internal/logger"
	"github.com/krishraghuram/dmerk/internal/merkle"

	"github.com/krishraghuram/dmerk/cmd"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [path]",
	Short: "Generate the Merkle tree for a directory and save it as a .dmerk document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		log := logger.With("path", path, "command", "generate")

		excludePatterns, _ := cmd.Flags().GetStringArray("exclude")
		customIgnoreFile, _ := cmd.Flags().GetString("ignore-file")
		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
		noSave, _ := cmd.Flags().GetBool("no-save")
		printTree, _ := cmd.Flags().GetBool("print")
		filename, _ := cmd.Flags().GetString("filename")
		format, _ := cmd.Flags().GetString("format")

		log.Info("Starting tree generation")
		start := time.Now()

		gen, err := merkle.NewGeneratorWithOptions(merkle.DefaultMaxWorkers, continueOnError, excludePatterns, path, true, customIgnoreFile)
		if err != nil {
			log.Error("Failed to create generator", "error", err)
			return fmt.Errorf("failed to create generator: %w", err)
		}
		node, err := gen.Generate(path)
		if err != nil {
			log.Error("Tree generation failed", "error", err, "duration", time.Since(start))
			return err
		}
		log.Info("Tree generation completed", "duration", time.Since(start), "digest", node.Digest, "size", node.Size)

		if printTree {
			if err := printNode(cmd, node); err != nil {
				return err
			}
		}

		if noSave {
			if !printTree {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", path, node.Digest); err != nil {
					return fmt.Errorf("failed to write output: %w", err)
				}
			}
			return nil
		}

		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}

		var saved string
		switch format {
		case "msgpack":
			saved, err = document.SaveMsgpack(node, dir, filename)
		case "yaml":
			saved, err = document.SaveYAML(node, dir, filename)
		case "", "json":
			saved, err = document.Save(node, dir, filename)
		default:
			return fmt.Errorf("unknown document format %q (expected json, msgpack, or yaml)", format)
		}
		if err != nil {
			log.Error("Failed to save document", "error", err)
			return fmt.Errorf("failed to save document: %w", err)
		}

		log.Info("Document saved", "filename", saved)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", saved); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	},
}

func printNode(cmd *cobra.Command, node *merkle.Node) error {
	m, err := toPrintable(node)
	if err != nil {
		return fmt.Errorf("failed to render tree: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %w", err)
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func toPrintable(n *merkle.Node) (map[string]any, error) {
	m := map[string]any{
		"kind":   n.Kind.String(),
		"path":   n.Path,
		"size":   n.Size,
		"digest": n.Digest,
	}
	if n.Kind != merkle.KindDirectory {
		return m, nil
	}

	children, err := n.Children()
	if err != nil {
		return nil, err
	}
	childList := make([]map[string]any, 0, len(children))
	for _, c := range children {
		cm, err := toPrintable(c)
		if err != nil {
			return nil, err
		}
		childList = append(childList, cm)
	}
	m["children"] = childList
	return m, nil
}

func init() {
	generateCmd.Flags().StringArrayP("exclude", "e", []string{}, "Exclude patterns (e.g., 'node_modules', '.git'). Can be specified multiple times.")
	generateCmd.Flags().StringP("ignore-file", "i", "", "Path to a custom ignore file (takes highest priority). .dmerkignore and .gitignore are always loaded automatically from the working directory.")
	generateCmd.Flags().Bool("continue-on-error", false, "Skip entries that fail to hash instead of aborting the whole computation.")
	generateCmd.Flags().Bool("no-save", false, "Compute the tree but don't write a .dmerk document to disk.")
	generateCmd.Flags().Bool("print", false, "Print the generated tree as JSON to stdout.")
	generateCmd.Flags().StringP("filename", "f", "", "Filename to use for the saved document (default: synthesized from the directory name).")
	generateCmd.Flags().String("format", "json", "Document format to save: json, msgpack, or yaml.")

	cmd.Register(generateCmd)
}
