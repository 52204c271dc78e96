package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/krishraghuram/dmerk/internal/merkle"
)

const formatYAML = "dmerk/1"
const extYAML = ".dmerk.yaml"

// yamlNode is the human-readable alternate encoding. Unlike the JSON
// and msgpack documents, it decodes eagerly: a .dmerk.yaml file is
// meant to be read and edited by a person, not streamed lazily.
type yamlNode struct {
	Kind     string              `yaml:"kind"`
	Path     string              `yaml:"path"`
	Size     uint64              `yaml:"size"`
	Digest   string              `yaml:"digest"`
	Children map[string]yamlNode `yaml:"children,omitempty"`
}

type yamlDocument struct {
	Format     string   `yaml:"format"`
	PathFlavor string   `yaml:"path_flavor"`
	Root       yamlNode `yaml:"root"`
}

// SaveYAML encodes node as the human-readable alternate document and
// writes it under dir, synthesizing <root_name>.dmerk.yaml if
// filename is empty.
func SaveYAML(node *merkle.Node, dir string, filename string) (string, error) {
	if filename == "" {
		var err error
		filename, err = synthesizeFilename(dir, filepath.Base(node.Path), extYAML)
		if err != nil {
			return "", err
		}
	}

	root, err := toYAMLNode(node)
	if err != nil {
		return "", errors.Wrap(err, "document: encode (yaml)")
	}
	doc := yamlDocument{Format: formatYAML, PathFlavor: pathFlavor(), Root: root}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "document: marshal (yaml)")
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil { //nolint:gosec // document is meant to be world-readable
		return "", errors.Wrap(err, "document: write (yaml)")
	}
	return filename, nil
}

// LoadYAML reads and decodes a .dmerk.yaml document into a fully
// materialized tree.
func LoadYAML(path string) (*merkle.Node, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as the CLI's other path args
	if err != nil {
		return nil, errors.Wrap(err, "document: read (yaml)")
	}

	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrMalformedDocument, err)
	}
	if doc.Format != formatYAML {
		return nil, fmt.Errorf("%w: unrecognized format %q", merkle.ErrMalformedDocument, doc.Format)
	}
	if doc.PathFlavor != "posix" && doc.PathFlavor != "windows" {
		return nil, fmt.Errorf("%w: unrecognized path flavor %q", merkle.ErrMalformedDocument, doc.PathFlavor)
	}

	return fromYAMLNode(doc.Root)
}

func toYAMLNode(n *merkle.Node) (yamlNode, error) {
	w := yamlNode{Kind: n.Kind.String(), Path: n.Path, Size: n.Size, Digest: n.Digest}
	if n.Kind != merkle.KindDirectory {
		return w, nil
	}

	children, err := n.Children()
	if err != nil {
		return w, err
	}
	w.Children = make(map[string]yamlNode, len(children))
	for key, child := range children {
		cw, err := toYAMLNode(child)
		if err != nil {
			return w, err
		}
		w.Children[key] = cw
	}
	return w, nil
}

func fromYAMLNode(w yamlNode) (*merkle.Node, error) {
	kind, err := parseKind(w.Kind)
	if err != nil {
		return nil, err
	}
	switch kind {
	case merkle.KindFile:
		return merkle.NewFile(w.Path, w.Size, w.Digest), nil
	case merkle.KindSymlink:
		return merkle.NewSymlink(w.Path, w.Size, w.Digest), nil
	default:
		children := make(map[string]*merkle.Node, len(w.Children))
		for key, cw := range w.Children {
			child, err := fromYAMLNode(cw)
			if err != nil {
				return nil, err
			}
			children[key] = child
		}
		return merkle.NewDirectory(w.Path, w.Size, w.Digest, children), nil
	}
}
