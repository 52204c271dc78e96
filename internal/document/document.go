// Package document implements the on-disk .dmerk file: a self-describing
// serialization of a merkle.Node tree. The primary format is JSON, with
// a node-marker sentinel and an explicit kind tag on every node so a
// reader never has to guess the shape of the data. Children are kept
// as a raw, undecoded blob until merkle.Node.Children is first called,
// giving loaded documents the same lazy-materialization behavior as a
// freshly generated tree.
//
// Two alternate encodings are also provided: SaveMsgpack/LoadMsgpack
// for a compact binary interop format, and SaveYAML/LoadYAML for a
// simpler, fully-eager human-readable format.
package document

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/krishraghuram/dmerk/internal/merkle"
)

// sentinelMarker is stamped on every node so that a malformed or
// truncated document is rejected immediately rather than silently
// decoded as zero-valued fields.
const sentinelMarker = "dmerk-node"

// formatJSON identifies the primary text document format. It is
// checked on load; documents from a future, incompatible format
// version are refused rather than partially decoded.
const formatJSON = "dmerk/1"

const extJSON = ".dmerk"

// jsonWireNode is the JSON wire representation of a single merkle.Node.
// Children is left undecoded (json.RawMessage) so a loaded directory
// node can defer materializing its descendants until they are asked
// for.
type jsonWireNode struct {
	Node     string          `json:"__node__"`
	Kind     string          `json:"kind"`
	Path     string          `json:"path"`
	Size     uint64          `json:"size"`
	Digest   string          `json:"digest"`
	Children json.RawMessage `json:"children,omitempty"`
}

type jsonDocument struct {
	Format     string       `json:"format"`
	PathFlavor string       `json:"path_flavor"`
	Root       jsonWireNode `json:"root"`
}

// pathFlavor reports which path convention (posix or windows)
// produced this document, so a document generated on one platform is
// never silently misinterpreted as having been generated on the
// other.
func pathFlavor() string {
	if runtime.GOOS == "windows" {
		return "windows"
	}
	return "posix"
}

// Save encodes node as the primary JSON document and writes it under
// dir. If filename is empty, a name is synthesized from the node's
// own base name (<root_name>.dmerk), retrying with a random suffix on
// collision. Save returns the filename actually used.
func Save(node *merkle.Node, dir string, filename string) (string, error) {
	if filename == "" {
		var err error
		filename, err = synthesizeFilename(dir, filepath.Base(node.Path), extJSON)
		if err != nil {
			return "", err
		}
	}

	root, err := toJSONWire(node)
	if err != nil {
		return "", errors.Wrap(err, "document: encode")
	}
	doc := jsonDocument{Format: formatJSON, PathFlavor: pathFlavor(), Root: root}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "document: marshal")
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil { //nolint:gosec // document is meant to be world-readable
		return "", errors.Wrap(err, "document: write")
	}
	return filename, nil
}

// Load reads and decodes a .dmerk JSON document. The returned node's
// directory descendants are lazily materialized on first Children
// call.
func Load(path string) (*merkle.Node, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as the CLI's other path args
	if err != nil {
		return nil, errors.Wrap(err, "document: read")
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrMalformedDocument, err)
	}
	if doc.Format != formatJSON {
		return nil, fmt.Errorf("%w: unrecognized format %q", merkle.ErrMalformedDocument, doc.Format)
	}
	if doc.PathFlavor != "posix" && doc.PathFlavor != "windows" {
		return nil, fmt.Errorf("%w: unrecognized path flavor %q", merkle.ErrMalformedDocument, doc.PathFlavor)
	}
	if doc.Root.Node != sentinelMarker {
		return nil, fmt.Errorf("%w: missing node marker", merkle.ErrMalformedDocument)
	}

	return fromJSONWire(doc.Root)
}

func toJSONWire(n *merkle.Node) (jsonWireNode, error) {
	w := jsonWireNode{Node: sentinelMarker, Kind: n.Kind.String(), Path: n.Path, Size: n.Size, Digest: n.Digest}
	if n.Kind != merkle.KindDirectory {
		return w, nil
	}

	children, err := n.Children()
	if err != nil {
		return w, err
	}
	encoded := make(map[string]jsonWireNode, len(children))
	for key, child := range children {
		cw, err := toJSONWire(child)
		if err != nil {
			return w, err
		}
		encoded[key] = cw
	}
	raw, err := json.Marshal(encoded)
	if err != nil {
		return w, err
	}
	w.Children = raw
	return w, nil
}

func fromJSONWire(w jsonWireNode) (*merkle.Node, error) {
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
		return merkle.NewLazyDirectory(w.Path, w.Size, w.Digest, w.Children, decodeJSONChildren), nil
	}
}

func decodeJSONChildren(raw []byte) (map[string]*merkle.Node, error) {
	var encoded map[string]jsonWireNode
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrMalformedDocument, err)
	}
	out := make(map[string]*merkle.Node, len(encoded))
	for key, cw := range encoded {
		if cw.Node != sentinelMarker {
			return nil, fmt.Errorf("%w: missing node marker at %q", merkle.ErrMalformedDocument, key)
		}
		child, err := fromJSONWire(cw)
		if err != nil {
			return nil, err
		}
		out[key] = child
	}
	return out, nil
}

func parseKind(tag string) (merkle.Kind, error) {
	switch tag {
	case "file":
		return merkle.KindFile, nil
	case "directory":
		return merkle.KindDirectory, nil
	case "symlink":
		return merkle.KindSymlink, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind tag %q", merkle.ErrMalformedDocument, tag)
	}
}

// synthesizeFilename picks <rootName><ext> under dir, or, if that
// already exists, <rootName>-<8 hex chars><ext>, retrying a handful of
// times before giving up.
func synthesizeFilename(dir, rootName, ext string) (string, error) {
	candidate := rootName + ext
	if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
		return candidate, nil
	}

	for attempt := 0; attempt < 10; attempt++ {
		suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		candidate = fmt.Sprintf("%s-%s%s", rootName, suffix, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("document: could not find an unused filename for %q after 10 attempts", rootName)
}
