package document

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/krishraghuram/dmerk/internal/merkle"
)

const formatMsgpack = "dmerk/1"
const extMsgpack = ".dmerk.msgpack"

// msgpackWireNode mirrors jsonWireNode for the binary encoding.
// Children stays an undecoded msgpack.RawMessage so LoadMsgpack gets
// the same lazy-materialization contract as the JSON format.
type msgpackWireNode struct {
	Node     string             `msgpack:"__node__"`
	Kind     string             `msgpack:"kind"`
	Path     string             `msgpack:"path"`
	Size     uint64             `msgpack:"size"`
	Digest   string             `msgpack:"digest"`
	Children msgpack.RawMessage `msgpack:"children,omitempty"`
}

type msgpackDocument struct {
	Format     string          `msgpack:"format"`
	PathFlavor string          `msgpack:"path_flavor"`
	Root       msgpackWireNode `msgpack:"root"`
}

// SaveMsgpack encodes node as the compact binary alternate document
// and writes it under dir, synthesizing <root_name>.dmerk.msgpack if
// filename is empty.
func SaveMsgpack(node *merkle.Node, dir string, filename string) (string, error) {
	if filename == "" {
		var err error
		filename, err = synthesizeFilename(dir, filepath.Base(node.Path), extMsgpack)
		if err != nil {
			return "", err
		}
	}

	root, err := toMsgpackWire(node)
	if err != nil {
		return "", errors.Wrap(err, "document: encode (msgpack)")
	}
	doc := msgpackDocument{Format: formatMsgpack, PathFlavor: pathFlavor(), Root: root}

	data, err := msgpack.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "document: marshal (msgpack)")
	}

	fullPath := filepath.Join(dir, filename)
	if err := os.WriteFile(fullPath, data, 0o644); err != nil { //nolint:gosec // document is meant to be world-readable
		return "", errors.Wrap(err, "document: write (msgpack)")
	}
	return filename, nil
}

// LoadMsgpack reads and decodes a .dmerk.msgpack document.
func LoadMsgpack(path string) (*merkle.Node, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied, same trust level as the CLI's other path args
	if err != nil {
		return nil, errors.Wrap(err, "document: read (msgpack)")
	}

	var doc msgpackDocument
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrMalformedDocument, err)
	}
	if doc.Format != formatMsgpack {
		return nil, fmt.Errorf("%w: unrecognized format %q", merkle.ErrMalformedDocument, doc.Format)
	}
	if doc.PathFlavor != "posix" && doc.PathFlavor != "windows" {
		return nil, fmt.Errorf("%w: unrecognized path flavor %q", merkle.ErrMalformedDocument, doc.PathFlavor)
	}
	if doc.Root.Node != sentinelMarker {
		return nil, fmt.Errorf("%w: missing node marker", merkle.ErrMalformedDocument)
	}

	return fromMsgpackWire(doc.Root)
}

func toMsgpackWire(n *merkle.Node) (msgpackWireNode, error) {
	w := msgpackWireNode{Node: sentinelMarker, Kind: n.Kind.String(), Path: n.Path, Size: n.Size, Digest: n.Digest}
	if n.Kind != merkle.KindDirectory {
		return w, nil
	}

	children, err := n.Children()
	if err != nil {
		return w, err
	}
	encoded := make(map[string]msgpackWireNode, len(children))
	for key, child := range children {
		cw, err := toMsgpackWire(child)
		if err != nil {
			return w, err
		}
		encoded[key] = cw
	}
	raw, err := msgpack.Marshal(encoded)
	if err != nil {
		return w, err
	}
	w.Children = raw
	return w, nil
}

func fromMsgpackWire(w msgpackWireNode) (*merkle.Node, error) {
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
		return merkle.NewLazyDirectory(w.Path, w.Size, w.Digest, w.Children, decodeMsgpackChildren), nil
	}
}

func decodeMsgpackChildren(raw []byte) (map[string]*merkle.Node, error) {
	var encoded map[string]msgpackWireNode
	if err := msgpack.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: %v", merkle.ErrMalformedDocument, err)
	}
	out := make(map[string]*merkle.Node, len(encoded))
	for key, cw := range encoded {
		if cw.Node != sentinelMarker {
			return nil, fmt.Errorf("%w: missing node marker at %q", merkle.ErrMalformedDocument, key)
		}
		child, err := fromMsgpackWire(cw)
		if err != nil {
			return nil, err
		}
		out[key] = child
	}
	return out, nil
}
