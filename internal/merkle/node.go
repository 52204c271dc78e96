// Package merkle implements dmerk's content-addressed directory Merkle
// tree: the node data model, the digest primitive, the filesystem
// generator, and the structural comparator. It is the load-bearing
// package of the repository; every other package consumes its types.
package merkle

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Kind tags the three filesystem entry variants a Node can represent.
// A symlink must always be classified before Directory or File, since
// a symlink can resolve as either.
type Kind int

const (
	KindFile Kind = iota
	KindDirectory
	KindSymlink
)

// String returns the lowercase tag used both in log output and in the
// on-disk document's kind sentinel.
func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// materializer decodes a directory node's raw, not-yet-parsed children
// blob into a concrete children map. It is supplied by whichever
// encoding produced the lazy node (see internal/document) so that this
// package never needs to know about any particular wire format.
type materializer func(raw []byte) (map[string]*Node, error)

// Node is the Merkle node: the only persistent entity in the data
// model. A Node is immutable after construction, with the single
// exception of the one-shot lazy-children materialization transition
// performed by Children.
type Node struct {
	Path   string
	Kind   Kind
	Size   uint64
	Digest string

	mu       sync.Mutex
	children map[string]*Node
	pending  []byte
	decode   materializer
	decodeErr error
}

// NewFile constructs a leaf File node. Size is the on-disk size of the
// file (not following symlinks); digest is the output of HashBytes
// over the file's contents.
func NewFile(path string, size uint64, digest string) *Node {
	return &Node{Path: path, Kind: KindFile, Size: size, Digest: digest}
}

// NewSymlink constructs a leaf Symlink node. Size is the size of the
// link itself; digest is HashString of the link target.
func NewSymlink(path string, size uint64, digest string) *Node {
	return &Node{Path: path, Kind: KindSymlink, Size: size, Digest: digest}
}

// NewDirectory constructs an eagerly materialized Directory node. The
// children map's keys must be each child's absolute path.
func NewDirectory(path string, size uint64, digest string, children map[string]*Node) *Node {
	return &Node{Path: path, Kind: KindDirectory, Size: size, Digest: digest, children: children}
}

// NewLazyDirectory constructs a Directory node whose children have not
// yet been decoded. The first call to Children atomically decodes raw
// via decode, replacing it with a concrete map; subsequent calls reuse
// the materialized result. decode is never invoked if Children is
// never called, bounding load cost to this node's own scalar fields.
func NewLazyDirectory(path string, size uint64, digest string, raw []byte, decode materializer) *Node {
	return &Node{Path: path, Kind: KindDirectory, Size: size, Digest: digest, pending: raw, decode: decode}
}

// Children returns this directory's child map, materializing it from
// its pending raw blob on first access if the node came from a lazy
// load. It fails if called on a non-Directory node.
func (n *Node) Children() (map[string]*Node, error) {
	if n.Kind != KindDirectory {
		return nil, fmt.Errorf("merkle: %s is not a directory", n.Path)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending != nil {
		n.children, n.decodeErr = n.decode(n.pending)
		n.pending = nil
		n.decode = nil
	}
	return n.children, n.decodeErr
}

// Traverse resolves the descendant of the receiver whose Path equals
// the given sub-path. A relative sub-path is first joined to the
// receiver's own Path. Descent is purely lexical: at each directory it
// picks the child whose Path equals or is a lexical prefix of the
// target and recurses into it. It fails with ErrNotFound if no
// matching child exists at some level.
func (n *Node) Traverse(subPath string) (*Node, error) {
	target := subPath
	if !filepath.IsAbs(target) {
		target = filepath.Join(n.Path, target)
	}
	target = filepath.Clean(target)

	if filepath.Clean(n.Path) == target {
		return n, nil
	}

	cur := n
	for {
		if cur.Kind != KindDirectory {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, subPath)
		}
		children, err := cur.Children()
		if err != nil {
			return nil, err
		}
		var next *Node
		for _, child := range children {
			cp := filepath.Clean(child.Path)
			if cp == target || isLexicalPrefix(cp, target) {
				next = child
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, subPath)
		}
		if filepath.Clean(next.Path) == target {
			return next, nil
		}
		cur = next
	}
}

// isLexicalPrefix reports whether candidate is a path-component
// prefix of target (e.g. "/a/b" is a prefix of "/a/b/c" but not of
// "/a/bc").
func isLexicalPrefix(candidate, target string) bool {
	if !strings.HasPrefix(target, candidate) {
		return false
	}
	rest := target[len(candidate):]
	return strings.HasPrefix(rest, string(filepath.Separator))
}

// Equal implements the content-identity relation of Invariant 3: two
// nodes are equal iff their Kind, Size, and Digest match and, for
// directories, their children are equal as a multiset — Path is
// excluded on both the receiver and, recursively, on every
// descendant. This is what lets a rename or move round-trip through
// Equal unchanged.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind || n.Size != other.Size || n.Digest != other.Digest {
		return false
	}
	if n.Kind != KindDirectory {
		return true
	}
	a, err := n.Children()
	if err != nil {
		return false
	}
	b, err := other.Children()
	if err != nil {
		return false
	}
	if len(a) != len(b) {
		return false
	}
	as := sortedByDigest(a)
	bs := sortedByDigest(b)
	for i := range as {
		if !as[i].Equal(bs[i]) {
			return false
		}
	}
	return true
}

// sortedByDigest returns the values of children sorted by digest, used
// to compare two children maps as multisets regardless of key paths
// or enumeration order.
func sortedByDigest(children map[string]*Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out
}
