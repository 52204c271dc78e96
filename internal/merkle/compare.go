package merkle

import "sort"

// Match records a set of one or more paths on each side that share a
// common digest at some level of the comparison. A Match with
// multiple paths per side reflects duplicate content (distinct
// subtrees that happen to hash identically), not a one-to-one
// correspondence.
type Match struct {
	Digest string
	PathsA []string
	PathsB []string
}

// Group records a digest and every path on one side that carries it,
// used to report the leftover, unmatched portion of each tree.
type Group struct {
	Digest string
	Paths  []string
}

// Report is the result of CompareTrees: everything that matched
// between the two trees, and everything left over on each side once
// matching is exhausted.
type Report struct {
	Matches    []Match
	Unmatched1 []Group
	Unmatched2 []Group
}

// CompareTrees structurally compares two Merkle trees and reports the
// coarsest-possible set of matches between them. It starts with both
// whole trees as a single-node "frontier" on each side; at every
// round it matches frontier nodes by digest, then expands any
// unmatched directory into its children and tries again at the next
// level down. Unmatched files and symlinks cannot be expanded further
// and carry forward as-is, and so does a directory that is empty or
// whose children fail to load. The process stops once a round expands
// nothing on either side, so it always terminates.
//
// When the two roots share a digest, this degenerates to a single
// round producing one Match and no unmatched entries — the "fast
// path" is simply the first iteration of the general algorithm, not a
// separate case.
func CompareTrees(a, b *Node) Report {
	frontierA := []*Node{a}
	frontierB := []*Node{b}
	var matches []Match

	for {
		byDigestA := groupByDigest(frontierA)
		byDigestB := groupByDigest(frontierB)

		for digest, nodesA := range byDigestA {
			nodesB, ok := byDigestB[digest]
			if !ok {
				continue
			}
			matches = append(matches, Match{
				Digest: digest,
				PathsA: pathsOf(nodesA),
				PathsB: pathsOf(nodesB),
			})
		}

		var nextA, nextB []*Node
		for digest, nodesA := range byDigestA {
			if _, ok := byDigestB[digest]; ok {
				continue
			}
			nextA = append(nextA, nodesA...)
		}
		for digest, nodesB := range byDigestB {
			if _, ok := byDigestA[digest]; ok {
				continue
			}
			nextB = append(nextB, nodesB...)
		}

		expandedA, progressedA := expandFrontier(nextA)
		expandedB, progressedB := expandFrontier(nextB)
		if !progressedA && !progressedB {
			frontierA, frontierB = nextA, nextB
			break
		}
		frontierA, frontierB = expandedA, expandedB
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Digest < matches[j].Digest })

	return Report{
		Matches:    matches,
		Unmatched1: groupsOf(frontierA),
		Unmatched2: groupsOf(frontierB),
	}
}

func groupByDigest(nodes []*Node) map[string][]*Node {
	out := make(map[string][]*Node, len(nodes))
	for _, n := range nodes {
		out[n.Digest] = append(out[n.Digest], n)
	}
	return out
}

// expandFrontier replaces every directory node that has children with
// those children, leaving files, symlinks, and stalled directories
// (empty, or whose children failed to load) untouched since they
// cannot be decomposed any further. progressed reports whether any
// node was actually expanded this round, so the caller can tell a
// frontier that has stalled from one still making progress.
func expandFrontier(nodes []*Node) (out []*Node, progressed bool) {
	out = make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.Kind != KindDirectory {
			out = append(out, n)
			continue
		}
		children, err := n.Children()
		if err != nil || len(children) == 0 {
			out = append(out, n)
			continue
		}
		for _, c := range children {
			out = append(out, c)
		}
		progressed = true
	}
	return out, progressed
}

func pathsOf(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Path)
	}
	sort.Strings(out)
	return out
}

func groupsOf(nodes []*Node) []Group {
	byDigest := groupByDigest(nodes)
	out := make([]Group, 0, len(byDigest))
	for digest, ns := range byDigest {
		out = append(out, Group{Digest: digest, Paths: pathsOf(ns)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Digest < out[j].Digest })
	return out
}
