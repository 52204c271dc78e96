package merkle

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCompareTrees_IdenticalRoots(t *testing.T) {
	a := NewFile("/a", 1, "same")
	b := NewFile("/b", 1, "same")

	report := CompareTrees(a, b)
	if len(report.Matches) != 1 {
		t.Fatalf("Matches len = %d, want 1", len(report.Matches))
	}
	if len(report.Unmatched1) != 0 || len(report.Unmatched2) != 0 {
		t.Errorf("expected no unmatched entries, got %+v", report)
	}
}

func TestCompareTrees_EntirelyDifferentFiles(t *testing.T) {
	a := NewFile("/a", 1, "digest-a")
	b := NewFile("/b", 1, "digest-b")

	report := CompareTrees(a, b)
	if len(report.Matches) != 0 {
		t.Errorf("expected no matches, got %+v", report.Matches)
	}
	if len(report.Unmatched1) != 1 || len(report.Unmatched2) != 1 {
		t.Fatalf("expected one unmatched group per side, got %+v", report)
	}
}

func TestCompareTrees_DirectoriesExpandOnMismatch(t *testing.T) {
	sharedFile := NewFile("/root1/shared.txt", 1, "shared-digest")
	onlyA := NewFile("/root1/only-a.txt", 1, "digest-a")
	dirA := NewDirectory("/root1", 2, "root-a", map[string]*Node{
		"/root1/shared.txt": sharedFile,
		"/root1/only-a.txt": onlyA,
	})

	sharedFileB := NewFile("/root2/shared.txt", 1, "shared-digest")
	onlyB := NewFile("/root2/only-b.txt", 1, "digest-b")
	dirB := NewDirectory("/root2", 2, "root-b", map[string]*Node{
		"/root2/shared.txt": sharedFileB,
		"/root2/only-b.txt": onlyB,
	})

	report := CompareTrees(dirA, dirB)

	// Roots differ, so the first round has no match; the directories
	// expand and the shared file is found at the next level.
	foundShared := false
	for _, m := range report.Matches {
		if m.Digest == "shared-digest" {
			foundShared = true
		}
	}
	if !foundShared {
		t.Errorf("expected a match on the shared file's digest, got %+v", report.Matches)
	}

	if len(report.Unmatched1) != 1 || report.Unmatched1[0].Digest != "digest-a" {
		t.Errorf("Unmatched1 = %+v, want only digest-a", report.Unmatched1)
	}
	if len(report.Unmatched2) != 1 || report.Unmatched2[0].Digest != "digest-b" {
		t.Errorf("Unmatched2 = %+v, want only digest-b", report.Unmatched2)
	}
}

func TestCompareTrees_NestedMatchAtDepth(t *testing.T) {
	deepA := NewFile("/root1/sub/deep.txt", 1, "deep-digest")
	subA := NewDirectory("/root1/sub", 1, "sub-digest-a", map[string]*Node{"/root1/sub/deep.txt": deepA})
	rootA := NewDirectory("/root1", 1, "root-digest-a", map[string]*Node{"/root1/sub": subA})

	deepB := NewFile("/root2/other/deep.txt", 1, "deep-digest")
	subB := NewDirectory("/root2/other", 1, "sub-digest-b", map[string]*Node{"/root2/other/deep.txt": deepB})
	rootB := NewDirectory("/root2", 1, "root-digest-b", map[string]*Node{"/root2/other": subB})

	report := CompareTrees(rootA, rootB)

	foundDeep := false
	for _, m := range report.Matches {
		if m.Digest == "deep-digest" {
			foundDeep = true
		}
	}
	if !foundDeep {
		t.Errorf("expected the deeply nested identical file to match, got %+v", report.Matches)
	}
}

func TestCompareTrees_DuplicateContentYieldsMultiplePaths(t *testing.T) {
	a1 := NewFile("/root1/a1.txt", 1, "dup")
	a2 := NewFile("/root1/a2.txt", 1, "dup")
	rootA := NewDirectory("/root1", 2, "root-a", map[string]*Node{
		"/root1/a1.txt": a1,
		"/root1/a2.txt": a2,
	})
	b1 := NewFile("/root2/b1.txt", 1, "dup")
	rootB := NewDirectory("/root2", 1, "root-b", map[string]*Node{
		"/root2/b1.txt": b1,
	})

	report := CompareTrees(rootA, rootB)
	if len(report.Matches) != 1 {
		t.Fatalf("Matches len = %d, want 1", len(report.Matches))
	}

	gotPathsA := append([]string(nil), report.Matches[0].PathsA...)
	sort.Strings(gotPathsA)
	wantPathsA := []string{"/root1/a1.txt", "/root1/a2.txt"}
	if diff := cmp.Diff(wantPathsA, gotPathsA); diff != "" {
		t.Errorf("PathsA mismatch (-want +got):\n%s", diff)
	}

	wantPathsB := []string{"/root2/b1.txt"}
	if diff := cmp.Diff(wantPathsB, report.Matches[0].PathsB); diff != "" {
		t.Errorf("PathsB mismatch (-want +got):\n%s", diff)
	}
}

func TestCompareTrees_EmptyDirectories(t *testing.T) {
	a := NewDirectory("/root1", 0, HashString(""), map[string]*Node{})
	b := NewDirectory("/root2", 0, HashString(""), map[string]*Node{})

	report := CompareTrees(a, b)
	if len(report.Matches) != 1 {
		t.Fatalf("two empty directories should match on the empty-children digest, got %+v", report)
	}
}

// An unmatched empty directory cannot be expanded any further and
// must fall out as a terminal unmatched entry rather than stalling
// the frontier forever.
func TestCompareTrees_UnmatchedEmptyDirectoryTerminates(t *testing.T) {
	empty := NewDirectory("/r1/empty", 0, HashString(""), map[string]*Node{})
	rootA := NewDirectory("/r1", 0, "root-a", map[string]*Node{"/r1/empty": empty})

	f := NewFile("/r2/f", 1, "digest-f")
	rootB := NewDirectory("/r2", 1, "root-b", map[string]*Node{"/r2/f": f})

	done := make(chan Report, 1)
	go func() { done <- CompareTrees(rootA, rootB) }()

	select {
	case report := <-done:
		if len(report.Matches) != 0 {
			t.Errorf("expected no matches, got %+v", report.Matches)
		}
		if len(report.Unmatched1) != 1 || report.Unmatched1[0].Digest != HashString("") {
			t.Errorf("Unmatched1 = %+v, want the empty directory's digest", report.Unmatched1)
		}
		if len(report.Unmatched2) != 1 || report.Unmatched2[0].Digest != "digest-f" {
			t.Errorf("Unmatched2 = %+v, want digest-f", report.Unmatched2)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CompareTrees did not terminate: unmatched empty directory stalled the frontier")
	}
}

// A directory whose children fail to load must also be treated as
// terminal rather than retried forever.
func TestCompareTrees_UnmatchedDirectoryWithLoadErrorTerminates(t *testing.T) {
	broken := NewLazyDirectory("/r1/broken", 0, "broken-digest", []byte("payload"), func([]byte) (map[string]*Node, error) {
		return nil, ErrIoError
	})
	rootA := NewDirectory("/r1", 0, "root-a", map[string]*Node{"/r1/broken": broken})

	f := NewFile("/r2/f", 1, "digest-f")
	rootB := NewDirectory("/r2", 1, "root-b", map[string]*Node{"/r2/f": f})

	done := make(chan Report, 1)
	go func() { done <- CompareTrees(rootA, rootB) }()

	select {
	case report := <-done:
		if len(report.Unmatched1) != 1 || report.Unmatched1[0].Digest != "broken-digest" {
			t.Errorf("Unmatched1 = %+v, want broken-digest", report.Unmatched1)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("CompareTrees did not terminate: directory with a children load error stalled the frontier")
	}
}
