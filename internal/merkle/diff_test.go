package merkle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCompare_Identical(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	for _, d := range []string{dir1, dir2} {
		if err := os.WriteFile(filepath.Join(d, "file.txt"), []byte("same"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	diff, err := Compare(dir1, dir2)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(diff) != 1 || diff[0] != noDifferencesMsg {
		t.Errorf("Compare() = %v, want [%q]", diff, noDifferencesMsg)
	}
}

func TestCompare_Different(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir1, "file.txt"), []byte("a"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir2, "file.txt"), []byte("b"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	diff, err := Compare(dir1, dir2)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if len(diff) != 1 || diff[0] == noDifferencesMsg {
		t.Errorf("Compare() should report a root mismatch, got %v", diff)
	}
}

func TestCompareWithExclusions_IgnoresExcludedDifferences(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir1, "keep.txt"), []byte("same"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir2, "keep.txt"), []byte("same"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir1, "skip.txt"), []byte("a"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir2, "skip.txt"), []byte("b"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	diff, err := CompareWithExclusions(dir1, dir2, []string{"skip.txt"}, false, "")
	if err != nil {
		t.Fatalf("CompareWithExclusions() error = %v", err)
	}
	if len(diff) != 1 || diff[0] != noDifferencesMsg {
		t.Errorf("CompareWithExclusions() = %v, want no differences once skip.txt is excluded", diff)
	}
}

func TestCompare_NonexistentPath(t *testing.T) {
	dir1 := t.TempDir()
	if _, err := Compare(filepath.Join(dir1, "missing"), dir1); err == nil {
		t.Error("Compare() should error for a nonexistent path")
	}
}
