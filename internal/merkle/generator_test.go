package merkle

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestGenerate_SingleFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "a.txt"), []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	node, err := Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if node.Kind != KindDirectory {
		t.Errorf("Kind = %v, want KindDirectory", node.Kind)
	}
	children, err := node.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("Children() len = %d, want 1", len(children))
	}
}

func TestGenerate_NotADirectory(t *testing.T) {
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "a.txt")
	if err := os.WriteFile(f, []byte("hello"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Generate(f); err == nil {
		t.Error("Generate() on a file should error")
	}
}

func TestGenerate_IsPathIndependent(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	for _, d := range []string{dir1, dir2} {
		if err := os.WriteFile(filepath.Join(d, "file.txt"), []byte("same content"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	n1, err := Generate(dir1)
	if err != nil {
		t.Fatalf("Generate(dir1) error = %v", err)
	}
	n2, err := Generate(dir2)
	if err != nil {
		t.Fatalf("Generate(dir2) error = %v", err)
	}

	if !n1.Equal(n2) {
		t.Error("two directories with identical content under different paths should be Equal")
	}
}

func TestGenerate_DetectsContentChange(t *testing.T) {
	dir1 := t.TempDir()
	dir2 := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir1, "file.txt"), []byte("content a"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir2, "file.txt"), []byte("content b"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	n1, err := Generate(dir1)
	if err != nil {
		t.Fatalf("Generate(dir1) error = %v", err)
	}
	n2, err := Generate(dir2)
	if err != nil {
		t.Fatalf("Generate(dir2) error = %v", err)
	}
	if n1.Equal(n2) {
		t.Error("directories with different content should not be Equal")
	}
}

func TestGenerate_NestedDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "sub", "deeper")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(nested, "f.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	node, err := Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	found, err := node.Traverse(filepath.Join("sub", "deeper", "f.txt"))
	if err != nil {
		t.Fatalf("Traverse() error = %v", err)
	}
	if found.Kind != KindFile {
		t.Errorf("Traverse() resolved to Kind %v, want KindFile", found.Kind)
	}
}

func TestGenerate_Symlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on windows")
	}
	tmpDir := t.TempDir()
	target := filepath.Join(tmpDir, "target.txt")
	if err := os.WriteFile(target, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	link := filepath.Join(tmpDir, "link")
	if err := os.Symlink(target, link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	node, err := Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	children, err := node.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	found, ok := children[link]
	if !ok {
		t.Fatalf("expected %q among children", link)
	}
	if found.Kind != KindSymlink {
		t.Errorf("Kind = %v, want KindSymlink", found.Kind)
	}
	if found.Digest != HashString(target) {
		t.Errorf("symlink digest should be HashString(target), got %q", found.Digest)
	}
}

func TestGenerate_WithExclusions(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "keep.txt"), []byte("keep"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "skip.txt"), []byte("skip"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	gen, err := NewGeneratorWithOptions(DefaultMaxWorkers, false, []string{"skip.txt"}, tmpDir, false, "")
	if err != nil {
		t.Fatalf("NewGeneratorWithOptions() error = %v", err)
	}
	node, err := gen.Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	children, err := node.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 1 {
		t.Fatalf("Children() len = %d, want 1 (excluded entry should be absent)", len(children))
	}
}

func TestGenerate_ContinueOnError_SkipsUnreadableEntry(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits behave differently on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "ok.txt"), []byte("ok"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	blocked := filepath.Join(tmpDir, "blocked.txt")
	if err := os.WriteFile(blocked, []byte("secret"), 0000); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	defer os.Chmod(blocked, 0644)

	gen, err := NewGeneratorWithOptions(DefaultMaxWorkers, true, nil, tmpDir, false, "")
	if err != nil {
		t.Fatalf("NewGeneratorWithOptions() error = %v", err)
	}
	node, err := gen.Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() with continueOnError should not fail entirely: %v", err)
	}
	children, err := node.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if _, ok := children[blocked]; ok {
		t.Error("skipped entry should be entirely absent from children, not present with a zero digest")
	}
}

func TestGenerate_ContinueOnError_AbortsWithoutFlag(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits behave differently on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root ignores permission bits")
	}
	tmpDir := t.TempDir()
	blocked := filepath.Join(tmpDir, "blocked.txt")
	if err := os.WriteFile(blocked, []byte("secret"), 0000); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	defer os.Chmod(blocked, 0644)

	gen, err := NewGeneratorWithOptions(DefaultMaxWorkers, false, nil, tmpDir, false, "")
	if err != nil {
		t.Fatalf("NewGeneratorWithOptions() error = %v", err)
	}
	if _, err := gen.Generate(tmpDir); err == nil {
		t.Error("Generate() without continueOnError should fail on an unreadable entry")
	}
}

func TestGenerate_EmptyDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	node, err := Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	children, err := node.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 0 {
		t.Errorf("Children() len = %d, want 0", len(children))
	}
	if node.Digest != HashString("") {
		t.Errorf("empty directory digest = %q, want HashString(\"\") = %q", node.Digest, HashString(""))
	}
}

func TestGenerate_SizeIsAdditive(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, "a.txt"), make([]byte, 100), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "b.txt"), make([]byte, 200), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	node, err := Generate(tmpDir)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if node.Size < 300 {
		t.Errorf("Size = %d, want at least 300 (100 + 200 + dir inode)", node.Size)
	}
}
