package document

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/krishraghuram/dmerk/internal/merkle"
)

func buildSampleTree(rootPath string) *merkle.Node {
	leaf := merkle.NewFile(filepath.Join(rootPath, "a.txt"), 5, "leafdigest")
	link := merkle.NewSymlink(filepath.Join(rootPath, "link"), 3, "linkdigest")
	return merkle.NewDirectory(rootPath, 8, "rootdigest", map[string]*merkle.Node{
		leaf.Path: leaf,
		link.Path: link,
	})
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	root := buildSampleTree(filepath.Join(tmpDir, "project"))

	filename, err := Save(root, tmpDir, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filename != "project.dmerk" {
		t.Errorf("filename = %q, want %q", filename, "project.dmerk")
	}

	loaded, err := Load(filepath.Join(tmpDir, filename))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Equal(root) {
		t.Error("loaded tree should be Equal to the original")
	}
}

func TestSave_CollisionSynthesizesSuffixedName(t *testing.T) {
	tmpDir := t.TempDir()
	root := buildSampleTree(filepath.Join(tmpDir, "project"))

	first, err := Save(root, tmpDir, "")
	if err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	second, err := Save(root, tmpDir, "")
	if err != nil {
		t.Fatalf("second Save() error = %v", err)
	}
	if first == second {
		t.Error("second Save() should synthesize a different filename on collision")
	}
	if len(second) <= len("project.dmerk") {
		t.Errorf("collision filename %q should carry a suffix", second)
	}
}

func TestSave_ExplicitFilename(t *testing.T) {
	tmpDir := t.TempDir()
	root := buildSampleTree(filepath.Join(tmpDir, "project"))

	filename, err := Save(root, tmpDir, "custom.dmerk")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filename != "custom.dmerk" {
		t.Errorf("filename = %q, want %q", filename, "custom.dmerk")
	}
}

func TestLoad_RejectsMalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.dmerk")
	if err := os.WriteFile(path, []byte("not json at all"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject malformed JSON")
	}
}

func TestLoad_RejectsWrongFormat(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.dmerk")
	body := `{"format":"other/1","path_flavor":"posix","root":{"__node__":"dmerk-node","kind":"file","path":"/x","size":1,"digest":"d"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an unrecognized format tag")
	}
}

func TestLoad_RejectsMissingSentinel(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.dmerk")
	body := `{"format":"dmerk/1","path_flavor":"posix","root":{"kind":"file","path":"/x","size":1,"digest":"d"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject a document missing the node sentinel")
	}
}

func TestLoad_RejectsUnrecognizedPathFlavor(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "bad.dmerk")
	body := `{"format":"dmerk/1","path_flavor":"amiga","root":{"__node__":"dmerk-node","kind":"file","path":"/x","size":1,"digest":"d"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an unrecognized path flavor")
	}
}

func TestLoad_ChildrenRemainLazyUntilAccessed(t *testing.T) {
	tmpDir := t.TempDir()
	root := buildSampleTree(filepath.Join(tmpDir, "project"))
	filename, err := Save(root, tmpDir, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(filepath.Join(tmpDir, filename))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	children, err := loaded.Children()
	if err != nil {
		t.Fatalf("Children() error = %v", err)
	}
	if len(children) != 2 {
		t.Errorf("Children() len = %d, want 2", len(children))
	}
}
