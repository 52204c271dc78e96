package document

import (
	"path/filepath"
	"testing"
)

func TestLoadAny_DispatchesByExtension(t *testing.T) {
	tmpDir := t.TempDir()
	root := buildSampleTree(filepath.Join(tmpDir, "project"))

	jsonName, err := Save(root, tmpDir, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	msgpackName, err := SaveMsgpack(root, tmpDir, "")
	if err != nil {
		t.Fatalf("SaveMsgpack() error = %v", err)
	}
	yamlName, err := SaveYAML(root, tmpDir, "")
	if err != nil {
		t.Fatalf("SaveYAML() error = %v", err)
	}

	for _, name := range []string{jsonName, msgpackName, yamlName} {
		loaded, err := LoadAny(filepath.Join(tmpDir, name))
		if err != nil {
			t.Fatalf("LoadAny(%q) error = %v", name, err)
		}
		if !loaded.Equal(root) {
			t.Errorf("LoadAny(%q) did not round-trip to an equal tree", name)
		}
	}
}
