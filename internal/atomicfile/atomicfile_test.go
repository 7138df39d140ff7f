package atomicfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFile_CreatesDirAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "doc.json")

	if err := WriteFile(path, []byte("first")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteFile(path, []byte("second")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q, want the replacement", data)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("expected tmp file removed, got %v", err)
	}
}
