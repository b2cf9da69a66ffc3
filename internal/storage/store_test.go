package storage

import (
	"os"
	"strings"
	"testing"
)

func TestSaveKeepsSameNamedUploadsApart(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	first, err := store.Save("sales.csv", []byte("a"))
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.Save("sales.csv", []byte("b"))
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if first == second {
		t.Fatalf("same-named uploads must get distinct paths, both got %s", first)
	}

	got, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if string(got) != "a" {
		t.Fatalf("first upload overwritten, got %q", got)
	}
}

func TestSaveStripsDirectoryComponents(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	path, err := store.Save("../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("file escaped the upload directory: %s", path)
	}
}
