package acp

import (
	"os"
	"path/filepath"
	"testing"
)

func intptr(v int) *int { return &v }

func TestOSFileSystem_ReadWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("a\nb\nc"), 0o644); err != nil {
		t.Fatal(err)
	}

	fs := &OSFileSystem{}
	content, err := fs.ReadTextFile(path, nil, nil)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "a\nb\nc" {
		t.Errorf("content = %q", content)
	}
}

func TestOSFileSystem_ReadWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\nfour"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := &OSFileSystem{}

	tests := []struct {
		name  string
		line  *int
		limit *int
		want  string
	}{
		{"from second line", intptr(2), nil, "two\nthree\nfour"},
		{"window of two", intptr(2), intptr(2), "two\nthree"},
		{"limit only", nil, intptr(1), "one"},
		{"line past end", intptr(99), nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, err := fs.ReadTextFile(path, tt.line, tt.limit)
			if err != nil {
				t.Fatalf("read failed: %v", err)
			}
			if content != tt.want {
				t.Errorf("content = %q, want %q", content, tt.want)
			}
		})
	}
}

func TestOSFileSystem_ReadMissing(t *testing.T) {
	fs := &OSFileSystem{}
	if _, err := fs.ReadTextFile(filepath.Join(t.TempDir(), "nope"), nil, nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOSFileSystem_WriteCreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "f.txt")

	fs := &OSFileSystem{}
	if err := fs.WriteTextFile(path, "deep"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "deep" {
		t.Errorf("content = %q", b)
	}
}

func TestOSFileSystem_WriteOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	fs := &OSFileSystem{}
	if err := fs.WriteTextFile(path, "old"); err != nil {
		t.Fatal(err)
	}
	if err := fs.WriteTextFile(path, "new"); err != nil {
		t.Fatal(err)
	}
	b, _ := os.ReadFile(path)
	if string(b) != "new" {
		t.Errorf("content = %q", b)
	}
}
