package acp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSystem is the file access used to serve the agent's fs/read_text_file
// and fs/write_text_file callbacks. The interface exists so callback
// handling can be tested without touching the real filesystem.
type FileSystem interface {
	// ReadTextFile reads a text file. When line and limit are provided,
	// only that window of lines is returned (line is 1-based).
	ReadTextFile(path string, line, limit *int) (string, error)

	// WriteTextFile writes content to a text file, creating parent
	// directories if needed.
	WriteTextFile(path, content string) error
}

// OSFileSystem implements FileSystem against the real operating system.
type OSFileSystem struct{}

var _ FileSystem = (*OSFileSystem)(nil)

func (fs *OSFileSystem) ReadTextFile(path string, line, limit *int) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	content := string(b)
	if line != nil || limit != nil {
		lines := strings.Split(content, "\n")
		start := 0
		if line != nil && *line > 0 {
			start = min(max(*line-1, 0), len(lines))
		}
		end := len(lines)
		if limit != nil && *limit > 0 && start+*limit < end {
			end = start + *limit
		}
		content = strings.Join(lines[start:end], "\n")
	}

	return content, nil
}

func (fs *OSFileSystem) WriteTextFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DefaultFileSystem is the FileSystem used when none is configured.
var DefaultFileSystem FileSystem = &OSFileSystem{}
