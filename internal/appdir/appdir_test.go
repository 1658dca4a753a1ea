package appdir

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDir_EnvOverride(t *testing.T) {
	// Save original value
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()

	// Set custom path via env var
	customDir := t.TempDir()
	os.Setenv(FlowdeckDirEnv, customDir)

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() failed: %v", err)
	}

	if dir != customDir {
		t.Errorf("Dir() = %q, want %q", dir, customDir)
	}
}

func TestDir_DefaultPath(t *testing.T) {
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()
	os.Unsetenv(FlowdeckDirEnv)

	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir() failed: %v", err)
	}

	if !strings.Contains(strings.ToLower(dir), "flowdeck") {
		t.Errorf("Dir() = %q, expected path to contain 'flowdeck'", dir)
	}
}

func TestEnsureDir(t *testing.T) {
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()

	tmpDir := filepath.Join(t.TempDir(), "flowdeck-test")
	os.Setenv(FlowdeckDirEnv, tmpDir)

	// Ensure the directory doesn't exist yet
	if _, err := os.Stat(tmpDir); !os.IsNotExist(err) {
		t.Fatalf("temp dir should not exist initially")
	}

	if err := EnsureDir(); err != nil {
		t.Fatalf("EnsureDir() failed: %v", err)
	}

	info, err := os.Stat(tmpDir)
	if err != nil {
		t.Fatalf("main dir does not exist after EnsureDir(): %v", err)
	}
	if !info.IsDir() {
		t.Error("main path is not a directory")
	}

	logsDir := filepath.Join(tmpDir, LogsDirName)
	info, err = os.Stat(logsDir)
	if err != nil {
		t.Fatalf("logs dir does not exist after EnsureDir(): %v", err)
	}
	if !info.IsDir() {
		t.Error("logs path is not a directory")
	}
}

func TestSettingsPath(t *testing.T) {
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()

	customDir := t.TempDir()
	os.Setenv(FlowdeckDirEnv, customDir)

	settingsPath, err := SettingsPath()
	if err != nil {
		t.Fatalf("SettingsPath() failed: %v", err)
	}

	expected := filepath.Join(customDir, SettingsFileName)
	if settingsPath != expected {
		t.Errorf("SettingsPath() = %q, want %q", settingsPath, expected)
	}
}

func TestSnapshotPath(t *testing.T) {
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()

	customDir := t.TempDir()
	os.Setenv(FlowdeckDirEnv, customDir)

	snapshotPath, err := SnapshotPath()
	if err != nil {
		t.Fatalf("SnapshotPath() failed: %v", err)
	}

	expected := filepath.Join(customDir, SnapshotFileName)
	if snapshotPath != expected {
		t.Errorf("SnapshotPath() = %q, want %q", snapshotPath, expected)
	}
}

func TestLogsDir(t *testing.T) {
	original := os.Getenv(FlowdeckDirEnv)
	defer func() {
		os.Setenv(FlowdeckDirEnv, original)
		ResetCache()
	}()

	ResetCache()

	customDir := t.TempDir()
	os.Setenv(FlowdeckDirEnv, customDir)

	logsDir, err := LogsDir()
	if err != nil {
		t.Fatalf("LogsDir() failed: %v", err)
	}

	expected := filepath.Join(customDir, LogsDirName)
	if logsDir != expected {
		t.Errorf("LogsDir() = %q, want %q", logsDir, expected)
	}
}
