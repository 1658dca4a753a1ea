// Package appdir provides platform-native directory management for Flowdeck.
// It handles locating and creating the Flowdeck data directory, which stores
// configuration (settings.json) and the session snapshot (snapshot.json).
package appdir

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

const (
	// FlowdeckDirEnv is the environment variable to override the Flowdeck directory.
	FlowdeckDirEnv = "FLOWDECK_DIR"

	// SettingsFileName is the name of the settings file.
	SettingsFileName = "settings.json"

	// SnapshotFileName is the name of the session snapshot file.
	SnapshotFileName = "snapshot.json"

	// LogsDirName is the name of the logs subdirectory.
	LogsDirName = "logs"
)

var (
	// cachedDir stores the resolved Flowdeck directory to avoid repeated lookups.
	cachedDir string
	// mu protects cachedDir.
	mu sync.RWMutex
)

// Dir returns the Flowdeck data directory path.
// The directory is determined in the following order:
//  1. FLOWDECK_DIR environment variable (if set)
//  2. Platform-specific default:
//     - macOS: ~/Library/Application Support/Flowdeck
//     - Linux: $XDG_DATA_HOME/flowdeck or ~/.local/share/flowdeck
//     - Windows: %APPDATA%\Flowdeck
//
// This function only returns the path; it does not create the directory.
// Use EnsureDir() to create the directory if needed.
func Dir() (string, error) {
	mu.RLock()
	if cachedDir != "" {
		dir := cachedDir
		mu.RUnlock()
		return dir, nil
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	// Double-check after acquiring write lock
	if cachedDir != "" {
		return cachedDir, nil
	}

	dir, err := resolveDir()
	if err != nil {
		return "", err
	}

	cachedDir = dir
	return dir, nil
}

// resolveDir calculates the Flowdeck directory path.
func resolveDir() (string, error) {
	if envDir := os.Getenv(FlowdeckDirEnv); envDir != "" {
		return envDir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, "Library", "Application Support", "Flowdeck"), nil

	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			appData = filepath.Join(homeDir, "AppData", "Roaming")
		}
		return filepath.Join(appData, "Flowdeck"), nil

	default:
		// Linux and other Unix-like systems
		dataDir := os.Getenv("XDG_DATA_HOME")
		if dataDir == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			dataDir = filepath.Join(homeDir, ".local", "share")
		}
		return filepath.Join(dataDir, "flowdeck"), nil
	}
}

// EnsureDir creates the Flowdeck data directory if it doesn't exist.
// It also creates the logs subdirectory.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create Flowdeck directory %s: %w", dir, err)
	}

	logsDir := filepath.Join(dir, LogsDirName)
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory %s: %w", logsDir, err)
	}

	return nil
}

// SettingsPath returns the full path to the settings.json file.
func SettingsPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SettingsFileName), nil
}

// SnapshotPath returns the full path to the snapshot.json file.
func SnapshotPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SnapshotFileName), nil
}

// LogsDir returns the full path to the logs directory.
func LogsDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, LogsDirName), nil
}

// ResetCache clears the cached directory path.
// This is primarily useful for testing.
func ResetCache() {
	mu.Lock()
	defer mu.Unlock()
	cachedDir = ""
}
