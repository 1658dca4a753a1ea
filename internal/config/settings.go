// Package config handles configuration loading and management for Flowdeck.
package config

import (
	"fmt"
	"os"

	"github.com/flowdeck/flowdeck/internal/appdir"
	"github.com/flowdeck/flowdeck/internal/fileutil"
)

// DefaultAgentCommand is the agent executable started when none is configured.
const DefaultAgentCommand = "iflow"

// Settings represents the persisted Flowdeck settings in JSON format.
// It is stored in the Flowdeck data directory as settings.json.
type Settings struct {
	// AgentCommand is the executable used to start coding agents.
	AgentCommand string `json:"agent_command"`
	// DefaultModel is the model requested when spawning agents.
	// Empty means the agent's own default.
	DefaultModel string `json:"default_model,omitempty"`
	// HistoryRoot overrides the agent's session history directory.
	// Empty means the agent default (~/.iflow/projects).
	HistoryRoot string `json:"history_root,omitempty"`
	// LogLevel is the minimum log level (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty"`
	// LogFile is an optional path for rotated file logging.
	LogFile string `json:"log_file,omitempty"`
	// MaxRetries overrides the connection retry budget. Zero means default.
	MaxRetries int `json:"max_retries,omitempty"`
}

// DefaultSettings returns the settings used when no settings.json exists.
func DefaultSettings() *Settings {
	return &Settings{
		AgentCommand: DefaultAgentCommand,
		LogLevel:     "info",
	}
}

// LoadSettings loads settings from the Flowdeck data directory.
// If settings.json doesn't exist, it creates it from defaults.
// This function also ensures the Flowdeck directory exists.
func LoadSettings() (*Settings, error) {
	if err := appdir.EnsureDir(); err != nil {
		return nil, fmt.Errorf("failed to create Flowdeck directory: %w", err)
	}

	settingsPath, err := appdir.SettingsPath()
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(settingsPath); os.IsNotExist(err) {
		settings := DefaultSettings()
		if err := SaveSettings(settings); err != nil {
			return nil, fmt.Errorf("failed to create default settings: %w", err)
		}
		return settings, nil
	}

	var settings Settings
	if err := fileutil.ReadJSON(settingsPath, &settings); err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if settings.AgentCommand == "" {
		settings.AgentCommand = DefaultAgentCommand
	}
	return &settings, nil
}

// SaveSettings saves settings to the Flowdeck data directory.
// Before writing, it creates a backup of the existing settings file (if it
// exists) at settings.json.bak. Only one backup is maintained at a time.
func SaveSettings(settings *Settings) error {
	settingsPath, err := appdir.SettingsPath()
	if err != nil {
		return err
	}

	if existing, err := os.ReadFile(settingsPath); err == nil {
		backupPath := settingsPath + ".bak"
		if err := os.WriteFile(backupPath, existing, 0644); err != nil {
			return fmt.Errorf("failed to create settings backup: %w", err)
		}
	}

	return fileutil.WriteJSONAtomic(settingsPath, settings, 0644)
}
