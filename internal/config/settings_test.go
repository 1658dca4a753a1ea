package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/flowdeck/flowdeck/internal/appdir"
)

func withTempAppDir(t *testing.T) string {
	t.Helper()
	original := os.Getenv(appdir.FlowdeckDirEnv)
	t.Cleanup(func() {
		os.Setenv(appdir.FlowdeckDirEnv, original)
		appdir.ResetCache()
	})

	dir := t.TempDir()
	os.Setenv(appdir.FlowdeckDirEnv, dir)
	appdir.ResetCache()
	return dir
}

func TestLoadSettings_CreatesDefaults(t *testing.T) {
	dir := withTempAppDir(t)

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() failed: %v", err)
	}

	if settings.AgentCommand != DefaultAgentCommand {
		t.Errorf("AgentCommand = %q, want %q", settings.AgentCommand, DefaultAgentCommand)
	}
	if settings.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", settings.LogLevel)
	}

	// settings.json now exists on disk
	if _, err := os.Stat(filepath.Join(dir, appdir.SettingsFileName)); err != nil {
		t.Errorf("settings.json not created: %v", err)
	}
}

func TestLoadSettings_ReadsExisting(t *testing.T) {
	dir := withTempAppDir(t)

	content := `{"agent_command": "custom-agent", "default_model": "glm-4.7", "log_level": "debug"}`
	if err := os.WriteFile(filepath.Join(dir, appdir.SettingsFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() failed: %v", err)
	}
	if settings.AgentCommand != "custom-agent" {
		t.Errorf("AgentCommand = %q", settings.AgentCommand)
	}
	if settings.DefaultModel != "glm-4.7" {
		t.Errorf("DefaultModel = %q", settings.DefaultModel)
	}
	if settings.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", settings.LogLevel)
	}
}

func TestLoadSettings_EmptyAgentCommandDefaults(t *testing.T) {
	dir := withTempAppDir(t)

	if err := os.WriteFile(filepath.Join(dir, appdir.SettingsFileName), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	settings, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings() failed: %v", err)
	}
	if settings.AgentCommand != DefaultAgentCommand {
		t.Errorf("AgentCommand = %q, want default", settings.AgentCommand)
	}
}

func TestLoadSettings_MalformedJSON(t *testing.T) {
	dir := withTempAppDir(t)

	if err := os.WriteFile(filepath.Join(dir, appdir.SettingsFileName), []byte(`{not json`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(); err == nil {
		t.Error("expected error for malformed settings.json")
	}
}

func TestSaveSettings_CreatesBackup(t *testing.T) {
	dir := withTempAppDir(t)

	first := &Settings{AgentCommand: "one"}
	if err := SaveSettings(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := &Settings{AgentCommand: "two"}
	if err := SaveSettings(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	// Current file holds the new settings
	data, err := os.ReadFile(filepath.Join(dir, appdir.SettingsFileName))
	if err != nil {
		t.Fatal(err)
	}
	var current Settings
	if err := json.Unmarshal(data, &current); err != nil {
		t.Fatalf("settings.json not valid JSON: %v", err)
	}
	if current.AgentCommand != "two" {
		t.Errorf("AgentCommand = %q, want two", current.AgentCommand)
	}

	// Backup holds the previous settings
	backup, err := os.ReadFile(filepath.Join(dir, appdir.SettingsFileName+".bak"))
	if err != nil {
		t.Fatalf("backup not created: %v", err)
	}
	var prev Settings
	if err := json.Unmarshal(backup, &prev); err != nil {
		t.Fatalf("backup not valid JSON: %v", err)
	}
	if prev.AgentCommand != "one" {
		t.Errorf("backup AgentCommand = %q, want one", prev.AgentCommand)
	}
}
