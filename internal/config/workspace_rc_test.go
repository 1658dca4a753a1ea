package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWorkspaceRC_Missing(t *testing.T) {
	rc, err := LoadWorkspaceRC(t.TempDir())
	if err != nil {
		t.Fatalf("LoadWorkspaceRC() failed: %v", err)
	}
	if rc != nil {
		t.Errorf("rc = %+v, want nil for missing file", rc)
	}
}

func TestLoadWorkspaceRC_EmptyDir(t *testing.T) {
	rc, err := LoadWorkspaceRC("")
	if err != nil || rc != nil {
		t.Errorf("LoadWorkspaceRC(\"\") = (%+v, %v), want (nil, nil)", rc, err)
	}
}

func TestLoadWorkspaceRC_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), nil, 0644); err != nil {
		t.Fatal(err)
	}

	rc, err := LoadWorkspaceRC(dir)
	if err != nil {
		t.Fatalf("LoadWorkspaceRC() failed: %v", err)
	}
	if rc != nil {
		t.Errorf("rc = %+v, want nil for empty file", rc)
	}
}

func TestLoadWorkspaceRC_Parses(t *testing.T) {
	dir := t.TempDir()
	content := "agent_command: iflow-beta\ndefault_model: glm-4.7\n"
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rc, err := LoadWorkspaceRC(dir)
	if err != nil {
		t.Fatalf("LoadWorkspaceRC() failed: %v", err)
	}
	if rc == nil {
		t.Fatal("rc is nil")
	}
	if rc.AgentCommand != "iflow-beta" {
		t.Errorf("AgentCommand = %q", rc.AgentCommand)
	}
	if rc.DefaultModel != "glm-4.7" {
		t.Errorf("DefaultModel = %q", rc.DefaultModel)
	}
}

func TestLoadWorkspaceRC_IgnoresUnknownSections(t *testing.T) {
	dir := t.TempDir()
	content := "default_model: kimi-k2.5\nfuture_section:\n  nested: true\n"
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	rc, err := LoadWorkspaceRC(dir)
	if err != nil {
		t.Fatalf("LoadWorkspaceRC() failed: %v", err)
	}
	if rc == nil || rc.DefaultModel != "kimi-k2.5" {
		t.Errorf("rc = %+v", rc)
	}
}

func TestLoadWorkspaceRC_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), []byte("agent_command: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadWorkspaceRC(dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestMerge_Overrides(t *testing.T) {
	base := &Settings{AgentCommand: "iflow", DefaultModel: "base-model", LogLevel: "info"}
	rc := &WorkspaceRC{DefaultModel: "glm-4.7"}

	merged := rc.Merge(base)
	if merged.AgentCommand != "iflow" {
		t.Errorf("AgentCommand = %q, want base kept", merged.AgentCommand)
	}
	if merged.DefaultModel != "glm-4.7" {
		t.Errorf("DefaultModel = %q, want override", merged.DefaultModel)
	}
	if merged.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want untouched", merged.LogLevel)
	}

	// Base is not mutated.
	if base.DefaultModel != "base-model" {
		t.Errorf("base mutated: %+v", base)
	}
}

func TestMerge_NilRC(t *testing.T) {
	base := &Settings{AgentCommand: "iflow"}
	var rc *WorkspaceRC

	merged := rc.Merge(base)
	if merged.AgentCommand != "iflow" {
		t.Errorf("merged = %+v", merged)
	}
}

func TestEffectiveSettings(t *testing.T) {
	dir := t.TempDir()
	content := "agent_command: local-agent\n"
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	base := &Settings{AgentCommand: "iflow", DefaultModel: "glm-4.7"}
	effective := EffectiveSettings(base, dir)
	if effective.AgentCommand != "local-agent" {
		t.Errorf("AgentCommand = %q", effective.AgentCommand)
	}
	if effective.DefaultModel != "glm-4.7" {
		t.Errorf("DefaultModel = %q", effective.DefaultModel)
	}
}

func TestEffectiveSettings_MalformedDegrades(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, WorkspaceRCFileName), []byte("{{{"), 0644); err != nil {
		t.Fatal(err)
	}

	base := &Settings{AgentCommand: "iflow"}
	effective := EffectiveSettings(base, dir)
	if effective.AgentCommand != "iflow" {
		t.Errorf("effective = %+v, want base settings", effective)
	}
}
