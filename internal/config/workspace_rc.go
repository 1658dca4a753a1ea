package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// WorkspaceRCFileName is the name of the workspace-specific config file.
const WorkspaceRCFileName = ".flowdeckrc"

// WorkspaceRC represents workspace-specific configuration loaded from
// .flowdeckrc. Supports agent_command and default_model overrides; other
// sections are ignored.
type WorkspaceRC struct {
	// AgentCommand overrides the global agent executable for this workspace.
	AgentCommand string `json:"agent_command,omitempty"`
	// DefaultModel overrides the global default model for this workspace.
	DefaultModel string `json:"default_model,omitempty"`
	// LoadedAt is the time when this config was loaded.
	LoadedAt time.Time `json:"-"`
	// FileModTime is the modification time of the .flowdeckrc file when
	// loaded. Used to detect file changes efficiently.
	FileModTime time.Time `json:"-"`
}

// rawWorkspaceRC is used for YAML unmarshaling of workspace .flowdeckrc
// files. It uses a permissive structure to ignore unsupported sections.
type rawWorkspaceRC struct {
	AgentCommand string `yaml:"agent_command"`
	DefaultModel string `yaml:"default_model"`
}

// LoadWorkspaceRC loads the .flowdeckrc file from a workspace directory.
// Returns nil if the file doesn't exist or is empty.
// Returns an error only if the file exists but cannot be parsed.
func LoadWorkspaceRC(workspaceDir string) (*WorkspaceRC, error) {
	if workspaceDir == "" {
		return nil, nil
	}

	rcPath := filepath.Join(workspaceDir, WorkspaceRCFileName)

	info, err := os.Stat(rcPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Skip empty files
	if info.Size() == 0 {
		return nil, nil
	}

	data, err := os.ReadFile(rcPath)
	if err != nil {
		return nil, err
	}

	var raw rawWorkspaceRC
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	return &WorkspaceRC{
		AgentCommand: raw.AgentCommand,
		DefaultModel: raw.DefaultModel,
		LoadedAt:     time.Now(),
		FileModTime:  info.ModTime(),
	}, nil
}

// Merge applies the workspace overrides on top of the global settings,
// returning the effective settings for one workspace. The receiver and the
// argument are not modified.
func (rc *WorkspaceRC) Merge(base *Settings) *Settings {
	merged := *base
	if rc == nil {
		return &merged
	}
	if rc.AgentCommand != "" {
		merged.AgentCommand = rc.AgentCommand
	}
	if rc.DefaultModel != "" {
		merged.DefaultModel = rc.DefaultModel
	}
	return &merged
}

// EffectiveSettings loads the workspace RC (if any) and merges it over the
// global settings. A malformed RC file degrades to the global settings.
func EffectiveSettings(base *Settings, workspaceDir string) *Settings {
	rc, err := LoadWorkspaceRC(workspaceDir)
	if err != nil {
		rc = nil
	}
	return rc.Merge(base)
}
