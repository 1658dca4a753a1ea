package acp

// protocolVersion is the ACP protocol version this client declares.
const protocolVersion = 1

// permissionMode requests non-interactive execution; the agent is expected
// not to block on approvals beyond the permission callback.
const permissionMode = "yolo"

type fsCapability struct {
	ReadTextFile  bool `json:"readTextFile"`
	WriteTextFile bool `json:"writeTextFile"`
}

type clientCapabilities struct {
	Fs fsCapability `json:"fs"`
}

type initializeParams struct {
	ProtocolVersion    int                `json:"protocolVersion"`
	ClientCapabilities clientCapabilities `json:"clientCapabilities"`
	McpServers         []string           `json:"mcpServers"`
}

type sessionSettings struct {
	PermissionMode string `json:"permission_mode"`
}

type sessionNewParams struct {
	Cwd        string          `json:"cwd"`
	McpServers []string        `json:"mcpServers"`
	Settings   sessionSettings `json:"settings"`
}

type sessionLoadParams struct {
	Cwd        string          `json:"cwd"`
	SessionID  string          `json:"sessionId"`
	McpServers []string        `json:"mcpServers"`
	Settings   sessionSettings `json:"settings"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type promptParams struct {
	SessionID string         `json:"sessionId"`
	Prompt    []contentBlock `json:"prompt"`
}

type cancelParams struct {
	SessionID string `json:"sessionId"`
}

type setModelParams struct {
	SessionID string `json:"sessionId"`
	ModelID   string `json:"modelId"`
}

func buildInitializeParams() initializeParams {
	return initializeParams{
		ProtocolVersion: protocolVersion,
		ClientCapabilities: clientCapabilities{
			Fs: fsCapability{ReadTextFile: true, WriteTextFile: true},
		},
		McpServers: []string{},
	}
}

func buildSessionNewParams(workspace string) sessionNewParams {
	return sessionNewParams{
		Cwd:        workspace,
		McpServers: []string{},
		Settings:   sessionSettings{PermissionMode: permissionMode},
	}
}

func buildSessionLoadParams(workspace, sessionID string) sessionLoadParams {
	return sessionLoadParams{
		Cwd:        workspace,
		SessionID:  sessionID,
		McpServers: []string{},
		Settings:   sessionSettings{PermissionMode: permissionMode},
	}
}

func buildPromptParams(sessionID, prompt string) promptParams {
	return promptParams{
		SessionID: sessionID,
		Prompt:    []contentBlock{{Type: "text", Text: prompt}},
	}
}
