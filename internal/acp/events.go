package acp

import "encoding/json"

// Stream message kinds attached to StreamMessage events.
const (
	StreamKindContent = "content"
	StreamKindThought = "thought"
	StreamKindPlan    = "plan"
	StreamKindSystem  = "system"
)

// ToolCall describes one tool invocation reported by the agent, flattened
// from a tool_call or tool_call_update session update.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// CommandInfo is one entry of the agent's slash-command registry.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Scope       string `json:"scope"`
}

// McpServerInfo is one entry of the agent's MCP server registry.
type McpServerInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ModelOption is one selectable model advertised by the agent.
type ModelOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// EventSink receives the application-facing events the adapter emits.
// Implementations must be safe to call from the adapter goroutine.
type EventSink interface {
	// StreamMessage delivers streamed content; kind is one of the
	// StreamKind constants.
	StreamMessage(agentID, content, kind string)
	// ToolCall delivers a tool-call creation or status update.
	ToolCall(agentID string, call ToolCall)
	// AgentError reports a protocol or connection failure to the user.
	AgentError(agentID, message string)
	// TaskFinish reports that a prompt turn ended, with its stop reason.
	TaskFinish(agentID, reason string)
	// CommandRegistry delivers the agent's slash-command and MCP server
	// registries.
	CommandRegistry(agentID string, commands []CommandInfo, servers []McpServerInfo)
	// ModelRegistry delivers the selectable models and the active model.
	ModelRegistry(agentID string, models []ModelOption, currentModel string)
}

// stopReasonMessage maps a protocol stop reason to the status line shown to
// the user when a turn ends abnormally.
func stopReasonMessage(reason string) string {
	switch reason {
	case "end_turn":
		return "Task completed"
	case "max_tokens":
		return "Maximum token limit reached"
	case "cancelled":
		return "Task cancelled"
	case "refusal":
		return "Model refused to answer"
	default:
		return "Task finished"
	}
}

// emitTaskFinish reports turn completion. end_turn is the common normal
// ending and gets no extra status line in the content stream.
func emitTaskFinish(sink EventSink, agentID, reason string) {
	if reason != "end_turn" {
		sink.StreamMessage(agentID, stopReasonMessage(reason), StreamKindSystem)
	}
	sink.TaskFinish(agentID, reason)
}
