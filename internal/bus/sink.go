package bus

import (
	"encoding/json"

	"github.com/flowdeck/flowdeck/internal/acp"
)

// Event names published by the adapter sink.
const (
	EventStreamMessage   = "stream-message"
	EventToolCall        = "tool-call"
	EventAgentError      = "agent-error"
	EventTaskFinish      = "task-finish"
	EventCommandRegistry = "command-registry"
	EventModelRegistry   = "model-registry"
)

// StreamMessagePayload is the body of a stream-message event.
type StreamMessagePayload struct {
	AgentID string `json:"agentId"`
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

// ToolCallPayload is the body of a tool-call event.
type ToolCallPayload struct {
	AgentID   string          `json:"agentId"`
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Status    string          `json:"status"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// AgentErrorPayload is the body of an agent-error event.
type AgentErrorPayload struct {
	AgentID string `json:"agentId"`
	Message string `json:"message"`
}

// TaskFinishPayload is the body of a task-finish event.
type TaskFinishPayload struct {
	AgentID string `json:"agentId"`
	Reason  string `json:"reason"`
}

// CommandRegistryPayload is the body of a command-registry event.
type CommandRegistryPayload struct {
	AgentID    string              `json:"agentId"`
	Commands   []acp.CommandInfo   `json:"commands"`
	McpServers []acp.McpServerInfo `json:"mcpServers"`
}

// ModelRegistryPayload is the body of a model-registry event.
type ModelRegistryPayload struct {
	AgentID      string            `json:"agentId"`
	Models       []acp.ModelOption `json:"models"`
	CurrentModel string            `json:"currentModel"`
}

// Sink publishes adapter events onto a Bus. It implements acp.EventSink.
type Sink struct {
	bus *Bus
}

var _ acp.EventSink = (*Sink)(nil)

// NewSink creates a sink publishing to the given bus.
func NewSink(bus *Bus) *Sink {
	return &Sink{bus: bus}
}

func (s *Sink) StreamMessage(agentID, content, kind string) {
	s.bus.Publish(Event{Name: EventStreamMessage, Payload: StreamMessagePayload{
		AgentID: agentID,
		Content: content,
		Kind:    kind,
	}})
}

func (s *Sink) ToolCall(agentID string, call acp.ToolCall) {
	s.bus.Publish(Event{Name: EventToolCall, Payload: ToolCallPayload{
		AgentID:   agentID,
		ID:        call.ID,
		Name:      call.Name,
		Status:    call.Status,
		Arguments: call.Arguments,
		Output:    call.Output,
	}})
}

func (s *Sink) AgentError(agentID, message string) {
	s.bus.Publish(Event{Name: EventAgentError, Payload: AgentErrorPayload{
		AgentID: agentID,
		Message: message,
	}})
}

func (s *Sink) TaskFinish(agentID, reason string) {
	s.bus.Publish(Event{Name: EventTaskFinish, Payload: TaskFinishPayload{
		AgentID: agentID,
		Reason:  reason,
	}})
}

func (s *Sink) CommandRegistry(agentID string, commands []acp.CommandInfo, servers []acp.McpServerInfo) {
	s.bus.Publish(Event{Name: EventCommandRegistry, Payload: CommandRegistryPayload{
		AgentID:    agentID,
		Commands:   commands,
		McpServers: servers,
	}})
}

func (s *Sink) ModelRegistry(agentID string, models []acp.ModelOption, currentModel string) {
	s.bus.Publish(Event{Name: EventModelRegistry, Payload: ModelRegistryPayload{
		AgentID:      agentID,
		Models:       models,
		CurrentModel: currentModel,
	}})
}
