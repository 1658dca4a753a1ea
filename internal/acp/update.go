package acp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// sessionUpdateEnvelope is the params shape of a session/update notification.
type sessionUpdateEnvelope struct {
	Update json.RawMessage `json:"update"`
}

// sessionUpdate is the discriminated payload inside a session/update
// notification. Which fields are populated depends on SessionUpdate.
type sessionUpdate struct {
	SessionUpdate string          `json:"sessionUpdate"`
	Content       json.RawMessage `json:"content"`
	Entries       []planEntry     `json:"entries"`
	ToolCallID    string          `json:"toolCallId"`
	ToolName      string          `json:"toolName"`
	Title         string          `json:"title"`
	Status        string          `json:"status"`
	Args          json.RawMessage `json:"args"`
}

type planEntry struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

// handleSessionUpdate translates one session/update payload into sink
// events. Unknown discriminators are logged and dropped; user message
// echoes are suppressed.
func handleSessionUpdate(sink EventSink, logger *slog.Logger, agentID string, raw json.RawMessage) {
	var update sessionUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		if logger != nil {
			logger.Debug("malformed session update", "error", err)
		}
		return
	}

	switch update.SessionUpdate {
	case "agent_message_chunk":
		if content, ok := textFromContent(update.Content); ok {
			sink.StreamMessage(agentID, content, StreamKindContent)
		}
	case "agent_thought_chunk":
		if content, ok := textFromContent(update.Content); ok {
			sink.StreamMessage(agentID, content, StreamKindThought)
		}
	case "tool_call", "tool_call_update":
		name := update.ToolName
		if name == "" {
			name = update.Title
		}
		status := update.Status
		if status == "" {
			status = "pending"
		}
		output, _ := textFromToolContents(update.Content)
		sink.ToolCall(agentID, ToolCall{
			ID:        update.ToolCallID,
			Name:      name,
			Status:    status,
			Arguments: update.Args,
			Output:    output,
		})
	case "plan":
		var lines []string
		for _, entry := range update.Entries {
			lines = append(lines, fmt.Sprintf("[%s] %s", entry.Status, entry.Content))
		}
		if len(lines) > 0 {
			sink.StreamMessage(agentID, "Plan:\n"+strings.Join(lines, "\n"), StreamKindPlan)
		}
	case "user_message_chunk":
		// Echo of the user's own prompt; dropped.
	default:
		if logger != nil {
			logger.Debug("unhandled session update type", "type", update.SessionUpdate)
		}
	}
}

// textFromContent extracts the display text of one content block. Blocks of
// type "text" yield their text; other block types are rendered as their raw
// JSON so nothing is silently lost.
func textFromContent(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var block struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &block); err != nil || block.Type == "" {
		return "", false
	}
	if block.Type == "text" {
		return block.Text, true
	}
	return string(raw), true
}

// textFromToolContents flattens a tool call's content entries into one
// textual rendering. "content" entries contribute their block text; "diff"
// entries contribute a "[diff] <path>" marker.
func textFromToolContents(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var items []struct {
		Type    string          `json:"type"`
		Content json.RawMessage `json:"content"`
		Path    string          `json:"path"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return "", false
	}

	var texts []string
	for _, item := range items {
		switch item.Type {
		case "content":
			if text, ok := textFromContent(item.Content); ok {
				texts = append(texts, text)
			}
		case "diff":
			if item.Path != "" {
				texts = append(texts, "[diff] "+item.Path)
			}
		}
	}
	if len(texts) == 0 {
		return "", false
	}
	return strings.Join(texts, "\n"), true
}
