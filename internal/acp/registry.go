package acp

import (
	"encoding/json"
	"strings"
)

// Registry payloads arrive in session/new and session/load results and,
// for some agents, inside session/update payloads. Their shape varies by
// agent release: entries may sit at the top level or under "_meta", and
// field names differ between versions, so extraction probes dynamically.

// registryArray returns the array under key, looking at the payload's top
// level first and falling back to its "_meta" object.
func registryArray(payload map[string]any, key string) []any {
	if arr, ok := payload[key].([]any); ok {
		return arr
	}
	if meta, ok := payload["_meta"].(map[string]any); ok {
		if arr, ok := meta[key].([]any); ok {
			return arr
		}
	}
	return nil
}

// registryObject is like registryArray for object-valued keys.
func registryObject(payload map[string]any, key string) map[string]any {
	if obj, ok := payload[key].(map[string]any); ok {
		return obj
	}
	if meta, ok := payload["_meta"].(map[string]any); ok {
		if obj, ok := meta[key].(map[string]any); ok {
			return obj
		}
	}
	return nil
}

// textFromValue renders a dynamic JSON value as display text: strings pass
// through trimmed, arrays join their textual elements, objects contribute
// their "text" field.
func textFromValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		var parts []string
		for _, item := range v {
			if text := textFromValue(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, " ")
	case map[string]any:
		return textFromValue(v["text"])
	default:
		return ""
	}
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// commandEntries normalizes the availableCommands registry. Command names
// are canonicalized to a leading slash.
func commandEntries(payload map[string]any) []CommandInfo {
	var commands []CommandInfo
	for _, raw := range registryArray(payload, "availableCommands") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(entry, "name")
		if name == "" {
			continue
		}
		if !strings.HasPrefix(name, "/") {
			name = "/" + name
		}

		scope := ""
		if meta, ok := entry["_meta"].(map[string]any); ok {
			scope = stringField(meta, "scope")
		}
		commands = append(commands, CommandInfo{
			Name:        name,
			Description: textFromValue(entry["description"]),
			Scope:       scope,
		})
	}
	return commands
}

// mcpServerEntries normalizes the availableMcpServers registry.
func mcpServerEntries(payload map[string]any) []McpServerInfo {
	var servers []McpServerInfo
	for _, raw := range registryArray(payload, "availableMcpServers") {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name := stringField(entry, "name", "id")
		if name == "" {
			continue
		}
		servers = append(servers, McpServerInfo{
			Name:        name,
			Description: textFromValue(entry["description"]),
		})
	}
	return servers
}

// modelRegistry extracts the selectable models and active model id from a
// payload's "models" node. Returns ok=false when the payload carries no
// model information at all.
func modelRegistry(payload map[string]any) (models []ModelOption, current string, ok bool) {
	node := registryObject(payload, "models")
	if node == nil {
		return nil, "", false
	}

	current = stringField(node, "currentModelId")

	available, _ := node["availableModels"].([]any)
	for _, raw := range available {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		value := stringField(entry, "value", "id")
		if value == "" {
			continue
		}
		label := stringField(entry, "label", "name")
		if label == "" {
			label = value
		}
		models = append(models, ModelOption{Label: label, Value: value})
	}

	if len(models) == 0 && current == "" {
		return nil, "", false
	}
	return models, current, true
}

// emitRegistries forwards any command/MCP/model registry content of a
// payload to the sink. Payloads without registry content emit nothing.
func emitRegistries(sink EventSink, agentID string, raw json.RawMessage) {
	payload := decodeObject(raw)
	if payload == nil {
		return
	}

	commands := commandEntries(payload)
	servers := mcpServerEntries(payload)
	if len(commands) > 0 || len(servers) > 0 {
		sink.CommandRegistry(agentID, commands, servers)
	}

	if models, current, ok := modelRegistry(payload); ok {
		sink.ModelRegistry(agentID, models, current)
	}
}

// emitRegistriesFromUpdate checks a session/update payload and its nested
// content block for registry announcements.
func emitRegistriesFromUpdate(sink EventSink, agentID string, raw json.RawMessage) {
	payload := decodeObject(raw)
	if payload == nil {
		return
	}

	commands := commandEntries(payload)
	servers := mcpServerEntries(payload)
	if content, ok := payload["content"].(map[string]any); ok {
		commands = append(commands, commandEntries(content)...)
		servers = append(servers, mcpServerEntries(content)...)
	}
	if len(commands) > 0 || len(servers) > 0 {
		sink.CommandRegistry(agentID, commands, servers)
	}
}

func decodeObject(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil
	}
	return payload
}
