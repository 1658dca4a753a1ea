// Package history reads the session transcripts the iFlow agent writes
// under its projects directory. Transcripts are JSONL files, one record per
// line, stored per workspace in a directory named after the workspace path.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SessionFilePrefix and SessionFileSuffix delimit transcript file names.
const (
	SessionFilePrefix = "session-"
	SessionFileSuffix = ".jsonl"
)

// titleMaxLen is the character budget for session titles in listings.
const titleMaxLen = 28

// Session summarizes one stored transcript.
type Session struct {
	SessionID    string `json:"sessionId"`
	Title        string `json:"title"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	MessageCount int    `json:"messageCount"`
}

// Message is one displayable entry of a transcript.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Store reads transcripts below one projects root.
type Store struct {
	// Root is the iFlow projects directory.
	Root string
}

// DefaultRoot returns the agent's default projects directory,
// $HOME/.iflow/projects.
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".iflow", "projects"), nil
}

// NewStore creates a store. An empty root selects DefaultRoot.
func NewStore(root string) (*Store, error) {
	if root == "" {
		var err error
		root, err = DefaultRoot()
		if err != nil {
			return nil, err
		}
	}
	return &Store{Root: root}, nil
}

// NormalizeWorkspacePath canonicalizes a workspace path for comparison:
// backslashes become slashes and trailing slashes are stripped.
func NormalizeWorkspacePath(workspacePath string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(workspacePath), "\\", "/")
	for len(normalized) > 1 && strings.HasSuffix(normalized, "/") {
		normalized = normalized[:len(normalized)-1]
	}
	return normalized
}

// workspaceProjectKey maps a workspace path to the agent's project directory
// name: separators become dashes and the key always starts with a dash.
func workspaceProjectKey(workspacePath string) string {
	normalized := NormalizeWorkspacePath(workspacePath)
	key := strings.ReplaceAll(normalized, "/", "-")
	key = strings.ReplaceAll(key, ":", "-")
	if !strings.HasPrefix(key, "-") {
		key = "-" + key
	}
	return key
}

// resolveWorkspace returns the comparison form of the workspace path,
// following symlinks when the path exists.
func resolveWorkspace(workspacePath string) string {
	if resolved, err := filepath.EvalSymlinks(workspacePath); err == nil {
		if abs, err := filepath.Abs(resolved); err == nil {
			return NormalizeWorkspacePath(abs)
		}
	}
	return NormalizeWorkspacePath(workspacePath)
}

// projectDirs lists the candidate project directories for a workspace. The
// raw and resolved paths can map to different keys, e.g. through symlinks.
func (s *Store) projectDirs(workspacePath, resolved string) []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, path := range []string{workspacePath, resolved} {
		key := workspaceProjectKey(path)
		if !seen[key] {
			seen[key] = true
			dirs = append(dirs, filepath.Join(s.Root, key))
		}
	}
	return dirs
}

// NormalizeSessionID validates and canonicalizes a session id: surrounding
// whitespace and a trailing .jsonl are stripped, and the id must carry the
// session- prefix.
func NormalizeSessionID(sessionID string) (string, error) {
	normalized := strings.TrimSuffix(strings.TrimSpace(sessionID), SessionFileSuffix)
	if normalized == "" {
		return "", fmt.Errorf("session id cannot be empty")
	}
	if !strings.HasPrefix(normalized, SessionFilePrefix) {
		return "", fmt.Errorf("invalid session id format %q", sessionID)
	}
	return normalized, nil
}

// ListSessions returns the summaries of all transcripts belonging to the
// workspace, newest first. Transcripts recorded under a different working
// directory are skipped.
func (s *Store) ListSessions(workspacePath string) ([]Session, error) {
	resolved := resolveWorkspace(workspacePath)

	seen := make(map[string]bool)
	var sessions []Session
	for _, dir := range s.projectDirs(workspacePath, resolved) {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open project dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, SessionFilePrefix) || !strings.HasSuffix(name, SessionFileSuffix) {
				continue
			}
			sessionID := strings.TrimSuffix(name, SessionFileSuffix)
			if seen[sessionID] {
				continue
			}
			seen[sessionID] = true

			summary, err := s.parseSummary(filepath.Join(dir, name), sessionID, resolved)
			if err != nil || summary == nil {
				continue
			}
			sessions = append(sessions, *summary)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt > sessions[j].UpdatedAt
	})
	return sessions, nil
}

// LoadMessages returns the displayable messages of one transcript.
func (s *Store) LoadMessages(workspacePath, sessionID string) ([]Message, error) {
	normalized, err := NormalizeSessionID(sessionID)
	if err != nil {
		return nil, err
	}
	resolved := resolveWorkspace(workspacePath)

	for _, dir := range s.projectDirs(workspacePath, resolved) {
		path := filepath.Join(dir, normalized+SessionFileSuffix)
		info, err := os.Stat(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		return s.parseMessages(path, normalized, resolved)
	}

	return nil, fmt.Errorf("session file not found for %s under workspace %s", normalized, resolved)
}

// DeleteSession removes one transcript. Returns false when no file existed.
func (s *Store) DeleteSession(workspacePath, sessionID string) (bool, error) {
	normalized, err := NormalizeSessionID(sessionID)
	if err != nil {
		return false, err
	}
	resolved := resolveWorkspace(workspacePath)

	for _, dir := range s.projectDirs(workspacePath, resolved) {
		path := filepath.Join(dir, normalized+SessionFileSuffix)
		err := os.Remove(path)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			continue
		}
		return false, fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return false, nil
}

// ClearSessions removes every transcript of the workspace and returns how
// many files were deleted.
func (s *Store) ClearSessions(workspacePath string) (int, error) {
	resolved := resolveWorkspace(workspacePath)

	deleted := 0
	for _, dir := range s.projectDirs(workspacePath, resolved) {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return deleted, fmt.Errorf("failed to open project dir %s: %w", dir, err)
		}

		for _, entry := range entries {
			name := entry.Name()
			if !strings.HasPrefix(name, SessionFilePrefix) || !strings.HasSuffix(name, SessionFileSuffix) {
				continue
			}
			path := filepath.Join(dir, name)
			if err := os.Remove(path); err != nil {
				return deleted, fmt.Errorf("failed to delete %s: %w", path, err)
			}
			deleted++
		}
	}
	return deleted, nil
}

// parseSummary builds a session summary from a transcript file. Returns nil
// when the transcript belongs to a different workspace.
func (s *Store) parseSummary(path, sessionID, workspace string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fallbackTS := time.Now().UTC().Format(time.RFC3339)
	if info, err := os.Stat(path); err == nil {
		fallbackTS = info.ModTime().UTC().Format(time.RFC3339)
	}

	var createdAt, updatedAt, title string
	messageCount := 0
	hasCwd := false
	workspaceMatches := false

	for _, line := range strings.Split(string(data), "\n") {
		record, recordType, ok := parseRecord(line)
		if !ok {
			continue
		}
		if recordType != "user" && recordType != "assistant" {
			continue
		}

		if cwd, ok := recordCwd(record); ok {
			hasCwd = true
			if cwd == workspace {
				workspaceMatches = true
			}
		}

		content, ok := messageContent(record)
		if !ok {
			continue
		}

		messageCount++

		if ts, ok := recordTimestamp(record); ok {
			if createdAt == "" {
				createdAt = ts
			}
			updatedAt = ts
		}

		if title == "" && recordType == "user" {
			title = content
		}
	}

	if hasCwd && !workspaceMatches {
		return nil, nil
	}

	if createdAt == "" {
		createdAt = fallbackTS
	}
	if updatedAt == "" {
		updatedAt = fallbackTS
	}
	if title == "" {
		title = sessionID
	}

	return &Session{
		SessionID:    sessionID,
		Title:        compactTitle(title),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
		MessageCount: messageCount,
	}, nil
}

// parseMessages extracts the displayable messages of a transcript.
func (s *Store) parseMessages(path, sessionID, workspace string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var messages []Message
	hasCwd := false
	workspaceMatches := false

	for index, line := range strings.Split(string(data), "\n") {
		record, recordType, ok := parseRecord(line)
		if !ok {
			continue
		}
		if recordType != "user" && recordType != "assistant" {
			continue
		}

		if cwd, ok := recordCwd(record); ok {
			hasCwd = true
			if cwd == workspace {
				workspaceMatches = true
			}
		}

		content, ok := messageContent(record)
		if !ok {
			continue
		}

		timestamp, ok := recordTimestamp(record)
		if !ok {
			timestamp = time.Now().UTC().Format(time.RFC3339)
		}

		id, _ := record["uuid"].(string)
		if id == "" {
			id = fmt.Sprintf("%s-%d", sessionID, index)
		}

		messages = append(messages, Message{
			ID:        id,
			Role:      recordType,
			Content:   content,
			Timestamp: timestamp,
		})
	}

	if hasCwd && !workspaceMatches {
		return nil, fmt.Errorf("session %s does not belong to workspace %s", sessionID, workspace)
	}
	return messages, nil
}

// parseRecord decodes one JSONL line, returning the record and its type.
func parseRecord(line string) (map[string]any, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, "", false
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(trimmed), &record); err != nil {
		return nil, "", false
	}
	recordType, _ := record["type"].(string)
	return record, strings.TrimSpace(recordType), true
}

func recordCwd(record map[string]any) (string, bool) {
	cwd, ok := record["cwd"].(string)
	if !ok {
		return "", false
	}
	return NormalizeWorkspacePath(cwd), true
}

func recordTimestamp(record map[string]any) (string, bool) {
	ts, ok := record["timestamp"].(string)
	if !ok {
		return "", false
	}
	ts = strings.TrimSpace(ts)
	return ts, ts != ""
}

// messageContent extracts the textual content of a record. Records whose
// content carries structured tool entries are dropped entirely so tool
// orchestration logs never pollute the displayed history.
func messageContent(record map[string]any) (string, bool) {
	message, ok := record["message"].(map[string]any)
	if !ok {
		return "", false
	}
	content, ok := message["content"]
	if !ok {
		return "", false
	}

	if hasStructuredToolEntries(content) {
		return "", false
	}

	text, ok := extractTextEntriesOnly(content)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// hasStructuredToolEntries reports whether a content array contains
// tool_use or tool_result entries.
func hasStructuredToolEntries(value any) bool {
	items, ok := value.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if kind, ok := entry["type"].(string); ok && (kind == "tool_use" || kind == "tool_result") {
			return true
		}
	}
	return false
}

// extractTextValue renders a dynamic value as text: strings pass through,
// arrays join their parts, objects contribute their text or content field.
func extractTextValue(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case []any:
		var parts []string
		for _, item := range v {
			if text, ok := extractTextValue(item); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	case map[string]any:
		if text, ok := extractTextValue(v["text"]); ok {
			return text, true
		}
		return extractTextValue(v["content"])
	default:
		return "", false
	}
}

// extractTextEntriesOnly is like extractTextValue but only accepts entries
// explicitly typed "text", skipping every other structured entry kind.
func extractTextEntriesOnly(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		return trimmed, trimmed != ""
	case []any:
		var parts []string
		for _, item := range v {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			kind, ok := entry["type"].(string)
			if !ok || kind != "text" {
				continue
			}
			if text, ok := extractTextValue(entry["text"]); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", false
		}
		return strings.Join(parts, "\n"), true
	case map[string]any:
		if kind, ok := v["type"].(string); ok {
			if kind != "text" {
				return "", false
			}
			return extractTextValue(v["text"])
		}
		if text, ok := extractTextValue(v["text"]); ok {
			return text, true
		}
		return extractTextEntriesOnly(v["content"])
	default:
		return "", false
	}
}

// compactTitle flattens a title to a single trimmed line, truncating long
// titles with an ellipsis.
func compactTitle(raw string) string {
	normalized := strings.ReplaceAll(raw, "\n", " ")
	normalized = strings.ReplaceAll(normalized, "\r", " ")
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return "iFlow session"
	}
	runes := []rune(normalized)
	if len(runes) <= titleMaxLen {
		return normalized
	}
	return string(runes[:titleMaxLen]) + "..."
}
