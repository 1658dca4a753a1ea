package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeTranscript creates a transcript for the workspace under the store
// root, returning the session id.
func writeTranscript(t *testing.T, root, workspace, sessionID string, lines []string) string {
	t.Helper()
	dir := filepath.Join(root, workspaceProjectKey(workspace))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, sessionID+SessionFileSuffix)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return sessionID
}

func userLine(cwd, text, ts string) string {
	return fmt.Sprintf(`{"type":"user","cwd":%q,"timestamp":%q,"message":{"content":[{"type":"text","text":%q}]}}`, cwd, ts, text)
}

func assistantLine(cwd, text, ts string) string {
	return fmt.Sprintf(`{"type":"assistant","cwd":%q,"timestamp":%q,"message":{"content":[{"type":"text","text":%q}]}}`, cwd, ts, text)
}

func TestNormalizeWorkspacePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/user/project", "/home/user/project"},
		{"/home/user/project/", "/home/user/project"},
		{"/home/user/project///", "/home/user/project"},
		{`C:\Users\dev\project`, "C:/Users/dev/project"},
		{"  /spaced/path  ", "/spaced/path"},
		{"/", "/"},
	}
	for _, tt := range tests {
		if got := NormalizeWorkspacePath(tt.in); got != tt.want {
			t.Errorf("NormalizeWorkspacePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWorkspaceProjectKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/user/project", "-home-user-project"},
		{"C:/Users/dev", "-C--Users-dev"},
		{"relative/path", "-relative-path"},
	}
	for _, tt := range tests {
		if got := workspaceProjectKey(tt.in); got != tt.want {
			t.Errorf("workspaceProjectKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeSessionID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"session-abc", "session-abc", false},
		{"session-abc.jsonl", "session-abc", false},
		{"  session-abc  ", "session-abc", false},
		{"", "", true},
		{"   ", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeSessionID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeSessionID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeSessionID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListSessions(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	writeTranscript(t, root, workspace, "session-old", []string{
		userLine(workspace, "first question", "2026-01-01T10:00:00Z"),
		assistantLine(workspace, "first answer", "2026-01-01T10:00:05Z"),
	})
	writeTranscript(t, root, workspace, "session-new", []string{
		userLine(workspace, "second question", "2026-02-01T10:00:00Z"),
	})

	sessions, err := store.ListSessions(workspace)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	// Newest first.
	if sessions[0].SessionID != "session-new" {
		t.Errorf("sessions[0] = %q, want session-new", sessions[0].SessionID)
	}
	if sessions[1].SessionID != "session-old" {
		t.Errorf("sessions[1] = %q", sessions[1].SessionID)
	}

	old := sessions[1]
	if old.Title != "first question" {
		t.Errorf("title = %q", old.Title)
	}
	if old.MessageCount != 2 {
		t.Errorf("message count = %d, want 2", old.MessageCount)
	}
	if old.CreatedAt != "2026-01-01T10:00:00Z" || old.UpdatedAt != "2026-01-01T10:00:05Z" {
		t.Errorf("timestamps = %q / %q", old.CreatedAt, old.UpdatedAt)
	}
}

func TestListSessions_SkipsOtherWorkspaces(t *testing.T) {
	root := t.TempDir()
	store := &Store{Root: root}

	// A transcript filed under this workspace's key but recorded in a
	// different cwd must not be listed.
	writeTranscript(t, root, "/work/alpha", "session-foreign", []string{
		userLine("/work/beta", "hello", "2026-01-01T10:00:00Z"),
	})

	sessions, err := store.ListSessions("/work/alpha")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %+v, want none", sessions)
	}
}

func TestListSessions_MissingDir(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	sessions, err := store.ListSessions("/work/nothing")
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestListSessions_LongTitleCompacted(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	long := strings.Repeat("x", 50)
	writeTranscript(t, root, workspace, "session-long", []string{
		userLine(workspace, long, "2026-01-01T10:00:00Z"),
	})

	sessions, err := store.ListSessions(workspace)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("sessions = %+v, err = %v", sessions, err)
	}
	want := strings.Repeat("x", titleMaxLen) + "..."
	if sessions[0].Title != want {
		t.Errorf("title = %q, want %q", sessions[0].Title, want)
	}
}

func TestLoadMessages(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	writeTranscript(t, root, workspace, "session-a", []string{
		userLine(workspace, "question", "2026-01-01T10:00:00Z"),
		`{"type":"assistant","cwd":"/work/alpha","timestamp":"2026-01-01T10:00:05Z","uuid":"msg-42","message":{"content":[{"type":"text","text":"answer"}]}}`,
		// Tool orchestration records are filtered out.
		`{"type":"assistant","cwd":"/work/alpha","message":{"content":[{"type":"tool_use","name":"read_file"}]}}`,
		`{"type":"user","cwd":"/work/alpha","message":{"content":[{"type":"tool_result","output":"..."}]}}`,
		// Non-conversation records are skipped.
		`{"type":"summary","summary":"irrelevant"}`,
	})

	messages, err := store.LoadMessages(workspace, "session-a")
	if err != nil {
		t.Fatalf("LoadMessages failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(messages), messages)
	}

	if messages[0].Role != "user" || messages[0].Content != "question" {
		t.Errorf("messages[0] = %+v", messages[0])
	}
	// Index-based fallback id for records without a uuid.
	if messages[0].ID != "session-a-0" {
		t.Errorf("messages[0].ID = %q", messages[0].ID)
	}
	if messages[1].ID != "msg-42" {
		t.Errorf("messages[1].ID = %q, want uuid", messages[1].ID)
	}
	if messages[1].Role != "assistant" || messages[1].Content != "answer" {
		t.Errorf("messages[1] = %+v", messages[1])
	}
}

func TestLoadMessages_AcceptsJSONLSuffix(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	writeTranscript(t, root, workspace, "session-a", []string{
		userLine(workspace, "hi", "2026-01-01T10:00:00Z"),
	})

	messages, err := store.LoadMessages(workspace, "session-a.jsonl")
	if err != nil || len(messages) != 1 {
		t.Errorf("LoadMessages = (%+v, %v)", messages, err)
	}
}

func TestLoadMessages_WrongWorkspace(t *testing.T) {
	root := t.TempDir()
	store := &Store{Root: root}

	writeTranscript(t, root, "/work/alpha", "session-a", []string{
		userLine("/work/beta", "hi", "2026-01-01T10:00:00Z"),
	})

	if _, err := store.LoadMessages("/work/alpha", "session-a"); err == nil {
		t.Error("expected error for workspace mismatch")
	}
}

func TestLoadMessages_NotFound(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	if _, err := store.LoadMessages("/work/alpha", "session-missing"); err == nil {
		t.Error("expected error for missing session")
	}
}

func TestLoadMessages_InvalidID(t *testing.T) {
	store := &Store{Root: t.TempDir()}
	if _, err := store.LoadMessages("/work/alpha", "not-a-session"); err == nil {
		t.Error("expected error for invalid session id")
	}
}

func TestDeleteSession(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	writeTranscript(t, root, workspace, "session-a", []string{
		userLine(workspace, "hi", "2026-01-01T10:00:00Z"),
	})

	deleted, err := store.DeleteSession(workspace, "session-a")
	if err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if !deleted {
		t.Error("deleted = false, want true")
	}

	// Second delete finds nothing.
	deleted, err = store.DeleteSession(workspace, "session-a")
	if err != nil {
		t.Fatalf("second DeleteSession failed: %v", err)
	}
	if deleted {
		t.Error("deleted = true for missing file")
	}
}

func TestClearSessions(t *testing.T) {
	root := t.TempDir()
	workspace := "/work/alpha"
	store := &Store{Root: root}

	writeTranscript(t, root, workspace, "session-a", []string{userLine(workspace, "a", "2026-01-01T10:00:00Z")})
	writeTranscript(t, root, workspace, "session-b", []string{userLine(workspace, "b", "2026-01-01T11:00:00Z")})

	// A non-transcript file in the project dir survives.
	other := filepath.Join(root, workspaceProjectKey(workspace), "notes.txt")
	if err := os.WriteFile(other, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}

	count, err := store.ClearSessions(workspace)
	if err != nil {
		t.Fatalf("ClearSessions failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestCompactTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"multi\nline\rtitle", "multi line title"},
		{"", "iFlow session"},
		{"   ", "iFlow session"},
	}
	for _, tt := range tests {
		if got := compactTitle(tt.in); got != tt.want {
			t.Errorf("compactTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
