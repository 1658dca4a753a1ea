package acp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newCallbackConn(t *testing.T) (*conn, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c := &conn{
		t:      tr,
		logger: discardLogger(),
		fs:     DefaultFileSystem,
	}
	return c, tr
}

// lastResponse decodes the single response the conn sent.
func lastResponse(t *testing.T, tr *fakeTransport) (result json.RawMessage, rpcErr *RPCError) {
	t.Helper()
	sent := tr.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("sent %d messages, want 1: %v", len(sent), sent)
	}
	var msg struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal([]byte(sent[0]), &msg); err != nil {
		t.Fatalf("response not valid JSON: %v", err)
	}
	return msg.Result, msg.Error
}

func TestHandleServerRequest_PermissionAutoApproved(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(1, "session/request_permission", json.RawMessage(`{"options":[{"optionId":"allow_once"}]}`))

	result, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	var decoded permissionResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if decoded.Outcome.Outcome != "selected" || decoded.Outcome.OptionID != "allow_once" {
		t.Errorf("outcome = %+v", decoded.Outcome)
	}
}

func TestHandleServerRequest_ReadTextFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("line one\nline two"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, tr := newCallbackConn(t)
	params, _ := json.Marshal(map[string]any{"path": path, "sessionId": "s-1"})
	c.handleServerRequest(2, "fs/read_text_file", params)

	result, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	var decoded readTextFileResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if decoded.Content != "line one\nline two" {
		t.Errorf("content = %q", decoded.Content)
	}
	if decoded.Path != path || decoded.SessionID != "s-1" {
		t.Errorf("echoed fields = %+v", decoded)
	}
}

func TestHandleServerRequest_ReadMissingFile(t *testing.T) {
	c, tr := newCallbackConn(t)
	params, _ := json.Marshal(map[string]any{"path": filepath.Join(t.TempDir(), "absent.txt")})
	c.handleServerRequest(3, "fs/read_text_file", params)

	_, rpcErr := lastResponse(t, tr)
	if rpcErr == nil {
		t.Fatal("expected error response")
	}
	if rpcErr.Code != CodeInternalError {
		t.Errorf("code = %d, want %d", rpcErr.Code, CodeInternalError)
	}
	if !strings.Contains(rpcErr.Message, "Failed to read file") {
		t.Errorf("message = %q", rpcErr.Message)
	}
}

func TestHandleServerRequest_ReadMissingPath(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(4, "fs/read_text_file", json.RawMessage(`{"sessionId":"s-1"}`))

	_, rpcErr := lastResponse(t, tr)
	if rpcErr == nil || rpcErr.Code != CodeInvalidParams || rpcErr.Message != "Missing path" {
		t.Errorf("error = %+v, want -32602 Missing path", rpcErr)
	}
}

func TestHandleServerRequest_WriteTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.txt")

	c, tr := newCallbackConn(t)
	params, _ := json.Marshal(map[string]any{"path": path, "content": "written"})
	c.handleServerRequest(5, "fs/write_text_file", params)

	_, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not written: %v", err)
	}
	if string(b) != "written" {
		t.Errorf("content = %q", b)
	}
}

func TestHandleServerRequest_WriteMissingContent(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(6, "fs/write_text_file", json.RawMessage(`{"path":"/tmp/x.txt"}`))

	_, rpcErr := lastResponse(t, tr)
	if rpcErr == nil || rpcErr.Code != CodeInvalidParams || rpcErr.Message != "Missing content" {
		t.Errorf("error = %+v, want -32602 Missing content", rpcErr)
	}
}

func TestHandleServerRequest_WriteEmptyContentAccepted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")

	c, tr := newCallbackConn(t)
	params, _ := json.Marshal(map[string]any{"path": path, "content": ""})
	c.handleServerRequest(7, "fs/write_text_file", params)

	_, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("empty content rejected: %v", rpcErr)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file not created: %v", err)
	}
}

func TestHandleServerRequest_Questions(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(8, "_iflow/user/questions", json.RawMessage(`{"questions":["proceed?"]}`))

	result, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	var decoded questionsResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if decoded.Answers == nil || len(decoded.Answers) != 0 {
		t.Errorf("answers = %v, want empty map", decoded.Answers)
	}
}

func TestHandleServerRequest_PlanExit(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(9, "_iflow/plan/exit", nil)

	result, rpcErr := lastResponse(t, tr)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %v", rpcErr)
	}
	var decoded planExitResult
	if err := json.Unmarshal(result, &decoded); err != nil {
		t.Fatalf("bad result: %v", err)
	}
	if !decoded.Approved {
		t.Error("plan exit not approved")
	}
}

func TestHandleServerRequest_UnknownMethod(t *testing.T) {
	c, tr := newCallbackConn(t)
	c.handleServerRequest(10, "agent/unknown_thing", nil)

	_, rpcErr := lastResponse(t, tr)
	if rpcErr == nil || rpcErr.Code != CodeMethodNotFound {
		t.Errorf("error = %+v, want -32601", rpcErr)
	}
}
