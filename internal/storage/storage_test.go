package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))

	snapshot, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snapshot.SessionsByAgent) != 0 || len(snapshot.MessagesBySession) != 0 {
		t.Errorf("snapshot = %+v, want empty", snapshot)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	snapshot, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snapshot.SessionsByAgent) != 0 {
		t.Errorf("snapshot = %+v", snapshot)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Error("expected error for malformed store")
	}
}

func TestSaveLoad_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "store.json")
	store := NewStore(path)

	snapshot := NewSnapshot()
	snapshot.SessionsByAgent["agent-a"] = []StoredSession{{
		ID:        "session-1",
		AgentID:   "agent-a",
		Title:     "Session One",
		CreatedAt: "2026-01-01T00:00:00.000Z",
		UpdatedAt: "2026-01-01T00:10:00.000Z",
	}}
	snapshot.MessagesBySession["session-1"] = []StoredMessage{{
		ID:        "msg-1",
		Role:      "user",
		Content:   "Hello",
		Timestamp: "2026-01-01T00:00:00.000Z",
		AgentID:   "agent-a",
	}}

	if err := store.Save(snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(snapshot, loaded) {
		t.Errorf("roundtrip mismatch:\nsaved:  %+v\nloaded: %+v", snapshot, loaded)
	}
}

func TestSave_CamelCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	store := NewStore(path)

	snapshot := NewSnapshot()
	snapshot.SessionsByAgent["a"] = []StoredSession{{ID: "s", AgentID: "a"}}
	if err := store.Save(snapshot); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"sessionsByAgent", "messagesBySession", "agentId", "createdAt", "updatedAt"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("serialized store missing %q: %s", key, data)
		}
	}
}

func TestLoad_PartialSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	if err := os.WriteFile(path, []byte(`{"sessionsByAgent":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	snapshot, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// Absent maps come back initialized.
	if snapshot.MessagesBySession == nil {
		t.Error("MessagesBySession is nil")
	}
}
