// Package storage persists the UI-facing session snapshot: the sessions the
// user has open per agent and the messages rendered per session. The
// snapshot is a single JSON file in the Flowdeck data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/flowdeck/flowdeck/internal/fileutil"
)

// StoredSession is one open session as the frontend tracks it.
type StoredSession struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	Title     string `json:"title"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// StoredMessage is one rendered message of a session.
type StoredMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	AgentID   string `json:"agentId,omitempty"`
}

// Snapshot is the complete persisted state.
type Snapshot struct {
	SessionsByAgent   map[string][]StoredSession `json:"sessionsByAgent"`
	MessagesBySession map[string][]StoredMessage `json:"messagesBySession"`
}

// NewSnapshot returns an empty snapshot with initialized maps.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		SessionsByAgent:   make(map[string][]StoredSession),
		MessagesBySession: make(map[string][]StoredMessage),
	}
}

// Store serializes snapshot access to one file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store persisting to the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot. A missing or empty file yields an empty
// snapshot, not an error.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readSnapshot(s.path)
}

// Save writes the snapshot, creating parent directories as needed.
func (s *Store) Save(snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeSnapshot(s.path, snapshot)
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}
	if len(data) == 0 {
		return NewSnapshot(), nil
	}

	snapshot := NewSnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse session store: %w", err)
	}
	if snapshot.SessionsByAgent == nil {
		snapshot.SessionsByAgent = make(map[string][]StoredSession)
	}
	if snapshot.MessagesBySession == nil {
		snapshot.MessagesBySession = make(map[string][]StoredMessage)
	}
	return snapshot, nil
}

func writeSnapshot(path string, snapshot *Snapshot) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create session store dir: %w", err)
		}
	}
	if err := fileutil.WriteJSONAtomic(path, snapshot, 0o644); err != nil {
		return fmt.Errorf("failed to write session store: %w", err)
	}
	return nil
}
