package cmd

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/internal/bus"
	"github.com/flowdeck/flowdeck/internal/storage"
)

// sessionRecorder accumulates one run's conversation into the persisted
// session snapshot. Streamed assistant chunks are buffered until the turn
// finishes, then stored as a single message.
type sessionRecorder struct {
	mu       sync.Mutex
	store    *storage.Store
	snapshot *storage.Snapshot

	agentID   string
	sessionID string
	titled    bool
	pending   strings.Builder
}

func newSessionRecorder(store *storage.Store, agentID, workspace string) (*sessionRecorder, error) {
	snapshot, err := store.Load()
	if err != nil {
		return nil, err
	}

	now := recorderTimestamp()
	sessionID := uuid.NewString()
	snapshot.SessionsByAgent[agentID] = append(snapshot.SessionsByAgent[agentID], storage.StoredSession{
		ID:        sessionID,
		AgentID:   agentID,
		Title:     workspace,
		CreatedAt: now,
		UpdatedAt: now,
	})

	return &sessionRecorder{
		store:     store,
		snapshot:  snapshot,
		agentID:   agentID,
		sessionID: sessionID,
	}, nil
}

func recorderTimestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// RecordUser stores a prompt the user sent. The first prompt becomes the
// session title.
func (r *sessionRecorder) RecordUser(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.titled {
		r.titled = true
		r.setTitle(text)
	}
	r.appendMessage("user", text)
}

// HandleEvent consumes a bus event, buffering assistant output until the
// turn finishes.
func (r *sessionRecorder) HandleEvent(ev bus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch payload := ev.Payload.(type) {
	case bus.StreamMessagePayload:
		if payload.Kind == "content" {
			r.pending.WriteString(payload.Content)
		}
	case bus.TaskFinishPayload:
		r.flushAssistant()
	case bus.AgentErrorPayload:
		r.flushAssistant()
		r.appendMessage("system", payload.Message)
	}
}

// Close flushes any partial assistant output and persists the snapshot.
func (r *sessionRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.flushAssistant()
	return r.store.Save(r.snapshot)
}

func (r *sessionRecorder) flushAssistant() {
	content := r.pending.String()
	r.pending.Reset()
	if strings.TrimSpace(content) == "" {
		return
	}
	r.appendMessage("assistant", content)
}

func (r *sessionRecorder) appendMessage(role, content string) {
	now := recorderTimestamp()
	r.snapshot.MessagesBySession[r.sessionID] = append(r.snapshot.MessagesBySession[r.sessionID], storage.StoredMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: now,
		AgentID:   r.agentID,
	})
	r.touchSession(now)
}

func (r *sessionRecorder) setTitle(text string) {
	title := strings.Join(strings.Fields(text), " ")
	if runes := []rune(title); len(runes) > 60 {
		title = string(runes[:60])
	}
	sessions := r.snapshot.SessionsByAgent[r.agentID]
	for i := range sessions {
		if sessions[i].ID == r.sessionID {
			sessions[i].Title = title
			return
		}
	}
}

func (r *sessionRecorder) touchSession(now string) {
	sessions := r.snapshot.SessionsByAgent[r.agentID]
	for i := range sessions {
		if sessions[i].ID == r.sessionID {
			sessions[i].UpdatedAt = now
			return
		}
	}
}
