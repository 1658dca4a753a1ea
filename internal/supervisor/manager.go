// Package supervisor spawns coding-agent subprocesses, wires each one to a
// protocol adapter, and routes application requests to the right agent.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowdeck/flowdeck/internal/acp"
)

const (
	// DefaultStartupWait is how long to wait after spawning the agent
	// before dialing its WebSocket endpoint.
	DefaultStartupWait = 3 * time.Second

	// SwitchModelTimeout bounds how long a model switch waits for the
	// agent before falling back to a full restart.
	SwitchModelTimeout = 20 * time.Second

	// commandBufferSize is the capacity of each agent's command channel.
	commandBufferSize = 64
)

// Config configures a Manager.
type Config struct {
	// AgentCommand is the executable (plus any leading arguments) used to
	// start agents, e.g. "iflow".
	AgentCommand string
	// Sink receives every agent's events.
	Sink acp.EventSink
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// StartupWait overrides DefaultStartupWait. Tests set this low.
	StartupWait time.Duration
	// MaxRetries is passed through to each adapter. Zero means the
	// adapter default.
	MaxRetries int
}

// ConnectResponse reports the outcome of spawning an agent.
type ConnectResponse struct {
	Success bool   `json:"success"`
	AgentID string `json:"agentId,omitempty"`
	Port    int    `json:"port,omitempty"`
	Error   string `json:"error,omitempty"`
}

// agentState tracks one spawned agent and its adapter.
type agentState struct {
	id        string
	workspace string
	port      int
	model     string

	process  *exec.Cmd
	commands chan acp.Command
	cancel   context.CancelFunc
	// done closes when the adapter task exits.
	done chan struct{}

	// sendMu serializes sends against Disconnect closing the channel. A
	// sender that passed lookup must never hit a closed channel.
	sendMu sync.Mutex
	closed bool
}

// send queues a command for the agent without blocking. It fails once the
// agent is shutting down or the queue is full.
func (s *agentState) send(cmd acp.Command) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.closed {
		return fmt.Errorf("agent %q is shutting down", s.id)
	}
	select {
	case s.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("agent %q command queue full", s.id)
	}
}

// Manager owns the set of running agents.
type Manager struct {
	mu     sync.Mutex
	agents map[string]*agentState

	agentCommand string
	sink         acp.EventSink
	logger       *slog.Logger
	startupWait  time.Duration
	maxRetries   int

	// sleep is injectable so tests skip the startup wait.
	sleep func(time.Duration)
}

// NewManager creates a manager. AgentCommand and Sink are required.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		agents:       make(map[string]*agentState),
		agentCommand: cfg.AgentCommand,
		sink:         cfg.Sink,
		logger:       cfg.Logger,
		startupWait:  cfg.StartupWait,
		maxRetries:   cfg.MaxRetries,
		sleep:        time.Sleep,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.startupWait <= 0 {
		m.startupWait = DefaultStartupWait
	}
	return m
}

// FindAvailablePort asks the kernel for a free TCP port on the loopback
// interface.
func FindAvailablePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("failed to find available port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// buildAgentArgs assembles the agent command line for one spawn.
func buildAgentArgs(command string, port int, model string) ([]string, error) {
	args, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}
	args = append(args, "--experimental-acp", "--port", fmt.Sprintf("%d", port))
	if model != "" {
		args = append(args, "--model", model)
	}
	return args, nil
}

// Connect spawns an agent in the workspace and starts its adapter. The
// returned agent id addresses the agent in all later calls. When model is
// empty the agent picks its own default.
func (m *Manager) Connect(ctx context.Context, workspace, model string) ConnectResponse {
	port, err := FindAvailablePort()
	if err != nil {
		return ConnectResponse{Error: err.Error()}
	}

	args, err := buildAgentArgs(m.agentCommand, port, model)
	if err != nil {
		return ConnectResponse{Error: err.Error()}
	}

	m.logger.Info("spawning agent", "command", args[0], "port", port, "workspace", workspace)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workspace
	if err := cmd.Start(); err != nil {
		return ConnectResponse{Error: fmt.Sprintf("failed to start agent: %v", err)}
	}

	// Give the agent time to bind its WebSocket listener; the adapter's
	// retry loop covers slower starts.
	m.sleep(m.startupWait)

	agentID := uuid.NewString()
	commands := make(chan acp.Command, commandBufferSize)
	adapterCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	adapter := acp.New(acp.Config{
		AgentID:    agentID,
		URL:        fmt.Sprintf("ws://127.0.0.1:%d/acp", port),
		Workspace:  workspace,
		Sink:       m.sink,
		Logger:     m.logger,
		MaxRetries: m.maxRetries,
	})
	go func() {
		defer close(done)
		adapter.Run(adapterCtx, commands)
	}()
	// Reap the process when it exits so it never lingers as a zombie.
	go func() {
		_ = cmd.Wait()
	}()

	state := &agentState{
		id:        agentID,
		workspace: workspace,
		port:      port,
		model:     model,
		process:   cmd,
		commands:  commands,
		cancel:    cancel,
		done:      done,
	}

	m.mu.Lock()
	m.agents[agentID] = state
	m.mu.Unlock()

	m.logger.Info("agent connected", "agent_id", agentID, "port", port)
	return ConnectResponse{Success: true, AgentID: agentID, Port: port}
}

// lookup returns the agent state or an error naming the unknown id.
func (m *Manager) lookup(agentID string) (*agentState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.agents[agentID]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", agentID)
	}
	return state, nil
}

// SendPrompt queues a prompt for the agent.
func (m *Manager) SendPrompt(agentID, text string) error {
	state, err := m.lookup(agentID)
	if err != nil {
		return err
	}
	return state.send(acp.UserPrompt{Text: text})
}

// StopPrompt asks the agent to cancel the in-flight turn.
func (m *Manager) StopPrompt(agentID string) error {
	state, err := m.lookup(agentID)
	if err != nil {
		return err
	}
	return state.send(acp.CancelPrompt{})
}

// SwitchModel switches the agent's active model in place. If the agent does
// not confirm within SwitchModelTimeout, or reports an error, the agent is
// restarted with the model on its command line. Returns the agent id to use
// afterwards (a restart allocates a new one) and the active model.
func (m *Manager) SwitchModel(ctx context.Context, agentID, model string) (string, string, error) {
	state, err := m.lookup(agentID)
	if err != nil {
		return "", "", err
	}

	reply := make(chan acp.SetModelResult, 1)
	if err := state.send(acp.SetModel{Model: model, Reply: reply}); err != nil {
		return m.restartWithModel(ctx, state, model)
	}

	timer := time.NewTimer(SwitchModelTimeout)
	defer timer.Stop()

	select {
	case res := <-reply:
		if res.Err != nil {
			m.logger.Warn("in-place model switch failed, restarting agent",
				"agent_id", agentID, "error", res.Err)
			return m.restartWithModel(ctx, state, model)
		}
		m.mu.Lock()
		state.model = res.ModelID
		m.mu.Unlock()
		return agentID, res.ModelID, nil

	case <-timer.C:
		m.logger.Warn("model switch timed out, restarting agent", "agent_id", agentID)
		return m.restartWithModel(ctx, state, model)

	case <-ctx.Done():
		return "", "", ctx.Err()
	}
}

// restartWithModel tears the agent down and spawns a replacement with the
// model pinned on the command line.
func (m *Manager) restartWithModel(ctx context.Context, state *agentState, model string) (string, string, error) {
	workspace := state.workspace
	if err := m.Disconnect(state.id); err != nil {
		m.logger.Warn("failed to disconnect agent before restart", "agent_id", state.id, "error", err)
	}

	resp := m.Connect(ctx, workspace, model)
	if !resp.Success {
		return "", "", fmt.Errorf("failed to restart agent with model %q: %s", model, resp.Error)
	}
	return resp.AgentID, model, nil
}

// Disconnect stops the agent's adapter and kills its process.
func (m *Manager) Disconnect(agentID string) error {
	m.mu.Lock()
	state, ok := m.agents[agentID]
	if ok {
		delete(m.agents, agentID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown agent %q", agentID)
	}

	state.cancel()
	state.sendMu.Lock()
	state.closed = true
	close(state.commands)
	state.sendMu.Unlock()
	if state.process != nil && state.process.Process != nil {
		_ = state.process.Process.Kill()
	}

	// Bounded wait for the adapter task so Disconnect doesn't hang on a
	// stuck connection.
	select {
	case <-state.done:
	case <-time.After(2 * time.Second):
		m.logger.Warn("adapter did not stop in time", "agent_id", agentID)
	}

	m.logger.Info("agent disconnected", "agent_id", agentID)
	return nil
}

// DisconnectAll tears down every running agent.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Disconnect(id)
	}
}

// PortOf returns the WebSocket port of the agent.
func (m *Manager) PortOf(agentID string) (int, error) {
	state, err := m.lookup(agentID)
	if err != nil {
		return 0, err
	}
	return state.port, nil
}

// WorkspaceOf returns the workspace directory of the agent.
func (m *Manager) WorkspaceOf(agentID string) (string, error) {
	state, err := m.lookup(agentID)
	if err != nil {
		return "", err
	}
	return state.workspace, nil
}

// ModelOf returns the last known active model of the agent. Empty means the
// agent's own default.
func (m *Manager) ModelOf(agentID string) (string, error) {
	state, err := m.lookup(agentID)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return state.model, nil
}

// AgentIDs returns the ids of all running agents.
func (m *Manager) AgentIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.agents))
	for id := range m.agents {
		ids = append(ids, id)
	}
	return ids
}
