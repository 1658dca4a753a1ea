package acp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Defaults for the reconnect policy.
const (
	DefaultMaxRetries = 5
	DefaultRetryDelay = 2 * time.Second
)

// Config configures an Adapter.
type Config struct {
	// AgentID tags every emitted event.
	AgentID string
	// URL is the agent's WebSocket endpoint.
	URL string
	// Workspace is the working directory sent in session establishment.
	Workspace string
	// Sink receives the application-facing events. Required.
	Sink EventSink

	// FS serves the agent's file callbacks. Nil means DefaultFileSystem.
	FS FileSystem
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Dial opens the transport. Nil means DialWebSocket. Tests inject
	// fakes here.
	Dial func(ctx context.Context, url string) (Transport, error)
	// MaxRetries bounds consecutive connection attempts. Zero means
	// DefaultMaxRetries.
	MaxRetries int
	// RetryDelay is the fixed delay between attempts. Zero means
	// DefaultRetryDelay.
	RetryDelay time.Duration
	// Sleep waits between attempts. Nil means time.Sleep. Tests inject a
	// no-op to avoid real time passing.
	Sleep func(time.Duration)
}

// Adapter owns one WebSocket connection to one agent subprocess. It runs
// the handshake and session establishment, correlates responses, serves
// agent callbacks, and translates notifications into events. All protocol
// state is confined to the goroutine running Run; the rest of the
// application talks to it only through the command channel and the sink.
type Adapter struct {
	agentID   string
	url       string
	workspace string
	sink      EventSink
	fs        FileSystem
	logger    *slog.Logger

	dial       func(ctx context.Context, url string) (Transport, error)
	maxRetries int
	retryDelay time.Duration
	sleep      func(time.Duration)
}

// New creates an adapter. Call Run to start it.
func New(cfg Config) *Adapter {
	a := &Adapter{
		agentID:    cfg.AgentID,
		url:        cfg.URL,
		workspace:  cfg.Workspace,
		sink:       cfg.Sink,
		fs:         cfg.FS,
		logger:     cfg.Logger,
		dial:       cfg.Dial,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		sleep:      cfg.Sleep,
	}
	if a.fs == nil {
		a.fs = DefaultFileSystem
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.dial == nil {
		a.dial = DialWebSocket
	}
	if a.maxRetries <= 0 {
		a.maxRetries = DefaultMaxRetries
	}
	if a.retryDelay <= 0 {
		a.retryDelay = DefaultRetryDelay
	}
	if a.sleep == nil {
		a.sleep = time.Sleep
	}
	return a
}

// Run connects to the agent and services commands and socket traffic until
// the command channel is closed, the context is cancelled, or the retry
// budget is exhausted. Intended to be run as one goroutine per agent.
func (a *Adapter) Run(ctx context.Context, commands <-chan Command) {
	a.logger.Info("adapter starting", "agent_id", a.agentID, "url", a.url)

	retries := 0
	// The cached session id and the prompt queue survive reconnects
	// within this task's lifetime.
	var cachedSessionID string
	queue := &promptQueue{}

	for retries < a.maxRetries {
		a.logger.Info("connection attempt", "attempt", retries+1, "max", a.maxRetries)

		t, err := a.dial(ctx, a.url)
		if err != nil {
			retries++
			a.logger.Warn("connection failed", "error", err, "attempt", retries)
			if retries >= a.maxRetries {
				a.sink.AgentError(a.agentID,
					fmt.Sprintf("Failed after %d attempts: %v", a.maxRetries, err))
				break
			}
			a.sleep(a.retryDelay)
			continue
		}

		a.logger.Info("websocket connected", "agent_id", a.agentID)
		retries = 0

		done := a.runConnection(ctx, t, commands, &cachedSessionID, queue)
		_ = t.Close()
		if done {
			break
		}
	}

	a.logger.Info("adapter stopped", "agent_id", a.agentID)
}

// conn holds the per-connection protocol state. It is only ever touched
// from the adapter goroutine.
type conn struct {
	a      *Adapter
	t      Transport
	logger *slog.Logger
	fs     FileSystem

	nextID    int64
	pending   *pendingRequests
	sessionID string
	// cached mirrors the session id across reconnects.
	cached *string
	queue  *promptQueue
}

type frameEvent struct {
	frame Frame
	err   error
}

// runConnection drives one established connection. It returns true when
// the adapter task should exit for good (command channel closed or context
// cancelled) and false when the outer loop should reconnect.
func (a *Adapter) runConnection(ctx context.Context, t Transport, commands <-chan Command, cachedSessionID *string, queue *promptQueue) bool {
	c := &conn{
		a:         a,
		t:         t,
		logger:    a.logger,
		fs:        a.fs,
		nextID:    1,
		pending:   newPendingRequests(),
		sessionID: *cachedSessionID,
		cached:    cachedSessionID,
		queue:     queue,
	}

	if err := c.sendInitialize(); err != nil {
		a.logger.Warn("failed to send initialize", "error", err)
		return false
	}

	// The read pump keeps the select loop responsive: Receive blocks in
	// this goroutine, not in the loop, and idle ticks flow through so the
	// loop observes liveness.
	frames := make(chan frameEvent)
	pumpDone := make(chan struct{})
	defer close(pumpDone)
	go func() {
		defer close(frames)
		for {
			frame, err := t.Receive()
			select {
			case frames <- frameEvent{frame, err}:
			case <-pumpDone:
				return
			}
			if err != nil || frame.Kind == FrameClosed {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("context cancelled, exiting")
			return true

		case cmd, ok := <-commands:
			if !ok {
				a.logger.Info("command channel closed, exiting")
				return true
			}
			if disconnect := c.handleCommand(cmd); disconnect {
				return false
			}

		case ev, ok := <-frames:
			if !ok {
				return false
			}
			if ev.err != nil {
				a.logger.Warn("receive error", "error", ev.err)
				return false
			}
			switch ev.frame.Kind {
			case FrameClosed:
				a.logger.Info("websocket closed by server")
				return false
			case FrameIdle:
				// Nothing arrived within the receive timeout.
			case FrameText:
				for _, line := range splitFrameLines(ev.frame.Text, a.logger) {
					if fatal := c.handleLine(line); fatal {
						return false
					}
				}
			}
		}
	}
}

// allocID returns the next request id. Ids are unique and strictly
// increasing within a connection's lifetime.
func (c *conn) allocID() int64 {
	id := c.nextID
	c.nextID++
	return id
}

func (c *conn) sendRequest(id int64, method string, params any) error {
	msg, err := buildRequest(id, method, params)
	if err != nil {
		return err
	}
	return c.t.Send(msg)
}

func (c *conn) sendInitialize() error {
	id := c.allocID()
	if err := c.sendRequest(id, "initialize", buildInitializeParams()); err != nil {
		return err
	}
	c.pending.initialize = &id
	return nil
}

// handleCommand services one application command. Returns true when the
// connection must be torn down (the outer loop will reconnect).
func (c *conn) handleCommand(cmd Command) (disconnect bool) {
	switch cmd := cmd.(type) {
	case UserPrompt:
		if c.sessionID == "" {
			c.logger.Info("session not ready, prompt queued")
			c.queue.pushBack(cmd.Text)
			return false
		}
		id := c.allocID()
		c.logger.Debug("sending session/prompt", "id", id)
		if err := c.sendRequest(id, "session/prompt", buildPromptParams(c.sessionID, cmd.Text)); err != nil {
			c.logger.Warn("failed to send prompt", "error", err)
			c.queue.pushFront(cmd.Text)
			return true
		}
		c.pending.prompts[id] = struct{}{}

	case CancelPrompt:
		if c.sessionID == "" {
			c.logger.Info("session not ready, cancel ignored")
			return false
		}
		id := c.allocID()
		if err := c.sendRequest(id, "session/cancel", cancelParams{SessionID: c.sessionID}); err != nil {
			c.logger.Warn("failed to send session/cancel", "error", err)
		}

	case SetModel:
		if c.sessionID == "" {
			cmd.Reply <- SetModelResult{Err: fmt.Errorf("session not ready")}
			return false
		}
		id := c.allocID()
		if err := c.sendRequest(id, "session/set_model", setModelParams{SessionID: c.sessionID, ModelID: cmd.Model}); err != nil {
			cmd.Reply <- SetModelResult{Err: fmt.Errorf("failed to send session/set_model: %w", err)}
			return true
		}
		c.pending.setModel[id] = setModelPending{model: cmd.Model, reply: cmd.Reply}
	}
	return false
}

// handleLine dispatches one inbound JSON line. Returns true when the
// connection must be torn down.
func (c *conn) handleLine(line string) (fatal bool) {
	msg, err := parseMessage([]byte(line))
	if err != nil {
		c.logger.Warn("dropping unparseable line", "error", err, "line", line)
		return false
	}

	switch msg.Kind {
	case MsgRequest:
		c.handleServerRequest(msg.ID, msg.Method, msg.Params)
		return false

	case MsgNotification:
		if msg.Method == "session/update" {
			var env sessionUpdateEnvelope
			if err := json.Unmarshal(msg.Params, &env); err == nil && len(env.Update) > 0 {
				handleSessionUpdate(c.a.sink, c.logger, c.a.agentID, env.Update)
				emitRegistriesFromUpdate(c.a.sink, c.a.agentID, env.Update)
			}
			return false
		}
		c.logger.Debug("notification ignored", "method", msg.Method)
		return false

	case MsgResponse:
		return c.handleResponse(msg)
	}
	return false
}

// handleResponse correlates a response against the pending requests and
// advances the session lifecycle.
func (c *conn) handleResponse(msg Message) (fatal bool) {
	kind, sm := c.pending.resolve(msg.ID)
	switch kind {
	case pendingInitialize:
		return c.onInitializeResponse(msg)
	case pendingSessionLoad:
		return c.onSessionLoadResponse(msg)
	case pendingSessionNew:
		return c.onSessionNewResponse(msg)
	case pendingPrompt:
		c.onPromptResponse(msg)
	case pendingSetModel:
		c.onSetModelResponse(msg, sm)
	default:
		// A response this adapter no longer tracks, e.g. after reconnect.
		c.logger.Warn("response for unknown request id", "id", msg.ID)
	}
	return false
}

func (c *conn) onInitializeResponse(msg Message) (fatal bool) {
	if msg.Err != nil {
		c.a.sink.AgentError(c.a.agentID, fmt.Sprintf("ACP initialize failed: %v", msg.Err))
		return true
	}

	if c.sessionID != "" {
		id := c.allocID()
		if err := c.sendRequest(id, "session/load", buildSessionLoadParams(c.a.workspace, c.sessionID)); err != nil {
			c.logger.Warn("failed to send session/load", "error", err)
			return true
		}
		c.pending.sessionLoad = &id
	} else {
		id := c.allocID()
		if err := c.sendRequest(id, "session/new", buildSessionNewParams(c.a.workspace)); err != nil {
			c.logger.Warn("failed to send session/new", "error", err)
			return true
		}
		c.pending.sessionNew = &id
	}
	return false
}

func (c *conn) onSessionLoadResponse(msg Message) (fatal bool) {
	if msg.Err != nil {
		// Stale or corrupted session store on the agent side: fall back
		// to a fresh session, discarding the cached id.
		c.logger.Warn("session/load failed, falling back to session/new", "error", msg.Err)
		id := c.allocID()
		if err := c.sendRequest(id, "session/new", buildSessionNewParams(c.a.workspace)); err != nil {
			c.logger.Warn("failed to send fallback session/new", "error", err)
			return true
		}
		c.pending.sessionNew = &id
		return false
	}

	emitRegistries(c.a.sink, c.a.agentID, msg.Result)
	c.a.sink.StreamMessage(c.a.agentID, "Session resumed", StreamKindSystem)
	c.drainPromptQueue()
	return false
}

func (c *conn) onSessionNewResponse(msg Message) (fatal bool) {
	if msg.Err != nil {
		c.a.sink.AgentError(c.a.agentID, fmt.Sprintf("session/new failed: %v", msg.Err))
		return true
	}

	var result struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(msg.Result, &result)
	if result.SessionID == "" {
		c.a.sink.AgentError(c.a.agentID, "session/new succeeded but no sessionId returned")
		return true
	}

	c.sessionID = result.SessionID
	*c.cached = result.SessionID

	emitRegistries(c.a.sink, c.a.agentID, msg.Result)
	c.drainPromptQueue()
	return false
}

func (c *conn) onPromptResponse(msg Message) {
	if msg.Err != nil {
		// The turn failed but the connection stays alive.
		c.a.sink.AgentError(c.a.agentID, fmt.Sprintf("session/prompt failed: %v", msg.Err))
		return
	}

	var result struct {
		StopReason string `json:"stopReason"`
	}
	_ = json.Unmarshal(msg.Result, &result)
	reason := result.StopReason
	if reason == "" {
		reason = "completed"
	}
	emitTaskFinish(c.a.sink, c.a.agentID, reason)
}

func (c *conn) onSetModelResponse(msg Message, sm setModelPending) {
	if msg.Err != nil {
		sm.reply <- SetModelResult{Err: fmt.Errorf("session/set_model failed: %v", msg.Err)}
		return
	}

	var result struct {
		CurrentModelID string `json:"currentModelId"`
	}
	_ = json.Unmarshal(msg.Result, &result)
	current := strings.TrimSpace(result.CurrentModelID)
	if current == "" {
		current = sm.model
	}

	c.a.sink.ModelRegistry(c.a.agentID, nil, current)
	sm.reply <- SetModelResult{ModelID: current}
}

// drainPromptQueue flushes prompts queued before the session was ready, in
// submission order. A send failure re-queues the failing prompt at the
// front and stops; the remainder retries on the next ready transition.
func (c *conn) drainPromptQueue() {
	for {
		text, ok := c.queue.popFront()
		if !ok {
			return
		}
		id := c.allocID()
		if err := c.sendRequest(id, "session/prompt", buildPromptParams(c.sessionID, text)); err != nil {
			c.logger.Warn("failed to flush prompt queue", "error", err)
			c.queue.pushFront(text)
			return
		}
		c.pending.prompts[id] = struct{}{}
	}
}

// promptQueue is a FIFO of prompts awaiting a ready session.
type promptQueue struct {
	items []string
}

func (q *promptQueue) pushBack(text string)  { q.items = append(q.items, text) }
func (q *promptQueue) pushFront(text string) { q.items = append([]string{text}, q.items...) }

func (q *promptQueue) popFront() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	text := q.items[0]
	q.items = q.items[1:]
	return text, true
}

func (q *promptQueue) len() int { return len(q.items) }
