// Package logging provides centralized logging configuration for Flowdeck.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// globalLogger is the application-wide logger
	globalLogger *slog.Logger
	globalMu     sync.RWMutex

	// logWriter holds the log file writer (if any) for cleanup.
	// Can be *os.File or *lumberjack.Logger
	logWriter   io.WriteCloser
	logWriterMu sync.Mutex

	// allowedComponents stores the set of components to log (empty means all)
	allowedComponents map[string]bool
	componentsMu      sync.RWMutex
)

// FileLogConfig holds configuration for file-based logging with rotation.
type FileLogConfig struct {
	// Path is the file path for the log file.
	// Empty string disables file logging.
	Path string

	// MaxSizeMB is the maximum size of the log file in megabytes before rotation.
	// Default: 10MB
	MaxSizeMB int

	// MaxBackups is the maximum number of old log files to retain.
	// Default: 3
	MaxBackups int

	// Compress determines if rotated log files should be compressed.
	// Default: false
	Compress bool
}

// DefaultFileLogConfig returns the default file log configuration.
func DefaultFileLogConfig() FileLogConfig {
	return FileLogConfig{
		MaxSizeMB:  10,
		MaxBackups: 3,
		Compress:   false,
	}
}

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level for console output (debug, info, warn, error)
	Level string
	// FileLevel is the minimum log level for file output.
	// If empty, defaults to Level.
	FileLevel string
	// FileLog is the configuration for file-based logging with rotation.
	FileLog *FileLogConfig
	// JSON enables JSON output format
	JSON bool
	// Components is a list of component names to include in logs (empty means all)
	Components []string
}

// Initialize sets up the global logger with the given configuration.
// If FileLog is specified, logs are written to both console and file with
// rotation via lumberjack. If FileLevel differs from Level, separate
// handlers with different log levels are used.
func Initialize(cfg Config) error {
	consoleLevel := parseLevel(cfg.Level)
	fileLevel := consoleLevel
	if cfg.FileLevel != "" {
		fileLevel = parseLevel(cfg.FileLevel)
	}

	componentsMu.Lock()
	if len(cfg.Components) > 0 {
		allowedComponents = make(map[string]bool)
		for _, c := range cfg.Components {
			allowedComponents[c] = true
		}
	} else {
		allowedComponents = nil // nil means all components allowed
	}
	componentsMu.Unlock()

	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	var fileWriter io.Writer
	if cfg.FileLog != nil && cfg.FileLog.Path != "" {
		maxSize := cfg.FileLog.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxBackups := cfg.FileLog.MaxBackups
		if maxBackups < 0 {
			maxBackups = 3
		}

		lj := &lumberjack.Logger{
			Filename:   cfg.FileLog.Path,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     0, // don't delete old files based on age
			Compress:   cfg.FileLog.Compress,
		}
		logWriter = lj
		fileWriter = lj
	}

	createHandler := func(w io.Writer, level slog.Level) slog.Handler {
		opts := &slog.HandlerOptions{Level: level}
		if cfg.JSON {
			return slog.NewJSONHandler(w, opts)
		}
		return slog.NewTextHandler(w, opts)
	}

	var handler slog.Handler
	if fileWriter != nil && fileLevel != consoleLevel {
		// Different levels: fan out to both handlers
		consoleHandler := createHandler(os.Stderr, consoleLevel)
		fileHandler := createHandler(fileWriter, fileLevel)
		handler = &multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}}
	} else if fileWriter != nil {
		w := io.MultiWriter(os.Stderr, fileWriter)
		handler = createHandler(w, consoleLevel)
	} else {
		handler = createHandler(os.Stderr, consoleLevel)
	}

	logger := slog.New(handler)

	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()

	slog.SetDefault(logger)

	return nil
}

// multiHandler fans out log records to multiple handlers.
// It is used when console and file have different log levels.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// Get returns the global logger.
// If Initialize hasn't been called, returns slog.Default().
func Get() *slog.Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// Close cleans up logging resources (closes log file if open).
func Close() error {
	logWriterMu.Lock()
	defer logWriterMu.Unlock()

	if logWriter != nil {
		err := logWriter.Close()
		logWriter = nil
		return err
	}
	return nil
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// isComponentAllowed checks if a component should be logged.
func isComponentAllowed(component string) bool {
	componentsMu.RLock()
	defer componentsMu.RUnlock()

	if allowedComponents == nil {
		return true
	}
	return allowedComponents[component]
}

// componentFilterHandler wraps a slog.Handler and filters based on component.
type componentFilterHandler struct {
	inner     slog.Handler
	component string
}

func (h *componentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if !isComponentAllowed(h.component) {
		return false
	}
	return h.inner.Enabled(ctx, level)
}

func (h *componentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	if !isComponentAllowed(h.component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *componentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &componentFilterHandler{
		inner:     h.inner.WithAttrs(attrs),
		component: h.component,
	}
}

func (h *componentFilterHandler) WithGroup(name string) slog.Handler {
	return &componentFilterHandler{
		inner:     h.inner.WithGroup(name),
		component: h.component,
	}
}

// WithComponent returns a logger with a component attribute.
// If component filtering is enabled and this component is not in the allowed
// list, the returned logger will be a no-op logger.
func WithComponent(component string) *slog.Logger {
	base := Get()
	handler := &componentFilterHandler{
		inner:     base.Handler().WithAttrs([]slog.Attr{slog.String("component", component)}),
		component: component,
	}
	return slog.New(handler)
}

// Adapter returns a logger for protocol adapter events.
func Adapter() *slog.Logger {
	return WithComponent("adapter")
}

// Supervisor returns a logger for agent supervision events.
func Supervisor() *slog.Logger {
	return WithComponent("supervisor")
}

// History returns a logger for session history events.
func History() *slog.Logger {
	return WithComponent("history")
}

// Storage returns a logger for snapshot storage events.
func Storage() *slog.Logger {
	return WithComponent("storage")
}

// WithAgent returns a logger with agent context.
// This creates a child logger that automatically includes agent_id and
// workspace in all log messages.
func WithAgent(base *slog.Logger, agentID, workspace string) *slog.Logger {
	if base == nil {
		return nil
	}
	return base.With(
		"agent_id", agentID,
		"workspace", workspace,
	)
}
