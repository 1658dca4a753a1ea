package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/appdir"
	"github.com/flowdeck/flowdeck/internal/bus"
	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/logging"
	"github.com/flowdeck/flowdeck/internal/storage"
	"github.com/flowdeck/flowdeck/internal/supervisor"
)

var runModel string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [workspace]",
	Short: "Start an agent in a workspace and chat with it",
	Long: `Start an iFlow agent in the given workspace (default: current
directory) and open an interactive prompt loop.

Agent output streams to stdout as it arrives. Inside the loop:

  /cancel        stop the current turn
  /model <name>  switch the agent to another model
  /quit          disconnect and exit

A .flowdeckrc file in the workspace can override the agent command
and default model for that workspace.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model to start the agent with (overrides settings)")
}

func runRun(cmd *cobra.Command, args []string) error {
	workspace, err := resolveWorkspaceArg(args)
	if err != nil {
		return err
	}

	effective := config.EffectiveSettings(settings, workspace)
	model := effective.DefaultModel
	if runModel != "" {
		model = runModel
	}

	eventBus := bus.New(logging.Get())
	manager := supervisor.NewManager(supervisor.Config{
		AgentCommand: effective.AgentCommand,
		Sink:         bus.NewSink(eventBus),
		Logger:       logging.Supervisor(),
		MaxRetries:   effective.MaxRetries,
	})
	defer manager.DisconnectAll()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	events, unsubscribe := eventBus.Subscribe()
	defer unsubscribe()

	fmt.Printf("Starting %s in %s...\n", effective.AgentCommand, workspace)
	resp := manager.Connect(ctx, workspace, model)
	if !resp.Success {
		return fmt.Errorf("failed to start agent: %s", resp.Error)
	}
	fmt.Printf("Agent ready on port %d. Type a prompt, or /quit to exit.\n", resp.Port)

	recorder, err := newRunRecorder(resp.AgentID, workspace)
	if err != nil {
		logging.Get().Warn("session recording disabled", "error", err)
	}

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for ev := range events {
			if recorder != nil {
				recorder.HandleEvent(ev)
			}
			printEvent(ev)
		}
	}()

	inputErr := promptLoop(ctx, manager, resp.AgentID, recorder)

	manager.DisconnectAll()
	unsubscribe()
	<-printerDone
	if recorder != nil {
		if err := recorder.Close(); err != nil {
			logging.Get().Warn("failed to save session snapshot", "error", err)
		}
	}
	return inputErr
}

// newRunRecorder builds a session recorder persisting to the snapshot in
// the Flowdeck data directory.
func newRunRecorder(agentID, workspace string) (*sessionRecorder, error) {
	path, err := appdir.SnapshotPath()
	if err != nil {
		return nil, err
	}
	return newSessionRecorder(storage.NewStore(path), agentID, workspace)
}

// resolveWorkspaceArg turns the optional positional argument into an
// absolute, existing directory.
func resolveWorkspaceArg(args []string) (string, error) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", dir, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("directory does not exist: %s", absPath)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}
	return absPath, nil
}

// promptLoop reads prompts and slash commands from stdin until EOF, /quit
// or context cancellation.
func promptLoop(ctx context.Context, manager *supervisor.Manager, agentID string, recorder *sessionRecorder) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			next, done, err := handleSlashCommand(ctx, manager, agentID, text, recorder)
			if done {
				return err
			}
			agentID = next
		}
	}
}

// handleSlashCommand dispatches a stdin line. It returns the agent id to
// use from here on (a model switch can restart the agent under a new id)
// and done=true when the loop should exit.
func handleSlashCommand(ctx context.Context, manager *supervisor.Manager, agentID, text string, recorder *sessionRecorder) (string, bool, error) {
	switch {
	case text == "/quit" || text == "/exit":
		return agentID, true, nil
	case text == "/cancel":
		if err := manager.StopPrompt(agentID); err != nil {
			fmt.Printf("cancel failed: %v\n", err)
		}
	case strings.HasPrefix(text, "/model"):
		model := strings.TrimSpace(strings.TrimPrefix(text, "/model"))
		if model == "" {
			fmt.Println("usage: /model <name>")
			return agentID, false, nil
		}
		newAgentID, activeModel, err := manager.SwitchModel(ctx, agentID, model)
		if err != nil {
			fmt.Printf("model switch failed: %v\n", err)
			return agentID, false, nil
		}
		if newAgentID != agentID {
			fmt.Printf("agent restarted with model %s\n", activeModel)
		} else {
			fmt.Printf("model switched to %s\n", activeModel)
		}
		return newAgentID, false, nil
	case strings.HasPrefix(text, "/"):
		// Unrecognized slash commands are forwarded to the agent, which
		// serves its own command registry.
		fallthrough
	default:
		if err := manager.SendPrompt(agentID, text); err != nil {
			fmt.Printf("prompt failed: %v\n", err)
			return agentID, false, nil
		}
		if recorder != nil {
			recorder.RecordUser(text)
		}
	}
	return agentID, false, nil
}

// printEvent renders one bus event to stdout.
func printEvent(ev bus.Event) {
	switch payload := ev.Payload.(type) {
	case bus.StreamMessagePayload:
		switch payload.Kind {
		case "thought":
			fmt.Printf("[thinking] %s", payload.Content)
		case "plan", "system":
			fmt.Printf("\n%s\n", payload.Content)
		default:
			fmt.Print(payload.Content)
		}
	case bus.ToolCallPayload:
		fmt.Printf("\n[tool %s] %s\n", payload.Status, payload.Name)
	case bus.AgentErrorPayload:
		fmt.Printf("\n[error] %s\n", payload.Message)
	case bus.TaskFinishPayload:
		fmt.Printf("\n[done: %s]\n> ", payload.Reason)
	case bus.ModelRegistryPayload:
		if payload.CurrentModel != "" {
			fmt.Printf("\n[model: %s]\n", payload.CurrentModel)
		}
	case bus.CommandRegistryPayload:
		if len(payload.Commands) > 0 {
			fmt.Printf("\n[%d agent commands available]\n", len(payload.Commands))
		}
	}
}
