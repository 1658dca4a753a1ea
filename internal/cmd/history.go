package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/history"
	"github.com/flowdeck/flowdeck/internal/logging"
)

var historyWorkspace string

// historyCmd groups the session history subcommands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect the agent's session history for a workspace",
	Long: `Inspect the transcripts the iFlow agent keeps per workspace.

Transcripts live under the agent's projects directory (by default
~/.iflow/projects) and are read directly, so no agent needs to be
running.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for the workspace, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the messages of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete one session's transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all transcripts for the workspace",
	RunE:  runHistoryClear,
}

var historyWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report transcript changes for the workspace as they happen",
	RunE:  runHistoryWatch,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd, historyClearCmd, historyWatchCmd)

	historyCmd.PersistentFlags().StringVarP(&historyWorkspace, "workspace", "w", ".", "Workspace directory the sessions belong to")
}

// historyStore builds a store for the configured history root and resolves
// the workspace flag to an absolute path.
func historyStore() (*history.Store, string, error) {
	workspace, err := resolveWorkspaceArg([]string{historyWorkspace})
	if err != nil {
		return nil, "", err
	}

	root := settings.HistoryRoot
	if root == "" {
		root, err = history.DefaultRoot()
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve history root: %w", err)
		}
	}
	store, err := history.NewStore(root)
	if err != nil {
		return nil, "", err
	}
	return store, workspace, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, workspace, err := historyStore()
	if err != nil {
		return err
	}

	sessions, err := store.ListSessions(workspace)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	for _, session := range sessions {
		fmt.Printf("%s  %-31s  %3d messages  %s\n",
			session.SessionID, session.Title, session.MessageCount, session.UpdatedAt)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, workspace, err := historyStore()
	if err != nil {
		return err
	}

	messages, err := store.LoadMessages(workspace, args[0])
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	for _, message := range messages {
		fmt.Printf("[%s] %s\n", message.Role, message.Content)
	}
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	store, workspace, err := historyStore()
	if err != nil {
		return err
	}

	deleted, err := store.DeleteSession(workspace, args[0])
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		fmt.Println("Session not found.")
		return nil
	}
	fmt.Println("Session deleted.")
	return nil
}

func runHistoryWatch(cmd *cobra.Command, args []string) error {
	store, workspace, err := historyStore()
	if err != nil {
		return err
	}

	watcher, err := history.NewWatcher(store, func(ev history.ChangeEvent) {
		fmt.Printf("%s  history changed: %s\n", ev.Timestamp.Format("15:04:05"), ev.Workspace)
	}, logging.History())
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	watcher.Start()
	defer watcher.Close()

	if err := watcher.WatchWorkspace(workspace); err != nil {
		return fmt.Errorf("failed to watch workspace: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Watching %s. Press Ctrl-C to stop.\n", workspace)
	<-ctx.Done()
	return nil
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, workspace, err := historyStore()
	if err != nil {
		return err
	}

	count, err := store.ClearSessions(workspace)
	if err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	fmt.Printf("Deleted %d session(s).\n", count)
	return nil
}
