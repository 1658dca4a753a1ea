// Package cmd provides the CLI commands for Flowdeck.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/appdir"
	"github.com/flowdeck/flowdeck/internal/config"
	"github.com/flowdeck/flowdeck/internal/logging"
)

var (
	// Global flags
	debug    bool
	logLevel string // --log-level flag (debug, info, warn, error)
	logFile  string

	// Loaded configuration
	settings *config.Settings
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowdeck",
	Short: "Flowdeck - a session deck for iFlow coding agents",
	Long: `Flowdeck supervises iFlow coding agents over the Agent
Communication Protocol (ACP).

It spawns the agent in a workspace, drives prompts over a WebSocket
JSON-RPC connection, and exposes the agent's session history and
model catalog.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help and completion commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		if err := appdir.EnsureDir(); err != nil {
			return fmt.Errorf("failed to create Flowdeck directory: %w", err)
		}

		var err error
		settings, err = config.LoadSettings()
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}

		// Priority: --log-level flag > --debug flag > settings > default (info)
		effectiveLevel := settings.LogLevel
		if effectiveLevel == "" {
			effectiveLevel = "info"
		}
		if debug {
			effectiveLevel = "debug"
		}
		if logLevel != "" {
			effectiveLevel = logLevel
		}

		logCfg := logging.Config{Level: effectiveLevel}
		effectiveLogFile := settings.LogFile
		if logFile != "" {
			effectiveLogFile = logFile
		}
		if effectiveLogFile != "" {
			fileCfg := logging.DefaultFileLogConfig()
			fileCfg.Path = effectiveLogFile
			logCfg.FileLog = &fileCfg
		}
		if err := logging.Initialize(logCfg); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Clean up logging resources
		return logging.Close()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (shorthand for --log-level=debug)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	rootCmd.PersistentFlags().StringVarP(&logFile, "logfile", "l", "", "Log file path (logs are also written to console)")
}
