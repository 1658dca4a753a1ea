package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/models"
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the installed agent supports",
	Long: `List the model catalog shipped with the configured iFlow
installation. The catalog is read from the agent's JavaScript bundle,
so no agent process is started.`,
	RunE: runModels,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	options, err := models.ListAvailable(settings.AgentCommand)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, option := range options {
		if option.Label != option.Value {
			fmt.Printf("%-24s %s\n", option.Value, option.Label)
		} else {
			fmt.Println(option.Value)
		}
	}
	return nil
}
