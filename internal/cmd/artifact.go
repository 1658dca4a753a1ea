package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowdeck/flowdeck/internal/artifact"
)

var (
	artifactWorkspace string
	artifactPrint     bool
)

// artifactCmd represents the artifact command
var artifactCmd = &cobra.Command{
	Use:   "artifact <path>",
	Short: "Resolve an HTML artifact an agent referenced",
	Long: `Resolve an HTML artifact path as it appeared in agent output.

Agent replies wrap paths in quotes, punctuation, file:// schemes or
JSON fragments; those wrappers are stripped before resolution.
Relative paths are resolved inside the workspace and must stay there.
Only .html and .htm files up to 2 MB are accepted.`,
	Args: cobra.ExactArgs(1),
	RunE: runArtifact,
}

func init() {
	rootCmd.AddCommand(artifactCmd)

	artifactCmd.Flags().StringVarP(&artifactWorkspace, "workspace", "w", ".", "Workspace directory relative paths resolve against")
	artifactCmd.Flags().BoolVar(&artifactPrint, "print", false, "Print the artifact content instead of its path")
}

func runArtifact(cmd *cobra.Command, args []string) error {
	workspace, err := resolveWorkspaceArg([]string{artifactWorkspace})
	if err != nil {
		return err
	}

	if artifactPrint {
		content, err := artifact.ReadHTMLArtifact(workspace, args[0])
		if err != nil {
			return err
		}
		fmt.Print(content)
		return nil
	}

	path, err := artifact.ResolveHTMLArtifactPath(workspace, args[0])
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}
