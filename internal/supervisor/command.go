package supervisor

import (
	"fmt"

	"github.com/google/shlex"
)

// ParseCommand parses an agent command string into arguments using
// shell-aware tokenization. It handles quoted strings correctly, for example:
//   - "sh -c 'cd /dir && iflow'" -> ["sh", "-c", "cd /dir && iflow"]
//   - "iflow --profile \"my profile\"" -> ["iflow", "--profile", "my profile"]
//
// Returns an error if the command string has invalid quoting (e.g., unclosed
// quotes) or if the command is empty.
func ParseCommand(command string) ([]string, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return args, nil
}
