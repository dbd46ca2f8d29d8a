package cli

import (
	"strings"
)

// Command supports command-line interaction with plugins.  The first item is the
// command name, the second the subcommand; the rest are its arguments.
type Command []string

func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the command name or "" if there is none.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Subcommand returns the subcommand name or "" if there is none.
func (cmd Command) Subcommand() string {
	if len(cmd) < 2 {
		return ""
	}
	return cmd[1]
}

// Argument returns the nth item of the command or "" if there is none.
func (cmd Command) Argument(n int) string {
	if n < 0 || n >= len(cmd) {
		return ""
	}
	return cmd[n]
}

// SubcommandArgs returns the items after the subcommand.
func (cmd Command) SubcommandArgs() []string {
	if len(cmd) < 2 {
		return nil
	}
	return cmd[2:]
}
