// Package colors provides the small set of colored sprint helpers used by
// the CLI's error and hint rendering. It intentionally has no TUI/graph
// rendering dependency: that layer is an out-of-scope collaborator (see
// spec.md §1), so pk only needs plain ANSI coloring, not a terminal UI
// framework.
package colors

import (
	"os"

	"github.com/fatih/color"
)

func init() {
	if os.Getenv("PANCAKE_NO_COLOR") != "" {
		color.NoColor = true
	}
}

var (
	CliCmdC          = color.New(color.FgMagenta)
	SuccessC         = color.New(color.FgGreen)
	FailureC         = color.New(color.FgRed)
	TroubleshootingC = color.New(color.Faint)
	UserInputC       = color.New(color.FgCyan)
	FaintC           = color.New(color.Faint)
)

var (
	CliCmd          = CliCmdC.Sprint
	Success         = SuccessC.Sprint
	Failure         = FailureC.Sprint
	Troubleshooting = TroubleshootingC.Sprint
	UserInput       = UserInputC.Sprint
	Faint           = FaintC.Sprint
)
