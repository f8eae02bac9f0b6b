package cmd

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// progressReporter prints an overwriting "checked N/total" status line
// when stdout is a terminal, the same condition inspect.go gates its own
// terminal takeover on, and is a silent no-op otherwise (piped output,
// CI logs) so it never corrupts non-interactive output.
func progressReporter(label string) func(done, total int) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return func(done, total int) {}
	}
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 80
	}
	return func(done, total int) {
		line := fmt.Sprintf("\r%s: %d/%d", label, done, total)
		if len(line) > width {
			line = line[:width]
		}
		fmt.Fprint(os.Stdout, line)
		if done == total {
			fmt.Fprintln(os.Stdout)
		}
	}
}
