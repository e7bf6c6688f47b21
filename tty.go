package main

import (
	"os"

	"golang.org/x/term"
)

// isInteractive reports whether stdout is a terminal the TUI can take over.
// tcell reads keys from /dev/tty itself, so piped stdin is fine.
func isInteractive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
