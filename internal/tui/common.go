// Package tui implements the terminal user interface using Bubble Tea.
package tui

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Common key binding constants.
const (
	KeyCtrlC    = "ctrl+c"
	KeyCtrlJ    = "ctrl+j"
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyPgUp     = "pgup"
	KeyPgDown   = "pgdown"
)

// IsTTY returns true if stdout is connected to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Run starts the TUI program with the given model.
// If stdout is a TTY, it runs in alternate screen mode.
// Otherwise, it prints guidance towards the non-interactive commands.
func Run(m tea.Model) error {
	if IsTTY() {
		p := tea.NewProgram(m, tea.WithAltScreen())
		_, err := p.Run()
		return err
	}
	return runFallback(os.Stdout)
}

// runFallback handles non-TTY execution.
func runFallback(w io.Writer) error {
	fmt.Fprintln(w, "Non-TTY environment detected.")
	fmt.Fprintln(w, "Use 'fleet status <job-id>' to inspect a job non-interactively.")
	return nil
}
