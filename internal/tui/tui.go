// Package tui is the interactive selection panel. It renders controller events and turns
// key presses into intents; it holds no workspace state of its own.
package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/temirov/contextkit/internal/controller"
)

// Session is the controller surface the panel drives.
type Session interface {
	Submit(ctx context.Context, intent controller.Intent) error
	Events() <-chan controller.Event
}

// Options configures Run.
type Options struct {
	Session Session
	// Input and Output default to the terminal.
	Input  io.Reader
	Output io.Writer
}

// Run shows the panel until the user quits or ctx is done.
func Run(ctx context.Context, options Options) error {
	programOptions := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if options.Input != nil {
		programOptions = append(programOptions, tea.WithInput(options.Input))
	}
	if options.Output != nil {
		programOptions = append(programOptions, tea.WithOutput(options.Output))
	}
	program := tea.NewProgram(newModel(ctx, options.Session), programOptions...)
	_, err := program.Run()
	return err
}
