package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/temirov/contextkit/internal/types"
)

// StatusPrinter writes user-facing status lines, green for info and yellow for warnings.
type StatusPrinter struct {
	writer  io.Writer
	info    *color.Color
	warning *color.Color
}

// NewStatusPrinter builds a printer. Colour is applied only when colorize is true.
func NewStatusPrinter(writer io.Writer, colorize bool) *StatusPrinter {
	info := color.New(color.FgGreen)
	warning := color.New(color.FgYellow)
	if colorize {
		info.EnableColor()
		warning.EnableColor()
	} else {
		info.DisableColor()
		warning.DisableColor()
	}
	return &StatusPrinter{writer: writer, info: info, warning: warning}
}

// Print writes message at level.
func (printer *StatusPrinter) Print(level types.StatusLevel, message string) {
	if printer == nil || printer.writer == nil || message == "" {
		return
	}
	selected := printer.info
	if level == types.StatusLevelWarning {
		selected = printer.warning
	}
	_, _ = selected.Fprintln(printer.writer, message)
}

// IsTerminal reports whether writer is an interactive terminal.
func IsTerminal(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile {
		return false
	}
	return isatty.IsTerminal(file.Fd()) || isatty.IsCygwinTerminal(file.Fd())
}
