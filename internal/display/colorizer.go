// Package display renders live tool output for the terminal. Lines are
// colorized by content so errors and warnings stand out while a build
// scrolls by.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorError   = lipgloss.Color("#EF4444") // Red
	colorWarning = lipgloss.Color("#F59E0B") // Amber
	colorSuccess = lipgloss.Color("#10B981") // Green
	colorCook    = lipgloss.Color("#3B82F6") // Blue

	errorStyle   = lipgloss.NewStyle().Foreground(colorError)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	cookStyle    = lipgloss.NewStyle().Foreground(colorCook)
)

// Colorize returns the line styled by its content. Lines that match no
// rule come back unchanged.
func Colorize(line string) string {
	lower := strings.ToLower(line)

	switch {
	case strings.Contains(lower, "error"):
		return errorStyle.Render(line)
	case strings.Contains(lower, "warning"):
		return warningStyle.Render(line)
	case strings.Contains(lower, "success"):
		return successStyle.Render(line)
	case strings.Contains(lower, "logcook"):
		return cookStyle.Render(line)
	default:
		return line
	}
}

// Writer streams colorized tool output to a terminal. It buffers partial
// lines across chunks so a rule never matches half a line.
type Writer struct {
	out     io.Writer
	partial strings.Builder
}

// NewWriter returns a Writer emitting to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// WriteChunk consumes one raw output chunk.
func (w *Writer) WriteChunk(chunk string) {
	w.partial.WriteString(chunk)
	buffered := w.partial.String()
	w.partial.Reset()

	for {
		idx := strings.IndexByte(buffered, '\n')
		if idx < 0 {
			// Hold the incomplete tail for the next chunk.
			w.partial.WriteString(buffered)
			return
		}
		line := strings.TrimRight(buffered[:idx], "\r")
		fmt.Fprintln(w.out, Colorize(line))
		buffered = buffered[idx+1:]
	}
}

// Flush emits any buffered partial line. Call after the final chunk.
func (w *Writer) Flush() {
	if w.partial.Len() == 0 {
		return
	}
	fmt.Fprintln(w.out, Colorize(w.partial.String()))
	w.partial.Reset()
}
