package logging

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single tool output line
	// before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept for the exit
	// summary.
	MaxBufferedLines = 200
)

// OutputHandler processes merged output from an external build or upload
// tool. It buffers recent lines for the exit summary and mirrors notable
// lines into the structured log.
type OutputHandler struct {
	name    string
	logger  *slog.Logger
	verbose bool

	// Circular buffer for recent lines
	buffer []string
	bufIdx int
	mu     sync.Mutex
}

// NewOutputHandler creates an output handler for one tool run. name tags
// log records, e.g. "uat" or "steamcmd".
func NewOutputHandler(name string, logger *slog.Logger, verbose bool) *OutputHandler {
	return &OutputHandler{
		name:    name,
		logger:  logger,
		verbose: verbose,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// HandleChunk splits a raw output chunk into lines and processes each.
// Chunks may end mid-line; a trailing partial line is still recorded so
// nothing is lost if the process dies before the newline arrives.
func (h *OutputHandler) HandleChunk(chunk string) {
	for _, line := range strings.Split(chunk, "\n") {
		if line == "" {
			continue
		}
		h.HandleLine(strings.TrimRight(line, "\r"))
	}
}

// HandleReader reads from r and processes each line. Run in a goroutine.
func (h *OutputHandler) HandleReader(r io.Reader) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, MaxLineLength)
	scanner.Buffer(buf, MaxLineLength)

	for scanner.Scan() {
		h.HandleLine(scanner.Text())
	}
}

// HandleLine processes a single line of tool output.
func (h *OutputHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.mu.Unlock()

	h.logLine(line)
}

// logLine mirrors the line into the structured log at a level derived
// from its content.
func (h *OutputHandler) logLine(line string) {
	level := h.classifyLine(line)

	// In non-verbose mode, only surface warnings and errors.
	if !h.verbose && level == slog.LevelDebug {
		return
	}

	h.logger.Log(nil, level, "tool_output",
		"tool", h.name,
		"line", line,
	)
}

// classifyLine maps a tool output line to a log level. UAT prefixes its
// lines with LogXyz categories; steamcmd and butler use plain ERROR and
// WARNING words.
func (h *OutputHandler) classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(lower, "error") ||
		strings.Contains(lower, "exception") ||
		strings.Contains(lower, "fatal") {
		return slog.LevelWarn
	}

	if strings.Contains(lower, "warning") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns the most recent n lines from the buffer.
func (h *OutputHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		if h.buffer[idx] != "" {
			lines = append(lines, h.buffer[idx])
		}
	}
	return lines
}

// ErrorPatterns are failure markers worth counting for the exit summary.
var ErrorPatterns = []string{
	"Error:",
	"ERROR",
	"AutomationTool exiting with ExitCode",
	"Invalid API key",
	"Connection refused",
	"timeout",
	"denied",
}

// CountErrors counts occurrences of known failure markers in the buffer.
func (h *OutputHandler) CountErrors() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int)
	for _, line := range h.buffer {
		if line == "" {
			continue
		}
		for _, pattern := range ErrorPatterns {
			if strings.Contains(line, pattern) {
				counts[pattern]++
			}
		}
	}
	return counts
}
