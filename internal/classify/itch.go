package classify

import (
	"fmt"
	"strings"
)

var (
	itchSuccessMarkers = []string{
		"build is processed",
		"patch applied",
		"tasks ended.",
	}
	itchFailureMarkers = []string{
		"error:",
		"failed",
		"panic:",
		"invalid api key",
		"denied",
	}
)

// Itch classifies a butler push run. butler's exit code is more honest
// than steamcmd's, but a zero exit still needs a completion marker in the
// output before the push can be called done.
func Itch(exitCode int, log string) Result {
	if exitCode != 0 {
		return Result{Reason: fmt.Sprintf("butler exited with code %d", exitCode)}
	}

	lower := strings.ToLower(log)
	for _, marker := range itchFailureMarkers {
		if strings.Contains(lower, marker) {
			return Result{Reason: fmt.Sprintf("butler output contains %q", marker)}
		}
	}
	for _, marker := range itchSuccessMarkers {
		if strings.Contains(lower, marker) {
			return Result{Success: true, Reason: fmt.Sprintf("butler reported %q", marker)}
		}
	}

	return Result{Reason: "no completion marker in butler output"}
}
