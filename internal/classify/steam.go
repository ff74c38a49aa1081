package classify

import (
	"fmt"
	"strings"
)

const (
	steamLoginMarker = "to steam public...ok"

	// Either phrase confirms the upload completed; steamcmd has used both
	// across releases.
	steamBuildMarkerA = "app build successful"
	steamBuildMarkerB = "successfully finished"
)

// Steam classifies a steamcmd upload run. steamcmd exits 0 even when a
// build fails partway, so the log has to carry the weight: the login and
// build markers must both be present and no failure word may appear.
func Steam(exitCode int, log string) Result {
	if exitCode != 0 {
		return Result{Reason: fmt.Sprintf("steamcmd exited with code %d", exitCode)}
	}

	lower := strings.ToLower(log)
	if !strings.Contains(lower, steamLoginMarker) {
		return Result{Reason: "no login confirmation in steamcmd output"}
	}
	if !strings.Contains(lower, steamBuildMarkerA) && !strings.Contains(lower, steamBuildMarkerB) {
		return Result{Reason: "no build confirmation in steamcmd output"}
	}

	// A channel or path containing "stderr" would trip the "error" check,
	// so drop that token before scanning for failure words.
	scrubbed := strings.ReplaceAll(lower, "stderr", "")
	for _, word := range []string{"error", "failed"} {
		if strings.Contains(scrubbed, word) {
			return Result{Reason: fmt.Sprintf("steamcmd output contains %q", word)}
		}
	}

	return Result{Success: true, Reason: "app build confirmed by steamcmd"}
}
