package stats

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// SummaryConfig holds everything the exit summary needs beyond the raw
// output statistics.
type SummaryConfig struct {
	// Kind is "build" or "publish".
	Kind string

	// Target names what ran, e.g. the project or the store.
	Target string

	Success  bool
	Reason   string
	ExitCode int

	// ErrorCounts maps failure markers to occurrence counts, as collected
	// by the output handler.
	ErrorCounts map[string]int

	// MetricsAddr is the Prometheus endpoint, when one was serving.
	MetricsAddr string
}

// FormatExitSummary formats run statistics for display at program exit.
func FormatExitSummary(s *RunStats, cfg SummaryConfig) string {
	var b strings.Builder

	verdict := "FAILED"
	if cfg.Success {
		verdict = "SUCCEEDED"
	}

	b.WriteString("\n")
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&b, "                        buildferry %s summary\n", cfg.Kind)
	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&b, "Target:                 %s\n", cfg.Target)
	fmt.Fprintf(&b, "Result:                 %s %s\n", verdict, exitCodeLabel(cfg.ExitCode))
	if cfg.Reason != "" {
		fmt.Fprintf(&b, "Reason:                 %s\n", cfg.Reason)
	}
	fmt.Fprintf(&b, "Run Duration:           %s\n\n", FormatDuration(s.Duration()))

	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
	b.WriteString("                              Tool Output\n")
	b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

	fmt.Fprintf(&b, "  Captured:             %s in %s chunks\n",
		FormatBytes(s.Bytes()), FormatNumber(s.Chunks()))
	if s.Chunks() >= 2 {
		fmt.Fprintf(&b, "  Chunk gap p50/p95/p99: %s / %s / %s (max %s)\n",
			FormatMs(s.GapQuantile(0.50)),
			FormatMs(s.GapQuantile(0.95)),
			FormatMs(s.GapQuantile(0.99)),
			FormatMs(s.MaxGap()),
		)
	}
	b.WriteString("\n")

	if len(cfg.ErrorCounts) > 0 {
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n")
		b.WriteString("                              Failure Markers\n")
		b.WriteString("───────────────────────────────────────────────────────────────────────────────\n\n")

		patterns := make([]string, 0, len(cfg.ErrorCounts))
		for p := range cfg.ErrorCounts {
			patterns = append(patterns, p)
		}
		sort.Strings(patterns)
		for _, p := range patterns {
			fmt.Fprintf(&b, "  %-40s %6d\n", p, cfg.ErrorCounts[p])
		}
		b.WriteString("\n")
	}

	if cfg.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", cfg.MetricsAddr)
	}

	b.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")

	return b.String()
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(exit 0)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return fmt.Sprintf("(exit %d)", code)
	}
}

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatBytes formats bytes with KB/MB/GB suffixes.
func FormatBytes(n int64) string {
	if n >= 1_000_000_000 {
		return fmt.Sprintf("%.2f GB", float64(n)/1_000_000_000)
	}
	if n >= 1_000_000 {
		return fmt.Sprintf("%.2f MB", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.2f KB", float64(n)/1_000)
	}
	return fmt.Sprintf("%d B", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}
