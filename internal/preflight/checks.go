// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Options selects which tools to check. Empty paths skip the
// corresponding check, since a build-only run has no uploader.
type Options struct {
	EngineBase   string
	SteamcmdPath string
	ButlerPath   string
	OutputDir    string
}

// RunAll executes all preflight checks.
func RunAll(opts Options) *Result {
	result := &Result{
		Checks: make([]Check, 0, 4),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkEngineBase(opts.EngineBase))
	if opts.SteamcmdPath != "" {
		add(checkExecutable("steamcmd", opts.SteamcmdPath))
	}
	if opts.ButlerPath != "" {
		add(checkButler(opts.ButlerPath))
	}
	if opts.OutputDir != "" {
		// Disk space is a warning, never a failure.
		result.Checks = append(result.Checks, checkDiskSpace(opts.OutputDir))
	}

	return result
}

// checkEngineBase verifies the engine base directory exists and counts
// the installations under it.
func checkEngineBase(base string) Check {
	if base == "" {
		return Check{
			Name:    "engine_base",
			Passed:  false,
			Message: "engine base path not configured",
		}
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		return Check{
			Name:    "engine_base",
			Passed:  false,
			Message: fmt.Sprintf("not readable at %s: %v", base, err),
		}
	}

	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "UE_") {
			versions = append(versions, strings.TrimPrefix(e.Name(), "UE_"))
		}
	}

	if len(versions) == 0 {
		return Check{
			Name:    "engine_base",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s exists but holds no UE_* installations", base),
		}
	}

	return Check{
		Name:    "engine_base",
		Passed:  true,
		Message: fmt.Sprintf("%s (versions: %s)", base, strings.Join(versions, ", ")),
	}
}

// checkExecutable verifies a tool exists at the given path and is a
// regular file.
func checkExecutable(name, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("%s is a directory, expected an executable", path),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s", path),
	}
}

// checkButler verifies butler is available and reports its version.
func checkButler(path string) Check {
	output, err := exec.Command(path, "-V").CombinedOutput()
	if err != nil {
		return Check{
			Name:    "butler",
			Passed:  false,
			Message: fmt.Sprintf("not runnable at %s: %v", path, err),
		}
	}

	// "v15.21.0, built on ..." on the first line
	version := "unknown"
	if lines := strings.Split(strings.TrimSpace(string(output)), "\n"); len(lines) > 0 {
		version = strings.SplitN(lines[0], ",", 2)[0]
	}

	return Check{
		Name:    "butler",
		Passed:  true,
		Message: fmt.Sprintf("found at %s (version %s)", path, version),
	}
}

// checkDiskSpace warns when the volume backing the output directory has
// little room left. Cooked builds routinely run tens of gigabytes.
func checkDiskSpace(outputDir string) Check {
	const recommendBytes = 10 << 30

	// The output dir may not exist yet; check its nearest existing parent.
	probe := outputDir
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(probe, &fs); err != nil {
		return Check{
			Name:    "disk_space",
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("unable to check free space on %s: %v", probe, err),
		}
	}

	free := fs.Bavail * uint64(fs.Bsize)
	return Check{
		Name:    "disk_space",
		Passed:  true,
		Warning: free < recommendBytes,
		Message: fmt.Sprintf("%.1f GiB free on %s (recommend %d GiB)", float64(free)/(1<<30), probe, recommendBytes>>30),
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "engine_base":
		return "set engine_base in the profile to the directory holding UE_<version> installations"
	case "steamcmd":
		return "install steamcmd and set steam.steamcmd_path in the profile"
	case "butler":
		return "install butler (itch.io) and set itch.butler_path in the profile"
	default:
		return "see documentation"
	}
}
