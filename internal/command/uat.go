package command

import (
	"fmt"

	"github.com/buildferry/buildferry/internal/engine"
)

// Platform is a packaging target platform as UAT spells it.
type Platform string

const (
	PlatformWin64 Platform = "Win64"
	PlatformWin32 Platform = "Win32"
	PlatformMacOS Platform = "Mac"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformWin64, PlatformWin32, PlatformMacOS:
		return true
	}
	return false
}

// Configuration is a client build configuration as UAT spells it.
type Configuration string

const (
	ConfigDevelopment Configuration = "Development"
	ConfigShipping    Configuration = "Shipping"
)

// Valid reports whether c is a known configuration.
func (c Configuration) Valid() bool {
	return c == ConfigDevelopment || c == ConfigShipping
}

// BuildRequest describes one packaging run. Immutable once constructed;
// owned exclusively by the orchestrator running it.
type BuildRequest struct {
	// SourcePath is the directory containing the .uproject, or the
	// .uproject path itself.
	SourcePath string

	// EngineBase is the directory holding versioned engine installs
	// (e.g. /Epic, containing UE_5.5).
	EngineBase string

	Platform      Platform
	Configuration Configuration

	// Clean forces a full rebuild.
	Clean bool

	// OutputDir is where the packaged build is archived. An existing
	// directory is a conflict requiring explicit confirmation upstream.
	OutputDir string

	// StoreOptimized adds Valve's recommended padding-alignment arguments
	// so Steam patch deltas stay small.
	StoreOptimized bool
}

// BuildCookRun builds the UAT invocation for req. The argument order is
// fixed: project reference, -noP4, platform, client configuration, the
// phase sequence, optional -clean, the archive flags, and the optional
// padding flags. Callers verify the script path via engine.UATScript
// before anything is spawned.
func BuildCookRun(uatScript string, req BuildRequest, eng engine.ResolvedEngine) External {
	args := []string{
		"BuildCookRun",
		fmt.Sprintf(`-project="%s"`, eng.ProjectFile),
		"-noP4",
		fmt.Sprintf("-platform=%s", req.Platform),
		fmt.Sprintf("-clientconfig=%s", req.Configuration),
		"-build",
		"-cook",
		"-stage",
		"-pak",
		"-prereqs",
	}

	if req.Clean {
		args = append(args, "-clean")
	}

	args = append(args,
		"-archive",
		fmt.Sprintf(`-archivedirectory="%s"`, req.OutputDir),
	)

	if req.StoreOptimized {
		args = append(args, "-patchpaddingalign=1048576", "-blocksize=1048576")
	}

	return External{Path: uatScript, Args: args}
}
