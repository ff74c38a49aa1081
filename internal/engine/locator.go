// Package engine resolves a source tree into a concrete build target:
// the project file, the engine version it requires, and the installed
// engine that satisfies it.
//
// The locator is the only component that touches the filesystem for
// validation. It never mutates anything.
package engine

import (
	"encoding/json"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	// projectFileExt is the extension of an Unreal project file.
	projectFileExt = ".uproject"

	// installDirPrefix is the naming convention for versioned engine
	// installs under the base path, e.g. /Epic/UE_5.5.
	installDirPrefix = "UE_"

	// DefaultSearchDepth is how many directory levels below the source
	// directory are scanned for a project file.
	DefaultSearchDepth = 1
)

// ResolvedEngine describes a fully resolved build target. It is derived
// per build and never persisted.
type ResolvedEngine struct {
	ProjectFile string // absolute or caller-relative path to the .uproject
	Version     string // engine version string, e.g. "5.5"
	InstallDir  string // verified versioned install directory
}

// uprojectFile models the fields we need from the project file. The file is
// JSON; EngineAssociation carries the required engine version.
type uprojectFile struct {
	EngineAssociation string `json:"EngineAssociation"`
}

// Locator discovers and validates engine build targets.
type Locator struct {
	logger *slog.Logger
}

// NewLocator creates a Locator. A nil logger falls back to slog.Default().
func NewLocator(logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{logger: logger}
}

// DiscoverProjectFile finds the project file for sourcePath.
//
// If sourcePath is not a directory it is returned unchanged: the caller
// already resolved it, and a missing file surfaces later in
// ResolveToolVersion. Otherwise the directory and its subdirectories up to
// maxDepth levels are scanned. With zero matches a ProjectFileNotFoundError
// is returned. With multiple matches the first in lexical walk order wins;
// this is deliberate and documented, not a smart tie-break.
func (l *Locator) DiscoverProjectFile(sourcePath string, maxDepth int) (string, error) {
	if maxDepth < 0 {
		maxDepth = DefaultSearchDepth
	}

	info, err := os.Stat(sourcePath)
	if err != nil || !info.IsDir() {
		return sourcePath, nil
	}

	var found []string
	walkErr := filepath.WalkDir(sourcePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourcePath, path)
		if relErr != nil {
			return relErr
		}
		depth := strings.Count(rel, string(os.PathSeparator))
		if d.IsDir() {
			if rel != "." && depth >= maxDepth {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(d.Name(), projectFileExt) {
			found = append(found, path)
		}
		return nil
	})
	if walkErr != nil {
		return "", &ProjectFileNotFoundError{Path: sourcePath}
	}

	if len(found) == 0 {
		return "", &ProjectFileNotFoundError{Path: sourcePath}
	}
	if len(found) > 1 {
		l.logger.Warn("multiple_project_files",
			"source", sourcePath,
			"count", len(found),
			"using", found[0],
		)
	}
	return found[0], nil
}

// ResolveToolVersion reads the project file and extracts the required
// engine version from its EngineAssociation field.
func (l *Locator) ResolveToolVersion(projectFile string) (string, error) {
	data, err := os.ReadFile(projectFile)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &ProjectFileNotFoundError{Path: projectFile}
		}
		return "", &VersionError{ProjectFile: projectFile, Err: err}
	}

	var proj uprojectFile
	if err := json.Unmarshal(data, &proj); err != nil {
		return "", &VersionError{ProjectFile: projectFile, Err: err}
	}
	if proj.EngineAssociation == "" {
		return "", &VersionError{ProjectFile: projectFile}
	}
	return proj.EngineAssociation, nil
}

// VerifyInstallation checks that the versioned install directory
// (<basePath>/UE_<version>) exists and returns it.
func (l *Locator) VerifyInstallation(basePath, version string) (string, error) {
	installDir := filepath.Join(basePath, installDirPrefix+version)
	if _, err := os.Stat(installDir); err != nil {
		return "", &NotInstalledError{Version: version, Path: installDir}
	}
	return installDir, nil
}

// Resolve runs discovery, version resolution and installation verification
// in order and bundles the result.
func (l *Locator) Resolve(sourcePath, basePath string) (ResolvedEngine, error) {
	projectFile, err := l.DiscoverProjectFile(sourcePath, DefaultSearchDepth)
	if err != nil {
		return ResolvedEngine{}, err
	}

	version, err := l.ResolveToolVersion(projectFile)
	if err != nil {
		return ResolvedEngine{}, err
	}

	installDir, err := l.VerifyInstallation(basePath, version)
	if err != nil {
		return ResolvedEngine{}, err
	}

	l.logger.Debug("engine_resolved",
		"project_file", projectFile,
		"version", version,
		"install_dir", installDir,
	)

	return ResolvedEngine{
		ProjectFile: projectFile,
		Version:     version,
		InstallDir:  installDir,
	}, nil
}

// UATScript returns the path of the UAT launch script inside an engine
// install, verifying it exists before anything is spawned.
func UATScript(installDir string) (string, error) {
	return uatScriptForOS(installDir, runtime.GOOS)
}

// uatScriptForOS is split out so tests can exercise both platforms.
func uatScriptForOS(installDir, goos string) (string, error) {
	name := "RunUAT.sh"
	if goos == "windows" {
		name = "RunUAT.bat"
	}
	script := filepath.Join(installDir, "Engine", "Build", "BatchFiles", name)
	if _, err := os.Stat(script); err != nil {
		return "", &ToolScriptNotFoundError{Path: script}
	}
	return script, nil
}
