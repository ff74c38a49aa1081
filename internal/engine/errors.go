package engine

import "fmt"

// ProjectFileNotFoundError indicates no .uproject file could be located
// under the source path (or an explicitly given project file is missing).
type ProjectFileNotFoundError struct {
	Path string
}

func (e *ProjectFileNotFoundError) Error() string {
	return fmt.Sprintf("no %s file found in: %s", projectFileExt, e.Path)
}

// VersionError indicates the engine version could not be read from the
// project file.
type VersionError struct {
	ProjectFile string
	Err         error
}

func (e *VersionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to read engine version from %s: %v", e.ProjectFile, e.Err)
	}
	return fmt.Sprintf("engine version not specified in %s", e.ProjectFile)
}

func (e *VersionError) Unwrap() error { return e.Err }

// NotInstalledError indicates the engine version required by the project is
// not installed under the configured base path.
type NotInstalledError struct {
	Version string
	Path    string
}

func (e *NotInstalledError) Error() string {
	return fmt.Sprintf("Unreal Engine %s is not installed at %s", e.Version, e.Path)
}

// ToolScriptNotFoundError indicates the UAT launch script is missing from an
// otherwise present engine installation.
type ToolScriptNotFoundError struct {
	Path string
}

func (e *ToolScriptNotFoundError) Error() string {
	return fmt.Sprintf("UAT script not found at %s", e.Path)
}
