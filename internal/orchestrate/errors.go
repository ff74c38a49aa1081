package orchestrate

import "fmt"

// ErrRunInProgress is returned when a run is requested while the
// orchestrator's session is still starting or running.
var ErrRunInProgress = fmt.Errorf("a run is already in progress for this target")

// ConfigurationError reports a missing or invalid field in a request,
// detected before any process is spawned.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Msg)
}

// BuildExistsError reports that the build output directory already exists
// and the caller did not confirm overwriting it. Nothing is deleted
// without that confirmation.
type BuildExistsError struct {
	Path string
}

func (e *BuildExistsError) Error() string {
	return fmt.Sprintf("build output directory already exists: %s", e.Path)
}
