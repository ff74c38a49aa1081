// Package classify maps the exit code and captured output of an external
// tool run to a success or failure verdict.
//
// The store classifiers are heuristic substring matches over third-party
// tool output. The wrapped tools offer no structured result channel, so if
// a tool changes its phrasing these checks silently degrade. Keep the
// markers in sync with the tool versions actually deployed.
package classify

import "fmt"

// Result is the verdict for one completed run.
type Result struct {
	Success bool
	Reason  string
}

// Func decides success or failure from the exit code and the accumulated
// merged output of a finished process. Implementations must be pure.
type Func func(exitCode int, log string) Result

// Default treats a clean zero exit as success and inspects no output. It
// is the classifier for build tool runs, where the exit code is reliable.
func Default(exitCode int, _ string) Result {
	if exitCode == 0 {
		return Result{Success: true, Reason: "exit code 0"}
	}
	return Result{Reason: fmt.Sprintf("exit code %d", exitCode)}
}
