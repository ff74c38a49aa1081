// Package session runs one external command as a supervised child process:
// merged live output streaming, cooperative-then-forceful cancellation of
// the whole process tree, and exactly-once terminal notification.
package session

// State represents the lifecycle state of a session.
//
// Transitions: Idle -> Starting -> Running -> {Finished, Cancelled}.
// Starting may short-circuit to FailedToStart without ever passing through
// Running. A terminal state is only left by an explicit new Start call,
// which re-enters Starting.
type State int

const (
	// StateIdle is the initial state before Start has been called.
	StateIdle State = iota

	// StateStarting indicates the child process is being spawned.
	StateStarting

	// StateRunning indicates the child process is actively running.
	StateRunning

	// StateFinished indicates the process exited on its own.
	StateFinished

	// StateCancelled indicates the process was terminated on request.
	StateCancelled

	// StateFailedToStart indicates the process never came up.
	StateFailedToStart
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	case StateFailedToStart:
		return "failed_to_start"
	default:
		return "unknown"
	}
}

// IsActive returns true while a start is in flight or a process is running.
func (s State) IsActive() bool {
	return s == StateStarting || s == StateRunning
}

// IsTerminal returns true for states a new Start call may leave from.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled || s == StateFailedToStart
}

// ExitStatus distinguishes a normal process exit from a crash or kill.
type ExitStatus int

const (
	// ExitNormal means the process exited by itself, regardless of code.
	ExitNormal ExitStatus = iota

	// ExitCrash means the process died from a signal, was killed, or
	// never reached a normal exit. Synthesized for failed starts.
	ExitCrash
)

// String returns "normal" or "crash".
func (s ExitStatus) String() string {
	if s == ExitNormal {
		return "normal"
	}
	return "crash"
}
