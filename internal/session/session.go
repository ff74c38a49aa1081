package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/buildferry/buildferry/internal/command"
)

const (
	// startTimeout bounds how long a spawn may take to confirm. Only the
	// start and the post-kill waits are bounded; a running build can
	// legitimately take tens of minutes and is never timed out here.
	startTimeout = 5 * time.Second

	// cancelWait bounds how long Cancel waits for exit confirmation after
	// the process tree has been told to die.
	cancelWait = 2 * time.Second

	readChunkSize = 4096
)

// ErrAlreadyRunning is returned by Start when a process for this session is
// still starting or running. Concurrent runs for the same logical target
// are rejected, never queued.
var ErrAlreadyRunning = errors.New("a process is already running for this session")

// ProcessErrorKind classifies process-level failures.
type ProcessErrorKind int

const (
	// ProcessFailedToStart means the child never came up.
	ProcessFailedToStart ProcessErrorKind = iota

	// ProcessCrashed means the child died without a normal exit.
	ProcessCrashed
)

// ProcessError is a process-level failure, delivered through the terminal
// callback rather than thrown across the async boundary.
type ProcessError struct {
	Kind ProcessErrorKind
	Err  error
}

func (e *ProcessError) Error() string {
	switch e.Kind {
	case ProcessFailedToStart:
		return fmt.Sprintf("process failed to start: %v", e.Err)
	default:
		return fmt.Sprintf("process crashed: %v", e.Err)
	}
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Outcome is the terminal result of one spawned invocation.
type Outcome struct {
	ExitCode int
	Status   ExitStatus
	Err      error // non-nil for FailedToStart and crash-without-wait paths
}

// Callbacks contains optional callback functions for session events.
// OnOutput chunks arrive in the order the process emitted them; OnTerminal
// is always the last callback and fires exactly once per Start.
type Callbacks struct {
	OnStateChange func(old, new State)
	OnOutput      func(chunk string)
	OnTerminal    func(Outcome)
}

// Config holds configuration for creating a Session.
type Config struct {
	// Name identifies the logical target (build target or store) in logs.
	Name string

	Logger    *slog.Logger
	Callbacks Callbacks

	// Terminator overrides the platform process-tree terminator. Nil uses
	// the real one; tests inject fakes.
	Terminator TreeTerminator
}

// Session owns the runtime state of one spawned invocation. One session
// serves one invocation at a time; an explicit new Start from a terminal
// state reuses the session for a retry.
type Session struct {
	id         string
	name       string
	logger     *slog.Logger
	callbacks  Callbacks
	terminator TreeTerminator

	mu            sync.Mutex
	state         State
	cmd           *exec.Cmd
	logBuf        strings.Builder
	outcome       Outcome
	cancelled     bool
	terminalFired bool
	done          chan struct{}
}

// New creates an idle session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	terminator := cfg.Terminator
	if terminator == nil {
		terminator = NewTreeTerminator()
	}

	// Nothing is running yet, so Done starts closed.
	done := make(chan struct{})
	close(done)

	return &Session{
		id:         uuid.NewString(),
		name:       cfg.Name,
		logger:     logger,
		callbacks:  cfg.Callbacks,
		terminator: terminator,
		state:      StateIdle,
		done:       done,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Log returns the accumulated merged output so far.
func (s *Session) Log() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logBuf.String()
}

// Outcome returns the terminal outcome of the last run. Zero value until a
// run has terminated.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done returns a channel closed once the current run has terminated (after
// the terminal callback has returned).
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start spawns cmd with merged stdout/stderr and begins streaming output.
// It returns ErrAlreadyRunning while a previous run is active, and a
// ProcessError when the child cannot be brought up; in the latter case the
// terminal callback still fires with a synthesized crash outcome.
func (s *Session) Start(cmd command.External) error {
	s.mu.Lock()
	if s.state.IsActive() {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.logBuf.Reset()
	s.outcome = Outcome{}
	s.cancelled = false
	s.terminalFired = false
	s.cmd = nil
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.setState(StateStarting)

	if _, err := os.Stat(cmd.Path); err != nil {
		return s.failStart(fmt.Errorf("executable not found at %s: %w", cmd.Path, err))
	}

	ecmd := exec.Command(cmd.Path, cmd.Args...)
	ecmd.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		env := os.Environ()
		for k, v := range cmd.Env {
			env = append(env, k+"="+v)
		}
		ecmd.Env = env
	}
	setProcGroup(ecmd)

	// Single merged stream: downstream classifiers scan mixed text, and
	// interleaving order is best preserved by sharing one pipe.
	pr, pw, err := os.Pipe()
	if err != nil {
		return s.failStart(fmt.Errorf("output pipe: %w", err))
	}
	ecmd.Stdout = pw
	ecmd.Stderr = pw

	started := make(chan error, 1)
	go func() { started <- ecmd.Start() }()

	select {
	case err := <-started:
		if err != nil {
			pw.Close()
			pr.Close()
			return s.failStart(err)
		}
	case <-time.After(startTimeout):
		// If the spawn eventually lands, reap it so nothing is orphaned.
		go func() {
			if err := <-started; err == nil {
				_ = s.terminator.TerminateTree(ecmd.Process.Pid)
				_ = ecmd.Wait()
			}
			pw.Close()
			pr.Close()
		}()
		return s.failStart(fmt.Errorf("process did not start within %s", startTimeout))
	}

	// Close the parent's write end so the reader sees EOF when the child
	// (and any inheritors of the fd) exit.
	pw.Close()

	s.mu.Lock()
	s.cmd = ecmd
	s.mu.Unlock()
	s.setState(StateRunning)

	s.logger.Info("process_started",
		"session_id", s.id,
		"name", s.name,
		"pid", ecmd.Process.Pid,
	)

	go s.supervise(ecmd, pr)
	return nil
}

// Run starts cmd and blocks until the run terminates. Context cancellation
// triggers Cancel and still waits for the terminal outcome, so the caller
// always gets the final accumulated log.
func (s *Session) Run(ctx context.Context, cmd command.External) (Outcome, error) {
	if err := s.Start(cmd); err != nil {
		return s.Outcome(), err
	}

	select {
	case <-s.Done():
	case <-ctx.Done():
		s.Cancel()
		<-s.Done()
	}
	return s.Outcome(), nil
}

// CancelResult reports what Cancel did.
type CancelResult struct {
	// NothingToCancel is set when no process was running. This is not an
	// error.
	NothingToCancel bool

	// Warning is set when termination was issued but could not be
	// confirmed. The session still transitions to Cancelled.
	Warning string
}

// Cancel terminates the whole process tree of the current run and waits a
// bounded time for confirmation.
func (s *Session) Cancel() CancelResult {
	s.mu.Lock()
	if !s.state.IsActive() || s.cmd == nil || s.cmd.Process == nil {
		s.mu.Unlock()
		return CancelResult{NothingToCancel: true}
	}
	s.cancelled = true
	pid := s.cmd.Process.Pid
	done := s.done
	s.mu.Unlock()

	s.logger.Info("cancelling_process_tree",
		"session_id", s.id,
		"name", s.name,
		"pid", pid,
	)

	var warning string
	if err := s.terminator.TerminateTree(pid); err != nil {
		warning = fmt.Sprintf("termination failed: %v", err)
		s.logger.Warn("terminate_tree_failed",
			"session_id", s.id,
			"pid", pid,
			"error", err,
		)
	}

	select {
	case <-done:
	case <-time.After(cancelWait):
		if warning == "" {
			warning = fmt.Sprintf("process did not exit within %s of termination", cancelWait)
		}
		s.logger.Warn("cancel_confirmation_timeout",
			"session_id", s.id,
			"pid", pid,
		)
		// The session is still considered cancelled; the supervise
		// goroutine will reap the process whenever it finally dies.
		s.fireTerminal(Outcome{
			ExitCode: -1,
			Status:   ExitCrash,
			Err:      &ProcessError{Kind: ProcessCrashed, Err: errors.New("termination not confirmed")},
		}, StateCancelled)
	}

	return CancelResult{Warning: warning}
}

// supervise drains the output pipe, reaps the process and fires the
// terminal notification. Runs in its own goroutine per invocation.
func (s *Session) supervise(ecmd *exec.Cmd, pr *os.File) {
	s.readLoop(pr)
	pr.Close()

	waitErr := ecmd.Wait()
	out := outcomeFromWait(waitErr)

	s.mu.Lock()
	cancelled := s.cancelled
	s.mu.Unlock()

	final := StateFinished
	if cancelled {
		final = StateCancelled
	}

	s.logger.Info("process_exited",
		"session_id", s.id,
		"name", s.name,
		"exit_code", out.ExitCode,
		"exit_status", out.Status.String(),
		"cancelled", cancelled,
	)

	s.fireTerminal(out, final)
}

// readLoop forwards output chunks as they become available. Decoding is
// best effort: invalid sequences are replaced, never fatal.
func (s *Session) readLoop(r io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := strings.ToValidUTF8(string(buf[:n]), "�")
			s.mu.Lock()
			s.logBuf.WriteString(chunk)
			s.mu.Unlock()
			if s.callbacks.OnOutput != nil {
				s.callbacks.OnOutput(chunk)
			}
		}
		if err != nil {
			return
		}
	}
}

// failStart handles every path where the child never came up. The state
// machine goes Starting -> FailedToStart without passing through Running.
func (s *Session) failStart(cause error) error {
	perr := &ProcessError{Kind: ProcessFailedToStart, Err: cause}
	s.logger.Error("process_failed_to_start",
		"session_id", s.id,
		"name", s.name,
		"error", cause,
	)
	s.fireTerminal(Outcome{ExitCode: -1, Status: ExitCrash, Err: perr}, StateFailedToStart)
	return perr
}

// fireTerminal records the outcome, moves to the final state and delivers
// the terminal callback exactly once. Done closes only after the callback
// returns, keeping OnTerminal the last event observers see.
func (s *Session) fireTerminal(out Outcome, final State) {
	s.mu.Lock()
	if s.terminalFired {
		s.mu.Unlock()
		return
	}
	s.terminalFired = true
	s.outcome = out
	done := s.done
	s.mu.Unlock()

	s.setState(final)
	if s.callbacks.OnTerminal != nil {
		s.callbacks.OnTerminal(out)
	}
	close(done)
}

// setState updates the state and notifies the callback if registered.
func (s *Session) setState(newState State) {
	s.mu.Lock()
	oldState := s.state
	s.state = newState
	s.mu.Unlock()

	if s.callbacks.OnStateChange != nil && oldState != newState {
		s.callbacks.OnStateChange(oldState, newState)
	}
}

// outcomeFromWait maps a Wait error onto exit code and status. Signal
// deaths report 128+signal with a crash status.
func outcomeFromWait(err error) Outcome {
	if err == nil {
		return Outcome{ExitCode: 0, Status: ExitNormal}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return Outcome{
					ExitCode: 128 + int(status.Signal()),
					Status:   ExitCrash,
					Err:      &ProcessError{Kind: ProcessCrashed, Err: err},
				}
			}
			return Outcome{ExitCode: status.ExitStatus(), Status: ExitNormal}
		}
		return Outcome{ExitCode: exitErr.ExitCode(), Status: ExitNormal}
	}

	return Outcome{
		ExitCode: -1,
		Status:   ExitCrash,
		Err:      &ProcessError{Kind: ProcessCrashed, Err: err},
	}
}
