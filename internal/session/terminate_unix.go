//go:build !windows

package session

import (
	"syscall"
	"time"
)

// groupTerminator kills the process group with SIGTERM first, giving the
// tree a short window to shut down cleanly, then follows with SIGKILL.
type groupTerminator struct {
	// grace is how long to wait between SIGTERM and SIGKILL.
	grace time.Duration
}

// NewTreeTerminator returns the platform terminator. Processes must have
// been spawned in their own process group (the session does this).
func NewTreeTerminator() TreeTerminator {
	return &groupTerminator{grace: 500 * time.Millisecond}
}

func (t *groupTerminator) TerminateTree(pid int) error {
	pgid, err := syscall.Getpgid(pid)
	if err != nil {
		// Process already gone, or not ours. Fall back to the pid itself.
		pgid = pid
	}

	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return err
	}

	// Poll for the group to disappear within the grace window before
	// escalating. Signal 0 probes without delivering anything.
	deadline := time.Now().Add(t.grace)
	for time.Now().Before(deadline) {
		if syscall.Kill(-pgid, 0) != nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	return syscall.Kill(-pgid, syscall.SIGKILL)
}
