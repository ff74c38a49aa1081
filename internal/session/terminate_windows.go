//go:build windows

package session

import (
	"fmt"
	"os/exec"
)

// taskkillTerminator shells out to taskkill, which is the only stock way on
// Windows to take down a whole process tree (/T) forcefully (/F).
type taskkillTerminator struct{}

// NewTreeTerminator returns the platform terminator.
func NewTreeTerminator() TreeTerminator {
	return &taskkillTerminator{}
}

func (t *taskkillTerminator) TerminateTree(pid int) error {
	out, err := exec.Command("taskkill", "/F", "/T", "/PID", fmt.Sprint(pid)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("taskkill pid %d: %v: %s", pid, err, out)
	}
	return nil
}
