//go:build !windows

package session

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so the terminator
// can signal the whole tree at once.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
