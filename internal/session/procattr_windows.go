//go:build windows

package session

import (
	"os/exec"
	"syscall"
)

// setProcGroup gives the child its own process group; taskkill /T handles
// the descendants from there.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP,
	}
}
