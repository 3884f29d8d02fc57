//go:build !windows

package process

import (
	"os/exec"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait blocks on pipes held by grandchildren
// after the group was killed.
const waitDelay = 2 * time.Second

// KillProcessGroup sends SIGKILL to the process group led by pid.
func KillProcessGroup(pid int) {
	// Best effort: the group may already be gone.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// Configure starts cmd in its own process group and makes context
// cancellation kill that group.
func Configure(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			KillProcessGroup(cmd.Process.Pid)
		}
		return nil
	}
	cmd.WaitDelay = waitDelay
}
