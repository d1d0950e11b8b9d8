//go:build !windows

package executor

import (
	"os/exec"
	"syscall"
)

// configureSysProc puts the child in its own process group so a timeout
// kill reaps the whole tree, not just the direct child. The negative pid
// addresses the group.
func configureSysProc(cmd *exec.Cmd, _ bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
