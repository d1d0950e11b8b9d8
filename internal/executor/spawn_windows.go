//go:build windows

package executor

import (
	"os/exec"
	"syscall"
)

// configureSysProc suppresses the console window unless the caller asked to
// see it, and kills the direct child on timeout.
func configureSysProc(cmd *exec.Cmd, showWindow bool) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: !showWindow}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
}
