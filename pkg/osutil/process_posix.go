//go:build unix

// Package osutil holds the platform specific pieces of running subprocesses.
package osutil

import (
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// GracefulShutdownDelay is how long a cancelled process group gets between
// SIGTERM and SIGKILL.
const GracefulShutdownDelay = 2 * time.Second

// SetProcessGroup configures the command to run in its own process group.
// This allows killing the entire process tree on timeout, which matters for
// git since it forks helpers (ssh, git-remote-https, index-pack).
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SetProcessGroupKill sets up a cancel function that terminates the whole
// process group: SIGTERM first, SIGKILL after GracefulShutdownDelay.
// The command must come from exec.CommandContext, and this must be called
// after SetProcessGroup and before cmd.Start().
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		pgid := -cmd.Process.Pid
		if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil {
			if errors.Is(err, syscall.ESRCH) {
				return nil
			}
			return err
		}
		go func() {
			time.Sleep(GracefulShutdownDelay)
			_ = syscall.Kill(pgid, syscall.SIGKILL)
		}()
		return nil
	}
	cmd.WaitDelay = GracefulShutdownDelay + time.Second
}
