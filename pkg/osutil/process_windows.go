//go:build windows

// Package osutil holds the platform specific pieces of running subprocesses.
package osutil

import (
	"os"
	"os/exec"
	"time"
)

// GracefulShutdownDelay is defined for API consistency; Windows has no
// SIGTERM equivalent so processes are killed directly.
const GracefulShutdownDelay = 2 * time.Second

// SetProcessGroup is a no-op on Windows.
func SetProcessGroup(_ *exec.Cmd) {}

// SetProcessGroupKill sets up a cancel function that kills the process.
// Child processes may outlive it since Windows has no Unix-style process groups.
// The command must come from exec.CommandContext.
func SetProcessGroupKill(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Kill)
	}
	cmd.WaitDelay = GracefulShutdownDelay
}
