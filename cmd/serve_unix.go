//go:build !windows

package cmd

import (
	"os"
	"os/exec"
	"syscall"
)

// detach starts the background server in its own session so it survives the
// terminal that launched it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

// shutdownSignals returns the OS signals that trigger a graceful shutdown.
func shutdownSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM}
}
