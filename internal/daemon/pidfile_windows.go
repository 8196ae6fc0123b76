//go:build windows

package daemon

import (
	"fmt"
	"os"
	"syscall"
)

// Windows cannot deliver SIGTERM; both map to TerminateProcess via os.Kill.
const (
	termSignal = syscall.SIGKILL
	killSignal = syscall.SIGKILL
)

func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess opens a handle; Signal(0) fails once the process has exited.
	return proc.Signal(syscall.Signal(0)) == nil
}

func sendSignal(pid int, sig syscall.Signal) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find process %d: %w", pid, err)
	}
	return proc.Signal(sig)
}
