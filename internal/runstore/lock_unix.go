//go:build !windows

package runstore

import (
	"fmt"
	"syscall"
	"time"
)

// ProcessAlive reports whether a PID refers to a live process. Signal 0
// probes without delivering; EPERM still means the process exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// terminateProcess asks the holder to exit with SIGTERM, waits up to the
// grace period, then escalates to SIGKILL. Returns an error if the
// process survives both.
func terminateProcess(pid int, grace time.Duration) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("signal pid %d: %w", pid, err)
	}
	if waitGone(pid, grace) {
		return nil
	}
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	if waitGone(pid, grace) {
		return nil
	}
	return fmt.Errorf("pid %d is still alive after SIGKILL", pid)
}

func waitGone(pid int, grace time.Duration) bool {
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !ProcessAlive(pid) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return !ProcessAlive(pid)
}
