//go:build windows

package runstore

import (
	"fmt"
	"os"
	"time"
)

// ProcessAlive on Windows cannot probe with signal 0; treat any lock
// owner as alive so contention is reported rather than a live holder
// being reclaimed.
func ProcessAlive(pid int) bool {
	return pid > 0
}

func terminateProcess(pid int, grace time.Duration) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	if err := proc.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	time.Sleep(grace)
	return nil
}
