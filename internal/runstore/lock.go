package runstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrLockHeld reports contention with a verifiably live holder.
var ErrLockHeld = errors.New("pipeline lock held")

// LockOwner is the lock file's content, recorded by the acquiring process.
type LockOwner struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquired_at"`
	Hostname   string `json:"hostname,omitempty"`
}

// PipelineLock is the single cross-invocation mutual-exclusion guard.
// Acquire then defer Release; Release is safe on a nil lock.
type PipelineLock struct {
	path string
}

// AcquireLock creates the lock file exclusively. An existing lock whose
// holder is still alive is contention; a stale lock (dead holder or
// unreadable owner record) is reclaimed.
func AcquireLock(path string) (*PipelineLock, error) {
	target := strings.TrimSpace(path)
	if target == "" {
		return nil, fmt.Errorf("lock path is required")
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := Mkdir(filepath.Dir(target)); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			owner := LockOwner{
				PID:        os.Getpid(),
				AcquiredAt: time.Now().UTC().Format(time.RFC3339),
				Hostname:   hostnameOrUnknown(),
			}
			if writeErr := writeLockOwner(f, owner); writeErr != nil {
				_ = f.Close()
				_ = os.Remove(target)
				return nil, fmt.Errorf("write lock owner %s: %w", target, writeErr)
			}
			if closeErr := f.Close(); closeErr != nil {
				_ = os.Remove(target)
				return nil, fmt.Errorf("close lock file %s: %w", target, closeErr)
			}
			return &PipelineLock{path: target}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("acquire pipeline lock %s: %w", target, err)
		}

		owner, readErr := ReadLockOwner(target)
		if readErr == nil && owner.PID > 0 && ProcessAlive(owner.PID) {
			return nil, fmt.Errorf(
				"%w: pid=%d acquired_at=%s host=%s",
				ErrLockHeld, owner.PID, owner.AcquiredAt, owner.Hostname,
			)
		}

		// Stale lock: holder is gone or the owner record is unreadable.
		if removeErr := os.Remove(target); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, fmt.Errorf("reclaim stale lock %s: %w", target, removeErr)
		}
	}
	return nil, fmt.Errorf("acquire pipeline lock %s: retries exhausted", target)
}

func (l *PipelineLock) Release() error {
	if l == nil || strings.TrimSpace(l.path) == "" {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("release pipeline lock %s: %w", l.path, err)
	}
	return nil
}

func ReadLockOwner(path string) (LockOwner, error) {
	var owner LockOwner
	if err := ReadJSON(path, &owner); err != nil {
		return LockOwner{}, err
	}
	return owner, nil
}

// LockStatus reports whether a lock exists and whether its holder is alive.
func LockStatus(path string) (LockOwner, bool, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return LockOwner{}, false, false, nil
		}
		return LockOwner{}, false, false, fmt.Errorf("stat lock file %s: %w", path, err)
	}
	owner, err := ReadLockOwner(path)
	if err != nil {
		// Lock exists but the owner record is unreadable: held, not alive.
		return LockOwner{}, true, false, nil
	}
	return owner, true, owner.PID > 0 && ProcessAlive(owner.PID), nil
}

// ForceRelease terminates a live holder and removes the lock file. Used
// only by the operator-authorized Reprocess pre-flight. The holder gets a
// graceful signal first, then a kill once the grace period lapses.
func ForceRelease(path string, grace time.Duration) error {
	owner, held, alive, err := LockStatus(path)
	if err != nil {
		return err
	}
	if !held {
		return nil
	}
	if alive {
		if err := terminateProcess(owner.PID, grace); err != nil {
			return fmt.Errorf("terminate lock holder pid=%d: %w", owner.PID, err)
		}
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file %s: %w", path, err)
	}
	return nil
}

func writeLockOwner(f *os.File, owner LockOwner) error {
	data, err := json.MarshalIndent(owner, "", "  ")
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
