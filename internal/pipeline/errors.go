package pipeline

import (
	"errors"
	"fmt"
)

// Sentinels for the failure classes the CLI maps to exit codes. Lock
// contention and manifest errors come from runstore and registry; the
// worktree sentinel from workspace.
var (
	// ErrModeConflict aborts before any side effect, audit entry included.
	ErrModeConflict = errors.New("conflicting maintenance flags")

	// ErrDeclined is the operator saying no. It exits 0.
	ErrDeclined = errors.New("cancelled by operator")

	// ErrAutomationGuard blocks destructive modes on the scheduled path.
	ErrAutomationGuard = errors.New("maintenance modes require an interactive operator")
)

// ExitError carries a specific process exit code up to main, used when
// a downstream step fails and its code must propagate.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }
