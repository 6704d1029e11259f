package model

import "fmt"

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusTimeout = "timeout"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
	},
	StatusPending: {
		StatusPending: true,
		StatusRunning: true,
		StatusFailure: true,
	},
	StatusRunning: {
		StatusRunning: true,
		StatusSuccess: true,
		StatusFailure: true,
		StatusTimeout: true,
	},
	StatusSuccess: {
		StatusSuccess: true,
	},
	StatusFailure: {
		StatusFailure: true,
	},
	StatusTimeout: {
		StatusTimeout: true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminalStatus(status string) bool {
	switch status {
	case StatusSuccess, StatusFailure, StatusTimeout:
		return true
	}
	return false
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// TransitionStatus validates and applies a status move for the named job.
// The current status is passed by pointer so callers mutate their own
// tracking slot, never a shared Job.
func TransitionStatus(current *string, to string, jobName string) error {
	from := *current
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job=%s)", from, to, jobName)
	}
	*current = to
	return nil
}
