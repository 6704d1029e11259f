package pipeline

import (
	"fmt"

	"briefmill/internal/model"
)

type Mode int

const (
	ModeNormal Mode = iota
	ModeCleanup
	ModeReprocess
)

func (m Mode) String() string {
	switch m {
	case ModeCleanup:
		return "cleanup"
	case ModeReprocess:
		return "reprocess"
	default:
		return "normal"
	}
}

// ModeFlags mirrors the mode-selecting CLI flags. The two names per
// mode are aliases.
type ModeFlags struct {
	CleanupAll     bool
	ResetWorkspace bool
	ReprocessToday bool
	ForceToday     bool
}

// ResolveMode picks exactly one mode from the flags. Selecting both a
// cleanup and a reprocess flag is a configuration error that must abort
// before any side effect.
func ResolveMode(f ModeFlags) (Mode, error) {
	cleanup := f.CleanupAll || f.ResetWorkspace
	reprocess := f.ReprocessToday || f.ForceToday
	switch {
	case cleanup && reprocess:
		return ModeNormal, fmt.Errorf("%w: cleanup and reprocess flags are mutually exclusive", ErrModeConflict)
	case cleanup:
		return ModeCleanup, nil
	case reprocess:
		return ModeReprocess, nil
	default:
		return ModeNormal, nil
	}
}

// GuardTrigger rejects destructive modes on the automated trigger path.
func GuardTrigger(mode Mode, trigger string) error {
	if mode == ModeNormal {
		return nil
	}
	if trigger == model.TriggerAutomation {
		return fmt.Errorf("%w: %s mode was requested from the automation trigger", ErrAutomationGuard, mode)
	}
	return nil
}
