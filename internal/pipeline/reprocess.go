package pipeline

import (
	"fmt"
	"time"

	"briefmill/internal/model"
	"briefmill/internal/runstore"
	"briefmill/internal/workspace"
)

// forceReleaseGrace is how long an aborted lock holder gets to exit
// after the graceful signal before it is killed.
const forceReleaseGrace = 5 * time.Second

// RunReprocess discards everything today's run produced, including the
// completion marker, and falls through to a fresh normal run. The whole
// invocation is recorded as one audit entry whose duration covers the
// rerun.
func RunReprocess(opts MaintenanceOptions) error {
	cfg := opts.Config
	runDate := cfg.RunDate
	paths := runstore.NewPaths(cfg.Workspace)
	audit := runstore.NewAuditLog(paths.AuditPath())
	start := time.Now()

	entry := runstore.AuditEntry{
		Operator:   cfg.Operator,
		CLIVersion: opts.CLIVersion,
		Mode:       runstore.AuditModeReprocess,
		DryRun:     opts.DryRun,
		Reason:     opts.Reason,
	}
	appendAudit := func() error {
		entry.DurationSec = time.Since(start).Seconds()
		return audit.Append(entry)
	}

	if err := GuardTrigger(ModeReprocess, opts.Trigger); err != nil {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return err
	}

	status, worktreeErr := workspace.EnsureCleanWorktree(cfg.Maintenance.GitCommand, cfg.Workspace, opts.AllowDirty)
	entry.WorktreeClean = status.Clean
	entry.DirtyFiles = status.DirtyFiles
	if cfg.Maintenance.RequireCleanTree && worktreeErr != nil {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return worktreeErr
	}

	owner, held, alive, lockErr := runstore.LockStatus(paths.LockPath())
	if lockErr != nil {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return lockErr
	}
	if held && alive && !opts.AllowAbort {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return fmt.Errorf("%w: pid=%d acquired_at=%s, wait for it or rerun with --allow-abort",
			runstore.ErrLockHeld, owner.PID, owner.AcquiredAt)
	}

	plan, err := workspace.PlanRemoval(paths.RunScopedPaths(runDate)...)
	if err != nil {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return err
	}
	entry.AffectedPaths = plan.ExistingPaths()

	if !opts.Quiet {
		fmt.Printf("reprocess %s: discarding this run's outputs\n", runDate)
		printPlan(plan, "")
		if held && alive {
			fmt.Printf("a run is in progress (pid %d); it will be aborted\n", owner.PID)
		}
	}

	if opts.DryRun {
		entry.Outcome = runstore.AuditOutcomePlanned
		entry.BytesFreed = plan.TotalBytes
		if !opts.Quiet {
			fmt.Println("dry run: nothing was removed")
		}
		return appendAudit()
	}

	if !opts.Yes {
		prompt := fmt.Sprintf("discard %d path(s) for %s and rerun the pipeline?", len(plan.ExistingPaths()), runDate)
		if held && alive {
			prompt = fmt.Sprintf("abort the running pipeline (pid %d), discard %d path(s) for %s, and rerun?",
				owner.PID, len(plan.ExistingPaths()), runDate)
		}
		ok, confirmErr := opts.Confirm(prompt)
		if confirmErr != nil {
			entry.Outcome = runstore.AuditOutcomeBlocked
			if auditErr := appendAudit(); auditErr != nil {
				return auditErr
			}
			return confirmErr
		}
		if !ok {
			entry.Outcome = runstore.AuditOutcomeDeclined
			if auditErr := appendAudit(); auditErr != nil {
				return auditErr
			}
			return ErrDeclined
		}
	}

	if held && alive {
		if err := runstore.ForceRelease(paths.LockPath(), forceReleaseGrace); err != nil {
			entry.Outcome = runstore.AuditOutcomeBlocked
			if auditErr := appendAudit(); auditErr != nil {
				return auditErr
			}
			return err
		}
		if !opts.Quiet {
			fmt.Printf("aborted pid %d and released the lock\n", owner.PID)
		}
	}

	removed, execErr := workspace.ExecutePlan(plan)
	entry.AffectedPaths = removed
	entry.BytesFreed = bytesForPaths(plan, removed)
	if execErr != nil {
		entry.Outcome = runstore.AuditOutcomePartial
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return execErr
	}
	entry.Outcome = runstore.AuditOutcomeExecuted

	runErr := RunNormal(RunOptions{
		Config:   cfg,
		Override: &OverrideInfo{Operator: cfg.Operator, Reason: opts.Reason},
		Trigger:  model.TriggerOperator,
		Progress: opts.Progress,
		Quiet:    opts.Quiet,
	})

	if summary, ok := ReadPublishSummary(paths, runDate); ok {
		entry.DeploymentRef = summary.DeploymentID
	}
	if auditErr := appendAudit(); auditErr != nil {
		return auditErr
	}
	return runErr
}
