package pipeline

import (
	"fmt"
	"time"

	"briefmill/internal/config"
	"briefmill/internal/runstore"
	"briefmill/internal/workspace"
)

// MaintenanceOptions carries everything the destructive modes need from
// the CLI layer. Confirm is injected so the pipeline never talks to a
// terminal directly.
type MaintenanceOptions struct {
	Config     config.Config
	Trigger    string
	DryRun     bool
	Yes        bool
	AllowDirty bool
	AllowAbort bool
	Reason     string
	CLIVersion string
	Confirm    func(prompt string) (bool, error)
	Quiet      bool
	Progress   bool
}

// RunCleanup wipes every generated artifact root and retracts the most
// recent deployment. Every invocation writes exactly one audit entry,
// whether it executed, only planned, was declined, or was blocked by a
// precondition.
func RunCleanup(opts MaintenanceOptions) error {
	cfg := opts.Config
	paths := runstore.NewPaths(cfg.Workspace)
	audit := runstore.NewAuditLog(paths.AuditPath())
	start := time.Now()

	entry := runstore.AuditEntry{
		Operator:   cfg.Operator,
		CLIVersion: opts.CLIVersion,
		Mode:       runstore.AuditModeCleanup,
		DryRun:     opts.DryRun,
		Reason:     opts.Reason,
	}
	appendAudit := func() error {
		entry.DurationSec = time.Since(start).Seconds()
		return audit.Append(entry)
	}

	if err := GuardTrigger(ModeCleanup, opts.Trigger); err != nil {
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

	plan, err := workspace.PlanRemoval(paths.GeneratedRoots()...)
	if err != nil {
		entry.Outcome = runstore.AuditOutcomeBlocked
		if auditErr := appendAudit(); auditErr != nil {
			return auditErr
		}
		return err
	}
	entry.AffectedPaths = plan.ExistingPaths()

	pub := publisherFor(cfg)
	var deploymentID string
	if pub.Configured() {
		id, listErr := pub.LatestDeploymentID()
		if listErr != nil {
			if !opts.Quiet {
				fmt.Printf("warning: could not list deployments: %v\n", listErr)
			}
		} else {
			deploymentID = id
		}
	}
	entry.DeploymentRef = deploymentID

	if !opts.Quiet {
		printPlan(plan, deploymentID)
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
		prompt := fmt.Sprintf("delete %d path(s), %s total, and retract the latest deployment?",
			len(plan.ExistingPaths()), workspace.FormatBytes(plan.TotalBytes))
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

	removed, execErr := workspace.ExecutePlan(plan)
	entry.AffectedPaths = removed
	entry.BytesFreed = bytesForPaths(plan, removed)
	entry.Outcome = runstore.AuditOutcomeExecuted
	if execErr != nil {
		entry.Outcome = runstore.AuditOutcomePartial
	}

	if deploymentID != "" {
		if retractErr := pub.Retract(deploymentID); retractErr != nil {
			if !opts.Quiet {
				fmt.Printf("warning: deployment retraction failed: %v\n", retractErr)
			}
		} else if !opts.Quiet {
			fmt.Printf("retracted deployment %s\n", deploymentID)
		}
	}

	if auditErr := appendAudit(); auditErr != nil {
		return auditErr
	}
	if execErr != nil {
		return execErr
	}
	if !opts.Quiet {
		fmt.Printf("removed %d path(s), freed %s\n", len(removed), workspace.FormatBytes(entry.BytesFreed))
	}
	return nil
}

func publisherFor(cfg config.Config) workspace.Publisher {
	return workspace.Publisher{
		Command:       cfg.Publish.Command,
		Project:       cfg.Publish.Project,
		CredentialEnv: cfg.Publish.CredentialEnv,
		Credential:    cfg.Publish.Credential,
		Dir:           cfg.Workspace,
	}
}

func printPlan(plan workspace.RemovalPlan, deploymentID string) {
	fmt.Println("removal plan:")
	for _, e := range plan.Entries {
		if !e.Exists {
			fmt.Printf("  %-50s (absent)\n", e.Path)
			continue
		}
		fmt.Printf("  %-50s %s\n", e.Path, workspace.FormatBytes(e.Bytes))
	}
	fmt.Printf("total: %s\n", workspace.FormatBytes(plan.TotalBytes))
	if deploymentID != "" {
		fmt.Printf("deployment to retract: %s\n", deploymentID)
	}
}

func bytesForPaths(plan workspace.RemovalPlan, paths []string) int64 {
	removed := make(map[string]bool, len(paths))
	for _, p := range paths {
		removed[p] = true
	}
	var total int64
	for _, e := range plan.Entries {
		if removed[e.Path] {
			total += e.Bytes
		}
	}
	return total
}
