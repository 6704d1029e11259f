// Package cli is the operator surface: the pipeline entrypoint with its
// maintenance-mode flags, plus the inspection subcommands.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"briefmill/internal/config"
	"briefmill/internal/model"
	"briefmill/internal/pipeline"
	"briefmill/internal/version"
)

// Run executes one CLI invocation against a freshly built command tree,
// so tests can call it repeatedly without shared flag state.
func Run(args []string) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

type rootOptions struct {
	workspace  string
	date       string
	automation bool
	quiet      bool
	noProgress bool

	cleanupAll     bool
	resetWorkspace bool
	reprocessToday bool
	forceToday     bool
	dryRun         bool
	yes            bool
	allowDirty     bool
	allowAbort     bool
	reason         string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "briefmill",
		Short: "daily brief generation pipeline",
		Long: `briefmill runs a manifest of generation jobs once per day, renders and
publishes the aggregate report, and guards the two destructive
maintenance modes (workspace reset, same-day reprocess) behind
pre-flight checks, confirmation, and an audit trail.`,
		Version:       version.Value,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Flag errors surface with usage text; once parsing has
			// succeeded, runtime errors should not repeat it.
			cmd.SilenceUsage = true
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.workspace, "workspace", "", `workspace root (default ".")`)
	pf.StringVar(&opts.date, "date", "", "run date override, YYYY-MM-DD (default today)")

	f := cmd.Flags()
	f.BoolVar(&opts.cleanupAll, "cleanup-all", false, "delete all generated artifacts and retract the latest deployment")
	f.BoolVar(&opts.resetWorkspace, "reset-workspace", false, "alias for --cleanup-all")
	f.BoolVar(&opts.reprocessToday, "reprocess-today", false, "discard today's run and execute it again")
	f.BoolVar(&opts.forceToday, "force-today", false, "alias for --reprocess-today")
	f.BoolVar(&opts.dryRun, "dry-run", false, "show what a maintenance mode would do without changing anything")
	f.BoolVar(&opts.yes, "yes", false, "skip the confirmation prompt")
	f.BoolVar(&opts.allowDirty, "allow-dirty", false, "proceed even when the working tree has uncommitted changes")
	f.BoolVar(&opts.allowAbort, "allow-abort", false, "authorize terminating a running pipeline instance (reprocess only)")
	f.BoolVar(&opts.automation, "automation", false, "mark this invocation as the scheduled trigger (blocks maintenance modes)")
	f.StringVar(&opts.reason, "reason", "", "free-text reason recorded in the audit entry")
	f.BoolVar(&opts.quiet, "quiet", false, "suppress per-job output")
	f.BoolVar(&opts.noProgress, "no-progress", false, "disable the live progress line")

	cmd.AddCommand(
		newDoctorCmd(opts),
		newRegistryCmd(opts),
		newConfigCmd(opts),
		newStatusCmd(opts),
		newVerifyCmd(opts),
		newAuditCmd(opts),
	)
	return cmd
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.workspace)
	if err != nil {
		return config.Config{}, err
	}
	if opts.date != "" {
		if _, err := time.Parse("2006-01-02", opts.date); err != nil {
			return config.Config{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", opts.date)
		}
		cfg.RunDate = opts.date
	}
	return cfg, nil
}

func runPipeline(opts *rootOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// Mode conflicts abort here, before anything has touched the
	// filesystem or the audit log.
	mode, err := pipeline.ResolveMode(pipeline.ModeFlags{
		CleanupAll:     opts.cleanupAll,
		ResetWorkspace: opts.resetWorkspace,
		ReprocessToday: opts.reprocessToday,
		ForceToday:     opts.forceToday,
	})
	if err != nil {
		return err
	}

	trigger := model.TriggerOperator
	if opts.automation {
		trigger = model.TriggerAutomation
	}

	switch mode {
	case pipeline.ModeCleanup:
		return pipeline.RunCleanup(maintenanceOptions(cfg, opts, trigger))
	case pipeline.ModeReprocess:
		m := maintenanceOptions(cfg, opts, trigger)
		if m.Reason == "" && !opts.yes && stdinIsTTY() {
			reason, err := promptReason("Why is today's run being reprocessed?")
			if err != nil {
				return err
			}
			m.Reason = reason
		}
		return pipeline.RunReprocess(m)
	default:
		return pipeline.RunNormal(pipeline.RunOptions{
			Config:   cfg,
			Trigger:  trigger,
			Progress: showProgress(opts),
			Quiet:    opts.quiet,
		})
	}
}

func maintenanceOptions(cfg config.Config, opts *rootOptions, trigger string) pipeline.MaintenanceOptions {
	return pipeline.MaintenanceOptions{
		Config:     cfg,
		Trigger:    trigger,
		DryRun:     opts.dryRun,
		Yes:        opts.yes,
		AllowDirty: opts.allowDirty,
		AllowAbort: opts.allowAbort,
		Reason:     opts.reason,
		CLIVersion: version.Value,
		Confirm:    confirmPlan,
		Quiet:      opts.quiet,
		Progress:   showProgress(opts),
	}
}

func showProgress(opts *rootOptions) bool {
	return !opts.noProgress && !opts.quiet && stderrIsTTY()
}
