package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefmill/internal/model"
	"briefmill/internal/runstore"
)

type statusLock struct {
	Held       bool   `json:"held"`
	Alive      bool   `json:"alive,omitempty"`
	PID        int    `json:"pid,omitempty"`
	AcquiredAt string `json:"acquired_at,omitempty"`
}

type statusReport struct {
	RunDate     string                 `json:"run_date"`
	Complete    bool                   `json:"complete"`
	CompletedAt string                 `json:"completed_at,omitempty"`
	Lock        statusLock             `json:"lock"`
	Record      *model.RunRecord       `json:"record,omitempty"`
	Jobs        []runstore.LedgerEntry `json:"jobs,omitempty"`
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show marker, lock, and job outcomes for a run date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			report, err := buildStatusReport(runstore.NewPaths(cfg.Workspace), cfg.RunDate)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(report)
			}
			printStatusReport(report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func buildStatusReport(paths runstore.Paths, runDate string) (statusReport, error) {
	report := statusReport{RunDate: runDate}

	markers := runstore.NewMarkers(paths)
	done, err := markers.IsComplete(runDate)
	if err != nil {
		return statusReport{}, err
	}
	report.Complete = done
	if done {
		if when, err := markers.CompletedAt(runDate); err == nil {
			report.CompletedAt = when
		}
	}

	owner, held, alive, err := runstore.LockStatus(paths.LockPath())
	if err != nil {
		return statusReport{}, err
	}
	report.Lock = statusLock{Held: held, Alive: alive, PID: owner.PID, AcquiredAt: owner.AcquiredAt}

	if runstore.RunRecordExists(paths, runDate) {
		rec, err := runstore.LoadRunRecord(paths, runDate)
		if err != nil {
			return statusReport{}, err
		}
		report.Record = &rec
	}

	jobs, err := runstore.NewLedger(paths).Read(runDate)
	if err != nil {
		return statusReport{}, err
	}
	report.Jobs = jobs
	return report, nil
}

func printStatusReport(r statusReport) {
	fmt.Printf("run_date: %s\n", r.RunDate)
	if r.Complete {
		fmt.Printf("marker: present (%s)\n", r.CompletedAt)
	} else {
		fmt.Println("marker: absent")
	}

	switch {
	case !r.Lock.Held:
		fmt.Println("lock: free")
	case r.Lock.Alive:
		fmt.Printf("lock: held by pid %d since %s\n", r.Lock.PID, r.Lock.AcquiredAt)
	default:
		fmt.Printf("lock: stale (pid %d is gone)\n", r.Lock.PID)
	}

	if r.Record != nil {
		fmt.Printf("trigger: %s", r.Record.Trigger)
		if r.Record.Override != "" {
			fmt.Printf(" (override: %s)", r.Record.Override)
		}
		fmt.Println()
		fmt.Printf("invocation: %s\n", r.Record.InvocationID)
		fmt.Printf("totals: %d job(s), %d ok, %d failed, %d timed out\n",
			r.Record.Total, r.Record.Succeeded, r.Record.Failed, r.Record.TimedOut)
	}

	if len(r.Jobs) == 0 {
		fmt.Println("jobs: (no ledger entries)")
		return
	}
	fmt.Println("jobs:")
	for _, j := range r.Jobs {
		fmt.Printf("  %-28s %-8s %s\n", j.JobName, j.Status, j.ExitDetail)
	}
}
