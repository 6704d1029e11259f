package pipeline

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"briefmill/internal/config"
	"briefmill/internal/gentool"
	"briefmill/internal/model"
	"briefmill/internal/registry"
	"briefmill/internal/runstore"
)

// OverrideInfo records who forced a rerun and why. Present only when a
// reprocess invocation falls through to the normal path.
type OverrideInfo struct {
	Operator string
	Reason   string
}

type RunOptions struct {
	Config   config.Config
	Override *OverrideInfo
	Trigger  string
	Progress bool
	Quiet    bool
}

// RunNormal executes one full daily run: acquire the pipeline lock,
// honor the completion marker, run every enabled job, then the
// post-steps, then write the marker. Job failures do not fail the run;
// a failing post-step surfaces as that step's exit code.
func RunNormal(opts RunOptions) error {
	cfg := opts.Config
	runDate := cfg.RunDate
	paths := runstore.NewPaths(cfg.Workspace)

	lock, err := runstore.AcquireLock(paths.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release()
	}()
	stop := releaseOnSignal(lock)
	defer stop()

	markers := runstore.NewMarkers(paths)
	done, err := markers.IsComplete(runDate)
	if err != nil {
		return err
	}
	if done {
		if !opts.Quiet {
			when, readErr := markers.CompletedAt(runDate)
			if readErr != nil || when == "" {
				when = "marker present"
			}
			fmt.Printf("run for %s already completed (%s); nothing to do\n", runDate, when)
		}
		return nil
	}

	log, err := runstore.OpenRunLog(paths.RunLogPath(runDate))
	if err != nil {
		return err
	}
	defer log.Close()

	invocationID := uuid.NewString()
	log.Infof("run %s starting: invocation=%s trigger=%s operator=%s", runDate, invocationID, opts.Trigger, cfg.Operator)
	if opts.Override != nil {
		log.Infof("override active: operator=%s reason=%s", opts.Override.Operator, opts.Override.Reason)
	}

	jobs, err := registry.LoadJobs(cfg.Manifest.Backend, cfg.ManifestPath())
	if err != nil {
		log.Errorf("load manifest: %v", err)
		return err
	}
	if problems := registry.Validate(jobs); len(problems) > 0 {
		err := fmt.Errorf("manifest validation failed: %s", strings.Join(problems, "; "))
		log.Errorf("%v", err)
		return err
	}
	enabled := registry.EnabledJobs(jobs)
	log.Infof("manifest loaded: %d job(s), %d enabled", len(jobs), len(enabled))
	if !opts.Quiet {
		fmt.Printf("run %s: %d enabled job(s), up to %d in parallel\n", runDate, len(enabled), cfg.Generator.MaxParallel)
	}

	rec := model.RunRecord{
		SchemaVersion: 1,
		InvocationID:  invocationID,
		RunDate:       runDate,
		Trigger:       opts.Trigger,
		Operator:      cfg.Operator,
		StartedAt:     time.Now().UTC().Format(time.RFC3339),
		Total:         len(enabled),
	}
	if opts.Override != nil {
		rec.Override = overrideNote(*opts.Override)
	}
	if err := runstore.SaveRunRecord(paths, rec); err != nil {
		log.Errorf("save run record: %v", err)
		return err
	}

	var limiter *gentool.Limiter
	if rl := cfg.Generator.RateLimit; rl.Enabled {
		limiter = gentool.NewLimiter(rl.Capacity, rl.RefillPerSec)
	}
	client := gentool.Client{
		Command:      cfg.Generator.Command,
		Model:        cfg.Generator.Model,
		ApprovalMode: cfg.Generator.ApprovalMode,
		Timeout:      cfg.Generator.JobTimeout(),
		Limiter:      limiter,
	}

	exec, execErr := ExecuteJobs(ExecOptions{
		Jobs:         enabled,
		RunDate:      runDate,
		InvocationID: invocationID,
		Workers:      cfg.Generator.MaxParallel,
		Client:       client,
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Log:          log,
		Enricher:     NewEnricher(paths),
		Progress:     opts.Progress,
		Quiet:        opts.Quiet,
	})

	rec.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	rec.Succeeded = exec.Succeeded
	rec.Failed = exec.Failed
	rec.TimedOut = exec.TimedOut
	if err := runstore.SaveRunRecord(paths, rec); err != nil {
		log.Errorf("save run record: %v", err)
	}

	if execErr != nil {
		log.Errorf("job execution aborted: %v", execErr)
		return execErr
	}
	log.Infof("jobs done: %d ok, %d failed, %d timed out", exec.Succeeded, exec.Failed, exec.TimedOut)
	if !opts.Quiet {
		fmt.Printf("jobs done: %d ok, %d failed, %d timed out\n", exec.Succeeded, exec.Failed, exec.TimedOut)
	}

	steps, stepExit := RunSteps(StepOptions{
		Config:  cfg,
		Paths:   paths,
		RunDate: runDate,
		Exec:    exec,
		Log:     log,
		Quiet:   opts.Quiet,
	})

	if err := markers.MarkComplete(runDate, time.Now()); err != nil {
		log.Errorf("%v", err)
		return err
	}
	log.Infof("run %s complete", runDate)

	if !opts.Quiet {
		if summary, ok := ReadPublishSummary(paths, runDate); ok && summary.DeploymentID != "" {
			fmt.Printf("published: deployment %s\n", summary.DeploymentID)
		}
	}

	if stepExit != 0 {
		return &ExitError{Code: stepExit, Err: fmt.Errorf("step %s failed", firstFailedStep(steps))}
	}
	return nil
}

// releaseOnSignal removes the pipeline lock before the process dies from
// SIGINT or SIGTERM. The returned stop function detaches the handler once
// the run finishes on its own.
func releaseOnSignal(lock *runstore.PipelineLock) func() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		if _, ok := <-ch; !ok {
			return
		}
		_ = lock.Release()
		os.Exit(1)
	}()
	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

func overrideNote(o OverrideInfo) string {
	note := "reprocess-today"
	if strings.TrimSpace(o.Reason) != "" {
		note += ": " + strings.TrimSpace(o.Reason)
	}
	return note
}

func firstFailedStep(steps []StepResult) string {
	for _, s := range steps {
		if s.Skipped {
			continue
		}
		if s.ExitCode != 0 || s.TimedOut {
			return s.Name
		}
	}
	return "unknown"
}
