package pipeline

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"briefmill/internal/gentool"
	"briefmill/internal/model"
	"briefmill/internal/runstore"
)

type ExecOptions struct {
	Jobs         []model.Job // enabled jobs in manifest order
	RunDate      string
	InvocationID string
	Workers      int
	Client       gentool.Client
	Paths        runstore.Paths
	Ledger       runstore.Ledger
	Log          *runstore.RunLog
	Enricher     *Enricher
	Progress     bool
	Quiet        bool
}

type ExecResult struct {
	Total     int
	Succeeded int
	Failed    int
	TimedOut  int
	Results   []model.JobResult
}

// ExecuteJobs runs every job through the generation tool with at most
// Workers live child processes. It returns after every dispatched job
// has a terminal result; the only error it reports is a ledger write
// failure, since losing job records breaks the run's bookkeeping. Job
// failures and timeouts are recorded, not escalated.
func ExecuteJobs(opts ExecOptions) (ExecResult, error) {
	jobs := opts.Jobs
	if len(jobs) == 0 {
		return ExecResult{}, nil
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	for _, dir := range []string{
		opts.Paths.BriefsDir(opts.RunDate),
		opts.Paths.LedgerDir(),
	} {
		if err := runstore.Mkdir(dir); err != nil {
			return ExecResult{}, err
		}
	}

	progress := newLiveProgress(opts.Progress, len(jobs), os.Stderr)
	progress.Start()

	results := make([]model.JobResult, len(jobs))
	jobCh := make(chan int)

	var stateMu sync.Mutex
	var logMu sync.Mutex
	var wg sync.WaitGroup
	var stopAll atomic.Bool
	var fatalErr atomic.Value
	setFatal := func(err error) {
		if err == nil {
			return
		}
		if fatalErr.Load() == nil {
			fatalErr.Store(err.Error())
		}
		stopAll.Store(true)
	}

	workerFn := func(workerID int) {
		defer wg.Done()
		for i := range jobCh {
			if stopAll.Load() {
				continue
			}
			job := jobs[i]
			slug := job.Slug()

			status := model.StatusPending
			if err := model.TransitionStatus(&status, model.StatusRunning, slug); err != nil {
				setFatal(err)
				continue
			}
			progress.JobStarted(slug)
			opts.Log.Infof("job %s started (worker %d)", slug, workerID)
			if !opts.Progress && !opts.Quiet {
				logMu.Lock()
				fmt.Printf("[w%d] start %s\n", workerID, slug)
				logMu.Unlock()
			}

			res := runOne(opts, job, slug)

			if err := model.TransitionStatus(&status, res.Status, slug); err != nil {
				setFatal(err)
				continue
			}

			stateMu.Lock()
			results[i] = res
			ledgerErr := opts.Ledger.Append(opts.RunDate, opts.InvocationID, res)
			stateMu.Unlock()
			if ledgerErr != nil {
				setFatal(ledgerErr)
			}

			progress.JobFinished(slug, res.Status)
			opts.Log.Infof("job %s finished: %s %s", slug, res.Status, res.ExitDetail)
			if !opts.Progress && !opts.Quiet {
				logMu.Lock()
				fmt.Printf("[w%d] %-7s %s\n", workerID, res.Status, slug)
				logMu.Unlock()
			}
		}
	}

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go workerFn(w)
	}
	for i := range jobs {
		if stopAll.Load() {
			break
		}
		jobCh <- i
	}
	close(jobCh)
	wg.Wait()
	progress.Stop(fmt.Sprintf("[%d/%d] job execution finished", countTerminal(results), len(jobs)))

	out := ExecResult{Total: len(jobs)}
	for _, r := range results {
		if r.JobName == "" {
			continue
		}
		out.Results = append(out.Results, r)
		switch r.Status {
		case model.StatusSuccess:
			out.Succeeded++
		case model.StatusTimeout:
			out.TimedOut++
		default:
			out.Failed++
		}
	}

	if msg := fatalErr.Load(); msg != nil {
		return out, fmt.Errorf("%s", msg.(string))
	}
	return out, nil
}

// runOne takes a job from dispatch to a terminal JobResult. Failures
// are captured in the result, never returned: one job must not be able
// to disturb its siblings.
func runOne(opts ExecOptions, job model.Job, slug string) model.JobResult {
	res := model.JobResult{
		JobName:   slug,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	finish := func(status, detail string) model.JobResult {
		res.Status = status
		res.ExitDetail = detail
		res.FinishedAt = time.Now().UTC().Format(time.RFC3339)
		return res
	}

	context := opts.Enricher.Enrich(job, opts.RunDate)
	gen, err := opts.Client.Generate(gentool.GenerateOptions{
		Instruction: job.Instruction,
		Context:     context,
	})
	if err != nil {
		return finish(model.StatusFailure, err.Error())
	}

	switch {
	case gen.TimedOut:
		annotation := fmt.Sprintf("\n\n[timeout: job terminated after %s; output above this line may be incomplete]\n", opts.Client.Timeout)
		path, sha, writeErr := writeArtifact(opts.Paths, opts.RunDate, job, gen.Body, annotation)
		if writeErr != nil {
			opts.Log.Errorf("job %s: %v", slug, writeErr)
		} else {
			res.Artifact = path
			res.SHA256 = sha
		}
		return finish(model.StatusTimeout, fmt.Sprintf("timeout after %s", opts.Client.Timeout))
	case gen.ExitCode != 0:
		detail := fmt.Sprintf("exit code %d", gen.ExitCode)
		if gen.Stderr != "" {
			detail += ": " + gen.Stderr
		}
		return finish(model.StatusFailure, detail)
	}

	path, sha, writeErr := writeArtifact(opts.Paths, opts.RunDate, job, gen.Body, "")
	if writeErr != nil {
		return finish(model.StatusFailure, writeErr.Error())
	}
	res.Artifact = path
	res.SHA256 = sha
	return finish(model.StatusSuccess, "")
}

// writeArtifact assembles the preamble plus tool output and writes the
// brief atomically, returning the path and content hash.
func writeArtifact(paths runstore.Paths, runDate string, job model.Job, body []byte, annotation string) (string, string, error) {
	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "domain: %s\n", job.Domain)
	fmt.Fprintf(&b, "run_date: %s\n", runDate)
	fmt.Fprintf(&b, "priority: %s\n", job.Priority)
	fmt.Fprintf(&b, "generated_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	b.WriteString("---\n\n")
	b.Write(body)
	if annotation != "" {
		b.WriteString(annotation)
	}

	path := paths.ArtifactPath(runDate, job.Slug())
	if err := runstore.WriteBytes(path, []byte(b.String())); err != nil {
		return "", "", fmt.Errorf("write artifact for %s: %w", job.Slug(), err)
	}
	sha, err := runstore.FileSHA256(path)
	if err != nil {
		return "", "", fmt.Errorf("hash artifact for %s: %w", job.Slug(), err)
	}
	return path, sha, nil
}

func countTerminal(results []model.JobResult) int {
	n := 0
	for _, r := range results {
		if r.JobName != "" {
			n++
		}
	}
	return n
}
