package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"briefmill/internal/config"
	"briefmill/internal/model"
	"briefmill/internal/proc"
	"briefmill/internal/runstore"
)

// stepTimeout bounds each post-step subprocess. Steps are external
// tools (report renderer, publisher, notify hooks) and get a much
// longer leash than individual generation jobs.
const stepTimeout = 15 * time.Minute

type StepOptions struct {
	Config  config.Config
	Paths   runstore.Paths
	RunDate string
	Exec    ExecResult
	Log     *runstore.RunLog
	Quiet   bool
}

type StepResult struct {
	Name     string
	Skipped  bool
	ExitCode int
	TimedOut bool
	Detail   string
}

// PublishSummary is the JSON file the publish step leaves behind. Only
// the fields the pipeline itself consumes are decoded.
type PublishSummary struct {
	DeploymentID string `json:"deployment_id"`
	URL          string `json:"url"`
	PublishedAt  string `json:"published_at"`
}

// RunSteps drives the post-generation steps in order: render the daily
// report, publish it, fire the notify hook. Every step is attempted
// even when an earlier one failed; the returned exit code is the first
// failing step's, or zero.
func RunSteps(opts StepOptions) ([]StepResult, int) {
	cfg := opts.Config
	baseEnv := []string{
		"BRIEFMILL_RUN_DATE=" + opts.RunDate,
		"BRIEFMILL_WORKSPACE=" + cfg.Workspace,
	}

	var results []StepResult
	firstExit := 0
	record := func(res StepResult) {
		results = append(results, res)
		if res.Skipped {
			opts.Log.Infof("step %s skipped: %s", res.Name, res.Detail)
			return
		}
		if res.ExitCode == 0 && !res.TimedOut {
			opts.Log.Infof("step %s succeeded", res.Name)
			return
		}
		opts.Log.Errorf("step %s failed: %s", res.Name, res.Detail)
		if !opts.Quiet {
			fmt.Printf("step %s failed: %s\n", res.Name, res.Detail)
		}
		if firstExit == 0 {
			firstExit = res.ExitCode
			if firstExit == 0 {
				firstExit = 1
			}
		}
	}

	if strings.TrimSpace(cfg.Render.Command) == "" {
		record(StepResult{Name: "render", Skipped: true, Detail: "no render command configured"})
	} else {
		record(runStep("render", []string{cfg.Render.Command, opts.RunDate}, baseEnv, cfg.Workspace))
	}

	if strings.TrimSpace(cfg.Publish.Command) == "" {
		record(StepResult{Name: "publish", Skipped: true, Detail: "no publish command configured"})
	} else {
		env := baseEnv
		if cfg.Publish.Credential != "" {
			env = append(env, cfg.Publish.CredentialEnv+"="+cfg.Publish.Credential)
		}
		record(runStep("publish", []string{cfg.Publish.Command, opts.RunDate}, env, cfg.Workspace))
	}

	record(notifyStep(opts, baseEnv))

	return results, firstExit
}

func notifyStep(opts StepOptions, baseEnv []string) StepResult {
	cfg := opts.Config
	failed := failedJobNames(opts.Exec.Results)

	var script string
	switch {
	case len(failed) > 0 && cfg.Notify.OnFailure:
		script = cfg.Notify.FailureScript
	case len(failed) == 0 && cfg.Notify.OnSuccess:
		script = cfg.Notify.SuccessScript
	default:
		return StepResult{Name: "notify", Skipped: true, Detail: "no hook configured for this outcome"}
	}
	if strings.TrimSpace(script) == "" {
		return StepResult{Name: "notify", Skipped: true, Detail: "hook script not set"}
	}

	env := append(baseEnv,
		"BRIEFMILL_FAILED_JOBS="+strings.Join(failed, ","),
		"BRIEFMILL_RUN_LOG="+opts.Paths.RunLogPath(opts.RunDate),
	)
	return runStep("notify", []string{script, opts.RunDate}, env, cfg.Workspace)
}

func runStep(name string, argv, env []string, dir string) StepResult {
	var stderr bytes.Buffer
	res, err := proc.Run(proc.Spec{
		Argv:    argv,
		Dir:     dir,
		Env:     env,
		Stderr:  &stderr,
		Timeout: stepTimeout,
	})
	if err != nil {
		return StepResult{Name: name, ExitCode: 1, Detail: err.Error()}
	}
	out := StepResult{Name: name, ExitCode: res.ExitCode, TimedOut: res.TimedOut}
	switch {
	case res.TimedOut:
		out.ExitCode = 1
		out.Detail = fmt.Sprintf("timed out after %s", stepTimeout)
	case res.ExitCode != 0:
		out.Detail = fmt.Sprintf("exit code %d", res.ExitCode)
		if line := firstLine(stderr.String()); line != "" {
			out.Detail += ": " + line
		}
	}
	return out
}

func failedJobNames(results []model.JobResult) []string {
	var failed []string
	for _, r := range results {
		if r.Status != model.StatusSuccess {
			failed = append(failed, r.JobName)
		}
	}
	return failed
}

// ReadPublishSummary loads the publish step's summary file. A missing
// file is not an error: the step may be unconfigured or have failed.
func ReadPublishSummary(paths runstore.Paths, runDate string) (PublishSummary, bool) {
	var s PublishSummary
	if err := runstore.ReadJSON(paths.PublishSummaryPath(runDate), &s); err != nil {
		return PublishSummary{}, false
	}
	return s, true
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
