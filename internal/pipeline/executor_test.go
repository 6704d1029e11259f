package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"briefmill/internal/gentool"
	"briefmill/internal/model"
	"briefmill/internal/runstore"
)

func execJob(domain, instruction string) model.Job {
	return model.Job{
		Domain:      domain,
		Category:    "technology",
		Instruction: instruction,
		Priority:    "high",
		Enabled:     true,
	}
}

func TestExecuteJobsWritesArtifactsAndLedger(t *testing.T) {
	root := t.TempDir()
	tool := installFakeBinary(t, root, "fake-gen",
		"#!/usr/bin/env bash\necho \"brief body for: $*\"\n")
	paths := runstore.NewPaths(root)

	jobs := []model.Job{
		execJob("Cloud Computing", "Summarize cloud news"),
		execJob("Quantum Hardware", "Summarize quantum news"),
	}
	res, err := ExecuteJobs(ExecOptions{
		Jobs:         jobs,
		RunDate:      "2026-03-14",
		InvocationID: "inv-1",
		Workers:      2,
		Client:       gentool.Client{Command: tool, Timeout: 30 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	})
	if err != nil {
		t.Fatalf("ExecuteJobs: %v", err)
	}
	if res.Total != 2 || res.Succeeded != 2 || res.Failed != 0 || res.TimedOut != 0 {
		t.Fatalf("counts = %+v, want 2 total / 2 ok", res)
	}

	body, err := os.ReadFile(paths.ArtifactPath("2026-03-14", "cloud_computing"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	for _, want := range []string{
		"domain: Cloud Computing",
		"run_date: 2026-03-14",
		"priority: high",
		"brief body for: Summarize cloud news",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("artifact missing %q:\n%s", want, body)
		}
	}

	entries, err := runstore.NewLedger(paths).Read("2026-03-14")
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("ledger entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Status != model.StatusSuccess {
			t.Errorf("ledger status for %s = %q, want success", e.JobName, e.Status)
		}
		if e.InvocationID != "inv-1" {
			t.Errorf("ledger invocation = %q, want inv-1", e.InvocationID)
		}
		if e.SHA256 == "" || e.Artifact == "" {
			t.Errorf("ledger entry for %s missing artifact fields: %+v", e.JobName, e)
		}
	}
}

func TestExecuteJobsConcurrencyNeverExceedsLimit(t *testing.T) {
	root := t.TempDir()
	ivDir := filepath.Join(root, "intervals")
	if err := os.MkdirAll(ivDir, 0o755); err != nil {
		t.Fatal(err)
	}
	script := fmt.Sprintf(`#!/usr/bin/env bash
f=%q/$$-$RANDOM.iv
date +%%s%%N > "$f"
sleep 0.3
date +%%s%%N >> "$f"
echo body
`, ivDir)
	tool := installFakeBinary(t, root, "fake-gen", script)
	paths := runstore.NewPaths(root)

	var jobs []model.Job
	for i := 1; i <= 5; i++ {
		jobs = append(jobs, execJob(fmt.Sprintf("Domain %d", i), "write the brief"))
	}
	res, err := ExecuteJobs(ExecOptions{
		Jobs:         jobs,
		RunDate:      "2026-03-14",
		InvocationID: "inv-conc",
		Workers:      2,
		Client:       gentool.Client{Command: tool, Timeout: 30 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	})
	if err != nil {
		t.Fatalf("ExecuteJobs: %v", err)
	}
	if res.Succeeded != 5 {
		t.Fatalf("succeeded = %d, want 5", res.Succeeded)
	}

	files, err := filepath.Glob(filepath.Join(ivDir, "*.iv"))
	if err != nil || len(files) != 5 {
		t.Fatalf("interval files = %d (%v), want 5", len(files), err)
	}
	if max := maxConcurrent(t, files); max > 2 {
		t.Errorf("observed %d concurrent tool processes, limit is 2", max)
	}
}

// maxConcurrent sweeps the recorded start/end stamps and returns the
// peak number of simultaneously live tool processes.
func maxConcurrent(t *testing.T, files []string) int {
	t.Helper()
	type event struct {
		at    int64
		delta int
	}
	var events []event
	for _, f := range files {
		raw, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read interval %s: %v", f, err)
		}
		lines := strings.Fields(string(raw))
		if len(lines) != 2 {
			t.Fatalf("interval %s has %d stamps, want 2", f, len(lines))
		}
		start, err1 := strconv.ParseInt(lines[0], 10, 64)
		end, err2 := strconv.ParseInt(lines[1], 10, 64)
		if err1 != nil || err2 != nil {
			t.Fatalf("parse stamps in %s: %v %v", f, err1, err2)
		}
		events = append(events, event{start, 1}, event{end, -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at == events[j].at {
			return events[i].delta < events[j].delta
		}
		return events[i].at < events[j].at
	})
	live, peak := 0, 0
	for _, e := range events {
		live += e.delta
		if live > peak {
			peak = live
		}
	}
	return peak
}

func TestExecuteJobsTimeoutDoesNotDisturbSiblings(t *testing.T) {
	root := t.TempDir()
	script := `#!/usr/bin/env bash
case "$*" in
*stall*)
  echo "partial output before the hang"
  sleep 30
  ;;
*)
  echo "quick body"
  ;;
esac
`
	tool := installFakeBinary(t, root, "fake-gen", script)
	paths := runstore.NewPaths(root)

	jobs := []model.Job{
		execJob("Slow Domain", "please stall"),
		execJob("Fast Domain", "please answer"),
	}
	begin := time.Now()
	res, err := ExecuteJobs(ExecOptions{
		Jobs:         jobs,
		RunDate:      "2026-03-14",
		InvocationID: "inv-timeout",
		Workers:      2,
		Client:       gentool.Client{Command: tool, Timeout: 1 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	})
	if err != nil {
		t.Fatalf("ExecuteJobs: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 10*time.Second {
		t.Fatalf("run took %s, timeout did not fire", elapsed)
	}
	if res.Succeeded != 1 || res.TimedOut != 1 || res.Failed != 0 {
		t.Fatalf("counts = %+v, want 1 ok / 1 timeout", res)
	}

	var slow model.JobResult
	for _, r := range res.Results {
		if r.JobName == "slow_domain" {
			slow = r
		}
	}
	if slow.Status != model.StatusTimeout {
		t.Fatalf("slow job status = %q, want timeout", slow.Status)
	}
	if !strings.Contains(slow.ExitDetail, "timeout after 1s") {
		t.Errorf("slow job detail = %q, want timeout detail", slow.ExitDetail)
	}
	artifact, err := os.ReadFile(paths.ArtifactPath("2026-03-14", "slow_domain"))
	if err != nil {
		t.Fatalf("read timeout artifact: %v", err)
	}
	if !strings.Contains(string(artifact), "partial output before the hang") {
		t.Errorf("timeout artifact lost partial stdout:\n%s", artifact)
	}
	if !strings.Contains(string(artifact), "[timeout:") {
		t.Errorf("timeout artifact missing annotation:\n%s", artifact)
	}
}

func TestExecuteJobsFailureIsolated(t *testing.T) {
	root := t.TempDir()
	script := `#!/usr/bin/env bash
case "$*" in
*doomed*)
  echo "tool exploded" >&2
  exit 3
  ;;
*)
  echo "fine"
  ;;
esac
`
	tool := installFakeBinary(t, root, "fake-gen", script)
	paths := runstore.NewPaths(root)

	jobs := []model.Job{
		execJob("Doomed Domain", "doomed prompt"),
		execJob("Healthy Domain", "normal prompt"),
	}
	res, err := ExecuteJobs(ExecOptions{
		Jobs:         jobs,
		RunDate:      "2026-03-14",
		InvocationID: "inv-fail",
		Workers:      1,
		Client:       gentool.Client{Command: tool, Timeout: 30 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	})
	if err != nil {
		t.Fatalf("ExecuteJobs returned %v, job failures must not fail the run", err)
	}
	if res.Succeeded != 1 || res.Failed != 1 {
		t.Fatalf("counts = %+v, want 1 ok / 1 failed", res)
	}
	for _, r := range res.Results {
		if r.JobName != "doomed_domain" {
			continue
		}
		if r.Status != model.StatusFailure {
			t.Errorf("doomed status = %q, want failure", r.Status)
		}
		if !strings.Contains(r.ExitDetail, "exit code 3") || !strings.Contains(r.ExitDetail, "tool exploded") {
			t.Errorf("doomed detail = %q, want exit code and stderr", r.ExitDetail)
		}
	}
}

func TestExecuteJobsDispatchFollowsManifestOrder(t *testing.T) {
	root := t.TempDir()
	callsFile := filepath.Join(root, "calls.log")
	script := fmt.Sprintf("#!/usr/bin/env bash\necho \"$*\" >> %q\necho body\n", callsFile)
	tool := installFakeBinary(t, root, "fake-gen", script)
	paths := runstore.NewPaths(root)

	jobs := []model.Job{
		execJob("First", "prompt one"),
		execJob("Second", "prompt two"),
		execJob("Third", "prompt three"),
	}
	if _, err := ExecuteJobs(ExecOptions{
		Jobs:         jobs,
		RunDate:      "2026-03-14",
		InvocationID: "inv-order",
		Workers:      1,
		Client:       gentool.Client{Command: tool, Timeout: 30 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	}); err != nil {
		t.Fatalf("ExecuteJobs: %v", err)
	}

	raw, err := os.ReadFile(callsFile)
	if err != nil {
		t.Fatalf("read calls log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 3 {
		t.Fatalf("calls = %d, want 3", len(lines))
	}
	for i, want := range []string{"prompt one", "prompt two", "prompt three"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("call %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestExecuteJobsLedgerFailureIsFatal(t *testing.T) {
	root := t.TempDir()
	tool := installFakeBinary(t, root, "fake-gen", "#!/usr/bin/env bash\necho body\n")
	paths := runstore.NewPaths(root)

	// A directory where the ledger file should be makes every append fail.
	if err := os.MkdirAll(paths.LedgerPath("2026-03-14"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := ExecuteJobs(ExecOptions{
		Jobs:         []model.Job{execJob("Cloud Computing", "summarize")},
		RunDate:      "2026-03-14",
		InvocationID: "inv-ledger",
		Workers:      1,
		Client:       gentool.Client{Command: tool, Timeout: 30 * time.Second},
		Paths:        paths,
		Ledger:       runstore.NewLedger(paths),
		Quiet:        true,
	})
	if err == nil {
		t.Fatal("ExecuteJobs succeeded, want ledger write error")
	}
	if !strings.Contains(err.Error(), "record job result") {
		t.Errorf("error = %v, want ledger record failure", err)
	}
}
