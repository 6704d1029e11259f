package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"briefmill/internal/model"
)

const sampleManifest = "domain\tcategory\tinstruction\tpriority\tenabled\n" +
	"Cloud Computing\tinfra\tSummarize the day's cloud platform news.\thigh\ttrue\n" +
	"Edge AI\tml\tCover edge inference hardware announcements.\tnormal\ttrue\n" +
	"Retro Gaming\tculture\tRound up retro gaming community news.\tlow\tfalse\n"

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.tsv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestTSVLoad(t *testing.T) {
	jobs, err := NewTSV(writeManifest(t, sampleManifest)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(jobs))
	}
	if jobs[0].Domain != "Cloud Computing" || !jobs[0].Enabled {
		t.Errorf("first job parsed wrong: %+v", jobs[0])
	}
	if jobs[2].Enabled {
		t.Errorf("disabled job parsed as enabled: %+v", jobs[2])
	}
	if jobs[1].Priority != "normal" {
		t.Errorf("priority = %q, want normal", jobs[1].Priority)
	}
}

func TestTSVLoadMissingFile(t *testing.T) {
	_, err := NewTSV(filepath.Join(t.TempDir(), "absent.tsv")).Load()
	if !errors.Is(err, ErrManifestMissing) {
		t.Fatalf("expected ErrManifestMissing, got %v", err)
	}
}

func TestTSVLoadFieldCount(t *testing.T) {
	content := "domain\tcategory\tinstruction\tpriority\tenabled\n" +
		"Cloud Computing\tinfra\tonly three fields\n"
	_, err := NewTSV(writeManifest(t, content)).Load()
	if err == nil || !strings.Contains(err.Error(), "expected 5 fields") {
		t.Fatalf("expected field count error, got %v", err)
	}
}

func TestTSVLoadRejectsNonLiteralEnabled(t *testing.T) {
	for _, bad := range []string{"TRUE", "1", "yes", ""} {
		content := "domain\tcategory\tinstruction\tpriority\tenabled\n" +
			"Cloud Computing\tinfra\tdo the thing\thigh\t" + bad + "\n"
		_, err := NewTSV(writeManifest(t, content)).Load()
		if err == nil {
			t.Errorf("enabled=%q: expected error, got nil", bad)
		}
	}
}

func TestValidate(t *testing.T) {
	jobs := []model.Job{
		{Domain: "Cloud Computing", Category: "infra", Instruction: "x", Priority: "high", Enabled: true},
		{Domain: "cloud computing", Category: "infra", Instruction: "y", Priority: "high", Enabled: true},
		{Domain: "Edge AI", Category: "ml", Instruction: "", Priority: "low", Enabled: true},
	}
	problems := Validate(jobs)
	if len(problems) != 2 {
		t.Fatalf("expected 2 problems, got %d: %v", len(problems), problems)
	}
	if !strings.Contains(problems[0], "duplicate domain") {
		t.Errorf("problem[0] = %q, want duplicate domain", problems[0])
	}
	if !strings.Contains(problems[1], "empty instruction") {
		t.Errorf("problem[1] = %q, want empty instruction", problems[1])
	}
}

func TestEnabledJobsPreservesOrder(t *testing.T) {
	jobs := []model.Job{
		{Domain: "a", Enabled: true},
		{Domain: "b", Enabled: false},
		{Domain: "c", Enabled: true},
	}
	got := EnabledJobs(jobs)
	if len(got) != 2 || got[0].Domain != "a" || got[1].Domain != "c" {
		t.Fatalf("EnabledJobs = %+v", got)
	}
}

func TestWriteTSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.tsv")
	jobs := []model.Job{
		{Domain: "Cloud Computing", Category: "infra", Instruction: "do it", Priority: "high", Enabled: true},
		{Domain: "Edge AI", Category: "ml", Instruction: "cover it", Priority: "low", Enabled: false},
	}
	if err := WriteTSV(path, jobs); err != nil {
		t.Fatalf("WriteTSV: %v", err)
	}
	got, err := NewTSV(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].Domain != "Cloud Computing" || got[1].Enabled {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
