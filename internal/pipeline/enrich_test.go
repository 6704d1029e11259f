package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"briefmill/internal/model"
	"briefmill/internal/runstore"
)

func TestEnrichUnknownJobRunsUnchanged(t *testing.T) {
	e := NewEnricher(runstore.NewPaths(t.TempDir()))
	job := model.Job{Domain: "Obscure Topic", Instruction: "write it"}
	if got := e.Enrich(job, "2026-03-14"); got != "" {
		t.Fatalf("Enrich = %q, want empty for unregistered job", got)
	}
}

func TestEnrichNilEnricher(t *testing.T) {
	var e *Enricher
	if got := e.Enrich(model.Job{Domain: "Daily Overview"}, "2026-03-14"); got != "" {
		t.Fatalf("nil enricher returned %q", got)
	}
}

func TestRecentReportsConcatenatesExistingDays(t *testing.T) {
	paths := runstore.NewPaths(t.TempDir())
	if err := os.MkdirAll(paths.ReportsDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	// Two of the three previous days have reports; the gap is skipped.
	for _, date := range []string{"2026-03-13", "2026-03-11"} {
		if err := os.WriteFile(paths.ReportPath(date), []byte("report for "+date), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := RecentReports(paths, 3)("2026-03-14")
	if !strings.Contains(got, "report for 2026-03-13") || !strings.Contains(got, "report for 2026-03-11") {
		t.Errorf("missing report bodies:\n%s", got)
	}
	if strings.Contains(got, "2026-03-12") {
		t.Errorf("gap day should be skipped:\n%s", got)
	}
}

func TestRecentReportsAllMissing(t *testing.T) {
	paths := runstore.NewPaths(t.TempDir())
	got := RecentReports(paths, 3)("2026-03-14")
	if !strings.Contains(got, "[context:") || !strings.Contains(got, "not found") {
		t.Fatalf("want bracketed not-found note, got %q", got)
	}
}

func TestPreviousBrief(t *testing.T) {
	paths := runstore.NewPaths(t.TempDir())
	artifact := paths.ArtifactPath("2026-03-13", "cloud_computing")
	if err := os.MkdirAll(filepath.Dir(artifact), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(artifact, []byte("yesterday's take"), 0o644); err != nil {
		t.Fatal(err)
	}

	got := PreviousBrief(paths, "cloud_computing")("2026-03-14")
	if !strings.Contains(got, "yesterday's take") {
		t.Errorf("missing artifact body: %q", got)
	}

	missing := PreviousBrief(paths, "quantum_hardware")("2026-03-14")
	if !strings.Contains(missing, "[context: yesterday's brief for quantum_hardware not found]") {
		t.Errorf("want not-found note, got %q", missing)
	}
}

func TestPreviousRunSummary(t *testing.T) {
	paths := runstore.NewPaths(t.TempDir())
	rec := model.RunRecord{
		SchemaVersion: 1,
		RunDate:       "2026-03-13",
		Total:         4,
		Succeeded:     3,
		Failed:        1,
	}
	if err := runstore.SaveRunRecord(paths, rec); err != nil {
		t.Fatal(err)
	}

	got := PreviousRunSummary(paths)("2026-03-14")
	if !strings.Contains(got, "4 jobs total") || !strings.Contains(got, "3 succeeded") {
		t.Errorf("summary = %q", got)
	}

	empty := PreviousRunSummary(paths)("2026-03-13")
	if !strings.Contains(empty, "[context:") {
		t.Errorf("want not-found note, got %q", empty)
	}
}

func TestClipSourceTruncatesLargeBodies(t *testing.T) {
	big := strings.Repeat("x", enrichSourceLimit+500)
	got := clipSource([]byte(big))
	if len(got) > enrichSourceLimit+len("\n(truncated)") {
		t.Fatalf("clipped length = %d", len(got))
	}
	if !strings.HasSuffix(got, "(truncated)") {
		t.Fatalf("missing truncation marker")
	}
}
