package runstore

import "path/filepath"

// Paths resolves the fixed workspace layout. Everything the pipeline
// generates lives under data/, state/, and logs/ so cleanup can reason
// about a small set of roots.
type Paths struct {
	Root string
}

func NewPaths(root string) Paths {
	return Paths{Root: root}
}

func (p Paths) DataDir() string {
	return filepath.Join(p.Root, "data")
}

func (p Paths) StateDir() string {
	return filepath.Join(p.Root, "state")
}

func (p Paths) LogsDir() string {
	return filepath.Join(p.Root, "logs")
}

func (p Paths) BriefsDir(runDate string) string {
	return filepath.Join(p.Root, "data", "briefs", runDate)
}

func (p Paths) ArtifactPath(runDate, slug string) string {
	return filepath.Join(p.BriefsDir(runDate), slug+".md")
}

func (p Paths) ReportsDir() string {
	return filepath.Join(p.Root, "data", "reports")
}

func (p Paths) ReportPath(runDate string) string {
	return filepath.Join(p.ReportsDir(), "daily_report_"+runDate+".md")
}

func (p Paths) PublishDir() string {
	return filepath.Join(p.Root, "data", "publish")
}

func (p Paths) PublishSummaryPath(runDate string) string {
	return filepath.Join(p.PublishDir(), "summary_"+runDate+".json")
}

func (p Paths) MarkersDir() string {
	return filepath.Join(p.Root, "state", "markers")
}

func (p Paths) MarkerPath(runDate string) string {
	return filepath.Join(p.MarkersDir(), runDate+".done")
}

func (p Paths) LockPath() string {
	return filepath.Join(p.Root, "state", "pipeline.lock")
}

func (p Paths) LedgerDir() string {
	return filepath.Join(p.Root, "state", "ledger")
}

func (p Paths) LedgerPath(runDate string) string {
	return filepath.Join(p.LedgerDir(), runDate+".jsonl")
}

func (p Paths) RunsDir() string {
	return filepath.Join(p.Root, "state", "runs")
}

func (p Paths) RunRecordPath(runDate string) string {
	return filepath.Join(p.RunsDir(), runDate+".json")
}

func (p Paths) AuditPath() string {
	return filepath.Join(p.Root, "state", "audit.jsonl")
}

func (p Paths) RunLogDir() string {
	return filepath.Join(p.Root, "logs", "runs")
}

func (p Paths) RunLogPath(runDate string) string {
	return filepath.Join(p.RunLogDir(), runDate+".log")
}

// GeneratedRoots lists every directory a full workspace reset removes.
// The audit log and the lock are deliberately excluded: the audit trail
// outlives resets and the lock belongs to the running process.
func (p Paths) GeneratedRoots() []string {
	return []string{
		filepath.Join(p.Root, "data", "briefs"),
		p.ReportsDir(),
		p.PublishDir(),
		p.MarkersDir(),
		p.LedgerDir(),
		p.RunsDir(),
		p.RunLogDir(),
	}
}

// RunScopedPaths lists everything a single run produced, for Reprocess.
func (p Paths) RunScopedPaths(runDate string) []string {
	return []string{
		p.BriefsDir(runDate),
		p.ReportPath(runDate),
		p.PublishSummaryPath(runDate),
		p.LedgerPath(runDate),
		p.RunRecordPath(runDate),
		p.MarkerPath(runDate),
	}
}
