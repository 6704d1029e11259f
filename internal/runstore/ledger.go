package runstore

import (
	"encoding/json"
	"fmt"
	"os"

	"briefmill/internal/model"
)

// LedgerEntry is one line of the per-date run ledger: a JobResult plus
// the run context the notification collaborator needs.
type LedgerEntry struct {
	RunDate      string `json:"run_date"`
	InvocationID string `json:"invocation_id"`
	JobName      string `json:"job_name"`
	Status       string `json:"status"`
	StartedAt    string `json:"started_at"`
	FinishedAt   string `json:"finished_at"`
	ExitDetail   string `json:"exit_detail,omitempty"`
	Artifact     string `json:"artifact,omitempty"`
	SHA256       string `json:"sha256,omitempty"`
}

// Ledger is the append-only per-run record of job outcomes.
type Ledger struct {
	paths Paths
}

func NewLedger(paths Paths) Ledger {
	return Ledger{paths: paths}
}

func (l Ledger) Path(runDate string) string {
	return l.paths.LedgerPath(runDate)
}

func (l Ledger) Append(runDate, invocationID string, res model.JobResult) error {
	entry := LedgerEntry{
		RunDate:      runDate,
		InvocationID: invocationID,
		JobName:      res.JobName,
		Status:       res.Status,
		StartedAt:    res.StartedAt,
		FinishedAt:   res.FinishedAt,
		ExitDetail:   res.ExitDetail,
		Artifact:     res.Artifact,
		SHA256:       res.SHA256,
	}
	if err := AppendJSONLine(l.Path(runDate), entry); err != nil {
		return fmt.Errorf("record job result for %s: %w", res.JobName, err)
	}
	return nil
}

func (l Ledger) Read(runDate string) ([]LedgerEntry, error) {
	lines, err := ReadLines(l.Path(runDate))
	if err != nil {
		return nil, err
	}
	entries := make([]LedgerEntry, 0, len(lines))
	for i, line := range lines {
		var e LedgerEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse ledger %s line %d: %w", l.Path(runDate), i+1, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FailedJobNames extracts the jobs that did not succeed, for notifier env.
func FailedJobNames(entries []LedgerEntry) []string {
	var failed []string
	for _, e := range entries {
		if e.Status != model.StatusSuccess {
			failed = append(failed, e.JobName)
		}
	}
	return failed
}

func SaveRunRecord(paths Paths, rec model.RunRecord) error {
	return WriteJSON(paths.RunRecordPath(rec.RunDate), rec)
}

func LoadRunRecord(paths Paths, runDate string) (model.RunRecord, error) {
	var rec model.RunRecord
	if err := ReadJSON(paths.RunRecordPath(runDate), &rec); err != nil {
		return model.RunRecord{}, err
	}
	return rec, nil
}

func RunRecordExists(paths Paths, runDate string) bool {
	_, err := os.Stat(paths.RunRecordPath(runDate))
	return err == nil
}
