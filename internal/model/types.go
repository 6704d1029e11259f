package model

import "strings"

// Job is one manifest record describing a single generation task.
// Loaded once per run; immutable afterwards.
type Job struct {
	Domain      string `json:"domain"`
	Category    string `json:"category"`
	Instruction string `json:"instruction"`
	Priority    string `json:"priority"`
	Enabled     bool   `json:"enabled"`
}

// Slug returns the artifact-addressing form of the job's domain:
// lowercased with spaces collapsed to underscores.
func (j Job) Slug() string {
	slug := strings.ToLower(strings.TrimSpace(j.Domain))
	return strings.Join(strings.Fields(slug), "_")
}

// JobResult is the terminal outcome of one job in one run. Created once
// when the job's process terminates and never mutated afterwards.
type JobResult struct {
	JobName    string `json:"job_name"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at"`
	ExitDetail string `json:"exit_detail,omitempty"`
	Artifact   string `json:"artifact,omitempty"`
	SHA256     string `json:"sha256,omitempty"`
}

// RunRecord is the per-date run state file. Rewritten atomically at run
// start and once more when the run finishes.
type RunRecord struct {
	SchemaVersion int    `json:"schema_version"`
	InvocationID  string `json:"invocation_id"`
	RunDate       string `json:"run_date"`
	Trigger       string `json:"trigger"`
	Override      string `json:"override,omitempty"`
	Operator      string `json:"operator"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at,omitempty"`
	Total         int    `json:"total"`
	Succeeded     int    `json:"succeeded"`
	Failed        int    `json:"failed"`
	TimedOut      int    `json:"timed_out"`
}

const (
	TriggerOperator   = "operator"
	TriggerAutomation = "automation"
)
