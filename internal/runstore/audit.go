package runstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	AuditModeCleanup   = "cleanup"
	AuditModeReprocess = "reprocess"

	AuditOutcomeExecuted = "executed"
	AuditOutcomePlanned  = "planned"
	AuditOutcomeDeclined = "declined"
	AuditOutcomeBlocked  = "blocked"
	AuditOutcomePartial  = "partial"
)

// AuditEntry is one immutable record of a destructive-mode invocation.
// Exactly one entry is written per invocation, blocked and declined ones
// included.
type AuditEntry struct {
	ID            string   `json:"id"`
	Timestamp     string   `json:"timestamp"`
	Operator      string   `json:"operator"`
	CLIVersion    string   `json:"cli_version"`
	Mode          string   `json:"mode"`
	DryRun        bool     `json:"dry_run"`
	WorktreeClean bool     `json:"worktree_clean"`
	DirtyFiles    []string `json:"dirty_files,omitempty"`
	AffectedPaths []string `json:"affected_paths"`
	BytesFreed    int64    `json:"bytes_freed,omitempty"`
	Outcome       string   `json:"outcome"`
	DeploymentRef string   `json:"deployment_ref,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	DurationSec   float64  `json:"duration_sec,omitempty"`
}

type AuditLog struct {
	path string
}

func NewAuditLog(path string) AuditLog {
	return AuditLog{path: path}
}

func (a AuditLog) Path() string {
	return a.path
}

// Append assigns the entry id and timestamp if unset and appends one line.
func (a AuditLog) Append(entry AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	if entry.AffectedPaths == nil {
		entry.AffectedPaths = []string{}
	}
	if err := AppendJSONLine(a.path, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Read returns the most recent entries, newest last. limit <= 0 means all.
func (a AuditLog) Read(limit int) ([]AuditEntry, error) {
	lines, err := ReadLines(a.path)
	if err != nil {
		return nil, err
	}
	entries := make([]AuditEntry, 0, len(lines))
	for i, line := range lines {
		var e AuditEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("parse audit log line %d: %w", i+1, err)
		}
		entries = append(entries, e)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
