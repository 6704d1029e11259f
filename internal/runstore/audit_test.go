package runstore

import (
	"path/filepath"
	"testing"
)

func TestAuditLog_AppendAssignsIDAndTimestamp(t *testing.T) {
	log := NewAuditLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	entry := AuditEntry{
		Operator: "casey",
		Mode:     AuditModeCleanup,
		DryRun:   true,
		Outcome:  AuditOutcomePlanned,
	}
	if err := log.Append(entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := log.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got := entries[0]
	if got.ID == "" || got.Timestamp == "" {
		t.Fatalf("expected id and timestamp to be assigned: %+v", got)
	}
	if got.AffectedPaths == nil {
		t.Fatal("affected_paths must serialize as an array, not null")
	}
	if !got.DryRun || got.Mode != AuditModeCleanup {
		t.Fatalf("entry fields lost: %+v", got)
	}
}

func TestAuditLog_ReadLimitReturnsNewest(t *testing.T) {
	log := NewAuditLog(filepath.Join(t.TempDir(), "audit.jsonl"))

	for _, mode := range []string{AuditModeCleanup, AuditModeReprocess, AuditModeCleanup} {
		if err := log.Append(AuditEntry{Operator: "casey", Mode: mode, Outcome: AuditOutcomeExecuted}); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := log.Read(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Mode != AuditModeReprocess {
		t.Fatalf("expected newest-last windowing, got %+v", entries)
	}
}

func TestAuditLog_ReadMissingIsEmpty(t *testing.T) {
	log := NewAuditLog(filepath.Join(t.TempDir(), "audit.jsonl"))
	entries, err := log.Read(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty audit log, got %d", len(entries))
	}
}
