package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"briefmill/internal/model"
	"briefmill/internal/runstore"
	"briefmill/internal/workspace"
)

func confirmYes(string) (bool, error) { return true, nil }

func confirmNo(string) (bool, error) { return false, nil }

func confirmMustNotRun(t *testing.T) func(string) (bool, error) {
	return func(string) (bool, error) {
		t.Fatal("confirmation prompt shown on a path that must not reach it")
		return false, nil
	}
}

// seedGeneratedData creates files under a few of the generated roots so
// plans have something real to list.
func seedGeneratedData(t *testing.T, paths runstore.Paths) []string {
	t.Helper()
	briefs := filepath.Join(paths.Root, "data", "briefs")
	files := map[string]string{
		filepath.Join(briefs, "2026-03-14", "cloud_computing.md"): "brief",
		paths.ReportPath("2026-03-14"):                            "report",
		paths.MarkerPath("2026-03-14"):                            "done",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return []string{briefs, paths.ReportsDir(), paths.MarkersDir()}
}

func readAuditEntries(t *testing.T, paths runstore.Paths) []runstore.AuditEntry {
	t.Helper()
	entries, err := runstore.NewAuditLog(paths.AuditPath()).Read(0)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	return entries
}

func cleanupOptions(t *testing.T, root string, git string) MaintenanceOptions {
	t.Helper()
	gitPath := installFakeBinary(t, root, "fake-git", git)
	cfg := testConfig(t, root, "unused", gitPath)
	return MaintenanceOptions{
		Config:     cfg,
		Trigger:    model.TriggerOperator,
		CLIVersion: "test",
		Confirm:    confirmYes,
		Quiet:      true,
	}
}

func TestRunCleanupBlockedUnderAutomation(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeCleanGit)
	opts.Trigger = model.TriggerAutomation
	opts.Confirm = confirmMustNotRun(t)

	err := RunCleanup(opts)
	if !errors.Is(err, ErrAutomationGuard) {
		t.Fatalf("err = %v, want ErrAutomationGuard", err)
	}
	if _, statErr := os.Stat(paths.ReportPath("2026-03-14")); statErr != nil {
		t.Error("data removed despite automation guard")
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	if entries[0].Outcome != runstore.AuditOutcomeBlocked || entries[0].Mode != runstore.AuditModeCleanup {
		t.Errorf("audit entry = %+v", entries[0])
	}
}

func TestRunCleanupBlockedOnDirtyTree(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeDirtyGit)
	opts.Confirm = confirmMustNotRun(t)

	err := RunCleanup(opts)
	if !errors.Is(err, workspace.ErrDirtyWorktree) {
		t.Fatalf("err = %v, want ErrDirtyWorktree", err)
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	e := entries[0]
	if e.Outcome != runstore.AuditOutcomeBlocked || e.WorktreeClean || len(e.DirtyFiles) != 2 {
		t.Errorf("audit entry = %+v", e)
	}
}

func TestRunCleanupDirtyTreeOverride(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeDirtyGit)
	opts.AllowDirty = true
	opts.Yes = true

	if err := RunCleanup(opts); err != nil {
		t.Fatalf("RunCleanup with --allow-dirty: %v", err)
	}
	entries := readAuditEntries(t, paths)
	if len(entries) != 1 || entries[0].Outcome != runstore.AuditOutcomeExecuted {
		t.Fatalf("audit entries = %+v", entries)
	}
	if entries[0].WorktreeClean {
		t.Error("audit entry claims a clean tree")
	}
}

func TestRunCleanupDryRunListsOnlyExistingPaths(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	existing := seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeCleanGit)
	opts.DryRun = true
	opts.Confirm = confirmMustNotRun(t)

	if err := RunCleanup(opts); err != nil {
		t.Fatalf("dry-run cleanup: %v", err)
	}

	if _, err := os.Stat(paths.ReportPath("2026-03-14")); err != nil {
		t.Error("dry run removed data")
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	e := entries[0]
	if e.Outcome != runstore.AuditOutcomePlanned || !e.DryRun {
		t.Fatalf("audit entry = %+v", e)
	}
	got := append([]string(nil), e.AffectedPaths...)
	want := append([]string(nil), existing...)
	sort.Strings(got)
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("affected paths = %v, want only the existing roots %v", got, want)
	}
}

func TestRunCleanupDeclined(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeCleanGit)
	opts.Confirm = confirmNo

	err := RunCleanup(opts)
	if !errors.Is(err, ErrDeclined) {
		t.Fatalf("err = %v, want ErrDeclined", err)
	}
	if _, statErr := os.Stat(paths.ReportPath("2026-03-14")); statErr != nil {
		t.Error("data removed despite declined confirmation")
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 || entries[0].Outcome != runstore.AuditOutcomeDeclined {
		t.Fatalf("audit entries = %+v", entries)
	}
}

func TestRunCleanupExecutesAndPreservesAudit(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	existing := seedGeneratedData(t, paths)

	opts := cleanupOptions(t, root, fakeCleanGit)
	opts.Yes = true
	opts.Reason = "resetting before the demo"
	opts.Confirm = confirmMustNotRun(t)

	if err := RunCleanup(opts); err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}

	for _, root := range existing {
		if _, err := os.Stat(root); !os.IsNotExist(err) {
			t.Errorf("root %s still present after cleanup", root)
		}
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 {
		t.Fatalf("audit entries = %d, want exactly 1", len(entries))
	}
	e := entries[0]
	if e.Outcome != runstore.AuditOutcomeExecuted {
		t.Errorf("outcome = %q, want executed", e.Outcome)
	}
	if e.BytesFreed <= 0 {
		t.Errorf("bytes freed = %d, want > 0", e.BytesFreed)
	}
	if e.Reason != "resetting before the demo" {
		t.Errorf("reason = %q", e.Reason)
	}
	if len(e.AffectedPaths) != len(existing) {
		t.Errorf("affected paths = %v", e.AffectedPaths)
	}
}

func TestRunCleanupRetractsLatestDeployment(t *testing.T) {
	root := t.TempDir()
	paths := runstore.NewPaths(root)
	seedGeneratedData(t, paths)

	deleteLog := filepath.Join(root, "deletes.log")
	pubScript := fmt.Sprintf(`#!/usr/bin/env bash
case "$*" in
*"deployments list"*)
  echo "id | name | source | status | created"
  echo "0123456789abcdef0123456789abcdef | briefs | upload | active (current) | 2026-03-14"
  ;;
*"deployment delete"*)
  echo "$*" >> %q
  ;;
esac
`, deleteLog)
	pub := installFakeBinary(t, root, "fake-pub", pubScript)

	opts := cleanupOptions(t, root, fakeCleanGit)
	opts.Config.Publish.Command = pub
	opts.Config.Publish.Project = "briefs"
	opts.Config.Publish.Credential = "sekrit"
	opts.Yes = true

	if err := RunCleanup(opts); err != nil {
		t.Fatalf("RunCleanup: %v", err)
	}

	raw, err := os.ReadFile(deleteLog)
	if err != nil {
		t.Fatalf("deployment delete never ran: %v", err)
	}
	got := string(raw)
	if !strings.Contains(got, "deployment delete") || !strings.Contains(got, "0123456789abcdef0123456789abcdef") {
		t.Errorf("delete invocation = %q", got)
	}

	entries := readAuditEntries(t, paths)
	if len(entries) != 1 || entries[0].DeploymentRef != "0123456789abcdef0123456789abcdef" {
		t.Fatalf("audit entries = %+v", entries)
	}
}
