package runstore

import (
	"strings"
	"testing"
	"time"
)

func TestMarkers_CompleteCycle(t *testing.T) {
	paths := NewPaths(t.TempDir())
	markers := NewMarkers(paths)
	const runDate = "2026-08-24"

	done, err := markers.IsComplete(runDate)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("fresh workspace must not be complete")
	}

	at := time.Date(2026, 8, 24, 6, 30, 0, 0, time.UTC)
	if err := markers.MarkComplete(runDate, at); err != nil {
		t.Fatalf("mark complete: %v", err)
	}

	done, err = markers.IsComplete(runDate)
	if err != nil {
		t.Fatal(err)
	}
	if !done {
		t.Fatal("expected run to be complete after marking")
	}

	content, err := markers.CompletedAt(runDate)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, runDate) || !strings.Contains(content, "2026") {
		t.Fatalf("marker content not human readable: %q", content)
	}

	if err := markers.Remove(runDate); err != nil {
		t.Fatal(err)
	}
	done, err = markers.IsComplete(runDate)
	if err != nil {
		t.Fatal(err)
	}
	if done {
		t.Fatal("expected marker removal to reset completion")
	}
}

func TestMarkers_RemoveMissingIsNoop(t *testing.T) {
	markers := NewMarkers(NewPaths(t.TempDir()))
	if err := markers.Remove("2026-01-01"); err != nil {
		t.Fatalf("removing absent marker must not error: %v", err)
	}
}
