package runstore

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Markers is the idempotency ledger: one marker file per run date whose
// presence means the run's job-execution phase already completed.
type Markers struct {
	dir   string
	paths Paths
}

func NewMarkers(paths Paths) Markers {
	return Markers{dir: paths.MarkersDir(), paths: paths}
}

func (m Markers) Path(runDate string) string {
	return m.paths.MarkerPath(runDate)
}

func (m Markers) IsComplete(runDate string) (bool, error) {
	_, err := os.Stat(m.Path(runDate))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat run marker for %s: %w", runDate, err)
}

// CompletedAt returns the marker's recorded human-readable timestamp.
func (m Markers) CompletedAt(runDate string) (string, error) {
	raw, err := os.ReadFile(m.Path(runDate))
	if err != nil {
		return "", fmt.Errorf("read run marker for %s: %w", runDate, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// MarkComplete writes the marker. Called only after every enabled job has
// a terminal result and all downstream steps were attempted.
func (m Markers) MarkComplete(runDate string, at time.Time) error {
	content := fmt.Sprintf("run %s completed at %s\n", runDate, at.Format(time.RFC1123))
	if err := WriteBytes(m.Path(runDate), []byte(content)); err != nil {
		return fmt.Errorf("write run marker for %s: %w", runDate, err)
	}
	return nil
}

func (m Markers) Remove(runDate string) error {
	if err := os.Remove(m.Path(runDate)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove run marker for %s: %w", runDate, err)
	}
	return nil
}
