package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type PlanEntry struct {
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Exists bool   `json:"exists"`
}

// RemovalPlan is the full set of paths a destructive mode would delete,
// computed before any deletion so the operator can see it.
type RemovalPlan struct {
	Entries    []PlanEntry `json:"entries"`
	TotalBytes int64       `json:"total_bytes"`
}

func (p RemovalPlan) Paths() []string {
	out := make([]string, 0, len(p.Entries))
	for _, e := range p.Entries {
		out = append(out, e.Path)
	}
	return out
}

func (p RemovalPlan) ExistingPaths() []string {
	var out []string
	for _, e := range p.Entries {
		if e.Exists {
			out = append(out, e.Path)
		}
	}
	return out
}

// PlanRemoval stats every candidate path and sizes the trees under it.
// Missing paths stay in the plan so the audit records the full scope.
func PlanRemoval(paths ...string) (RemovalPlan, error) {
	plan := RemovalPlan{Entries: make([]PlanEntry, 0, len(paths))}
	for _, p := range paths {
		entry := PlanEntry{Path: p}
		info, err := os.Stat(p)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return RemovalPlan{}, fmt.Errorf("stat %s: %w", p, err)
		case info.IsDir():
			entry.Exists = true
			size, err := TreeSize(p)
			if err != nil {
				return RemovalPlan{}, err
			}
			entry.Bytes = size
		default:
			entry.Exists = true
			entry.Bytes = info.Size()
		}
		plan.TotalBytes += entry.Bytes
		plan.Entries = append(plan.Entries, entry)
	}
	return plan, nil
}

// TreeSize sums regular file sizes under root.
func TreeSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return total, nil
}

// ExecutePlan deletes every existing path in the plan. It keeps going
// past individual failures and reports them together so a half-removed
// workspace is visible rather than silent.
func ExecutePlan(plan RemovalPlan) (removed []string, err error) {
	var failures []string
	for _, e := range plan.Entries {
		if !e.Exists {
			continue
		}
		if rmErr := os.RemoveAll(e.Path); rmErr != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", e.Path, rmErr))
			continue
		}
		removed = append(removed, e.Path)
	}
	if len(failures) > 0 {
		return removed, fmt.Errorf("remove failed for %d path(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return removed, nil
}

func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	const unit = 1024
	if n < unit {
		return strconv.FormatInt(n, 10) + " B"
	}
	div, exp := int64(unit), 0
	for q := n / unit; q >= unit; q /= unit {
		div *= unit
		exp++
	}
	value := float64(n) / float64(div)
	suffix := "KMGTPE"[exp]
	return strconv.FormatFloat(value, 'f', 1, 64) + " " + string(suffix) + "iB"
}
