package registry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"briefmill/internal/model"
)

// TSV reads the tab-separated manifest: one job per line with the
// columns domain, category, instruction, priority, enabled. The first
// line is a header and is skipped.
type TSV struct {
	path string
}

func NewTSV(path string) TSV {
	return TSV{path: path}
}

func (t TSV) Load() ([]model.Job, error) {
	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestMissing, t.path)
		}
		return nil, fmt.Errorf("open manifest %s: %w", t.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", t.path, err)
	}

	var jobs []model.Job
	for i, rec := range records {
		if i == 0 {
			// Header row.
			continue
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != 5 {
			return nil, fmt.Errorf("manifest %s line %d: expected 5 fields, got %d", t.path, i+1, len(rec))
		}
		enabled, err := parseEnabled(rec[4])
		if err != nil {
			return nil, fmt.Errorf("manifest %s line %d: %w", t.path, i+1, err)
		}
		jobs = append(jobs, model.Job{
			Domain:      strings.TrimSpace(rec[0]),
			Category:    strings.TrimSpace(rec[1]),
			Instruction: strings.TrimSpace(rec[2]),
			Priority:    strings.TrimSpace(rec[3]),
			Enabled:     enabled,
		})
	}
	return jobs, nil
}

// parseEnabled accepts only the literal strings "true" and "false" so a
// typo disables nothing silently.
func parseEnabled(field string) (bool, error) {
	switch strings.TrimSpace(field) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("enabled must be \"true\" or \"false\", got %q", field)
	}
}

// WriteTSV renders jobs back to manifest form, used by registry export.
func WriteTSV(path string, jobs []model.Job) error {
	var b strings.Builder
	b.WriteString("domain\tcategory\tinstruction\tpriority\tenabled\n")
	for _, j := range jobs {
		enabled := "false"
		if j.Enabled {
			enabled = "true"
		}
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%s\n", j.Domain, j.Category, j.Instruction, j.Priority, enabled)
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
