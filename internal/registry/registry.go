// Package registry loads the job manifest. Two backends exist: the
// canonical tab-separated file and a SQLite database for workspaces that
// outgrow hand-edited files. Both preserve manifest order.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"briefmill/internal/model"
)

// ErrManifestMissing aborts a run before any job executes.
var ErrManifestMissing = errors.New("job manifest missing")

// Provider yields the ordered set of manifest jobs.
type Provider interface {
	Load() ([]model.Job, error)
}

// LoadJobs opens the backend named in config, loads, and releases it.
func LoadJobs(backend, path string) ([]model.Job, error) {
	switch backend {
	case "sqlite":
		p, err := OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		defer p.Close()
		return p.Load()
	default:
		return NewTSV(path).Load()
	}
}

// EnabledJobs filters the manifest down to what the executor runs,
// keeping manifest order.
func EnabledJobs(jobs []model.Job) []model.Job {
	out := make([]model.Job, 0, len(jobs))
	for _, j := range jobs {
		if j.Enabled {
			out = append(out, j)
		}
	}
	return out
}

// Validate checks manifest integrity and returns one message per problem.
func Validate(jobs []model.Job) []string {
	var problems []string
	seen := make(map[string]int, len(jobs))
	for i, j := range jobs {
		record := i + 1
		domain := strings.TrimSpace(j.Domain)
		if domain == "" {
			problems = append(problems, fmt.Sprintf("record %d: empty domain", record))
			continue
		}
		if prev, ok := seen[j.Slug()]; ok {
			problems = append(problems, fmt.Sprintf("record %d: duplicate domain %q (first at record %d)", record, j.Domain, prev))
		} else {
			seen[j.Slug()] = record
		}
		if strings.TrimSpace(j.Instruction) == "" {
			problems = append(problems, fmt.Sprintf("record %d (%s): empty instruction", record, j.Domain))
		}
		if strings.TrimSpace(j.Category) == "" {
			problems = append(problems, fmt.Sprintf("record %d (%s): empty category", record, j.Domain))
		}
	}
	return problems
}
