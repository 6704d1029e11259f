package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"briefmill/internal/model"
	"briefmill/internal/runstore"
)

// Strategy produces optional extra context for one run date. Strategies
// never fail: a missing source degrades to a bracketed not-found note
// inside the returned text so the job still runs.
type Strategy func(runDate string) string

const enrichSourceLimit = 4000

// Enricher maps job names to context strategies. Jobs without an entry
// run their instruction unchanged.
type Enricher struct {
	strategies map[string]Strategy
}

// NewEnricher builds the fixed strategy table. The well-known job names
// here get historical context; everything else is left alone.
func NewEnricher(paths runstore.Paths) *Enricher {
	e := &Enricher{strategies: make(map[string]Strategy)}
	e.Register("daily_overview", RecentReports(paths, 3))
	e.Register("weekly_recap", RecentReports(paths, 7))
	e.Register("pipeline_health", PreviousRunSummary(paths))
	return e
}

func (e *Enricher) Register(jobName string, s Strategy) {
	e.strategies[jobName] = s
}

// Enrich returns the extra context for a job, or "" when the job has no
// registered strategy.
func (e *Enricher) Enrich(job model.Job, runDate string) string {
	if e == nil {
		return ""
	}
	s, ok := e.strategies[job.Slug()]
	if !ok {
		return ""
	}
	return s(runDate)
}

// PreviousBrief reads yesterday's artifact for the named job.
func PreviousBrief(paths runstore.Paths, slug string) Strategy {
	return func(runDate string) string {
		prev := prevDate(runDate, 1)
		if prev == "" {
			return fmt.Sprintf("[context: yesterday's brief for %s not found]", slug)
		}
		body, err := os.ReadFile(paths.ArtifactPath(prev, slug))
		if err != nil {
			return fmt.Sprintf("[context: yesterday's brief for %s not found]", slug)
		}
		return fmt.Sprintf("Yesterday's brief for %s (%s):\n%s", slug, prev, clipSource(body))
	}
}

// RecentReports concatenates the last n daily reports before the run
// date, skipping missing days.
func RecentReports(paths runstore.Paths, n int) Strategy {
	return func(runDate string) string {
		var parts []string
		for back := 1; back <= n; back++ {
			date := prevDate(runDate, back)
			if date == "" {
				break
			}
			body, err := os.ReadFile(paths.ReportPath(date))
			if err != nil {
				continue
			}
			parts = append(parts, fmt.Sprintf("Daily report %s:\n%s", date, clipSource(body)))
		}
		if len(parts) == 0 {
			return fmt.Sprintf("[context: daily reports for the previous %d day(s) not found]", n)
		}
		return strings.Join(parts, "\n\n")
	}
}

// PreviousRunSummary reports yesterday's run record totals.
func PreviousRunSummary(paths runstore.Paths) Strategy {
	return func(runDate string) string {
		prev := prevDate(runDate, 1)
		if prev == "" {
			return "[context: no previous run record found]"
		}
		var rec model.RunRecord
		if err := runstore.ReadJSON(paths.RunRecordPath(prev), &rec); err != nil {
			return fmt.Sprintf("[context: no run record found for %s]", prev)
		}
		return fmt.Sprintf("Previous run %s: %d jobs total, %d succeeded, %d failed, %d timed out.",
			rec.RunDate, rec.Total, rec.Succeeded, rec.Failed, rec.TimedOut)
	}
}

func prevDate(runDate string, daysBack int) string {
	t, err := time.Parse("2006-01-02", runDate)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -daysBack).Format("2006-01-02")
}

func clipSource(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= enrichSourceLimit {
		return s
	}
	return s[:enrichSourceLimit] + "\n(truncated)"
}
