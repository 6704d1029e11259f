package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"briefmill/internal/runstore"
	"briefmill/internal/workspace"
)

type verifyEntry struct {
	File   string `json:"file"`
	Bytes  int64  `json:"bytes"`
	SHA256 string `json:"sha256"`
	Ledger string `json:"ledger"` // verified | mismatch | unrecorded
}

type verifyReport struct {
	RunDate    string        `json:"run_date"`
	Artifacts  []verifyEntry `json:"artifacts"`
	Missing    []string      `json:"missing,omitempty"`
	Mismatches int           `json:"mismatches"`
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "verify [date]",
		Short: "check a run's artifacts against the ledger hashes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			runDate := cfg.RunDate
			if len(args) == 1 {
				if _, err := time.Parse("2006-01-02", args[0]); err != nil {
					return fmt.Errorf("invalid date %q: want YYYY-MM-DD", args[0])
				}
				runDate = args[0]
			}

			report, err := buildVerifyReport(runstore.NewPaths(cfg.Workspace), runDate)
			if err != nil {
				return err
			}
			if jsonOut {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				printVerifyReport(report)
			}
			if report.Mismatches > 0 || len(report.Missing) > 0 {
				return fmt.Errorf("verify %s: %d mismatch(es), %d missing artifact(s)",
					runDate, report.Mismatches, len(report.Missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func buildVerifyReport(paths runstore.Paths, runDate string) (verifyReport, error) {
	report := verifyReport{RunDate: runDate}

	// Expected hashes come from the run ledger; artifacts the executor
	// never recorded (failed jobs) have no entry.
	expected := make(map[string]string)
	entries, err := runstore.NewLedger(paths).Read(runDate)
	if err != nil {
		return verifyReport{}, err
	}
	for _, e := range entries {
		if e.Artifact != "" && e.SHA256 != "" {
			expected[e.Artifact] = e.SHA256
		}
	}

	dir := paths.BriefsDir(runDate)
	names, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return verifyReport{}, fmt.Errorf("read artifacts dir %s: %w", dir, err)
	}
	onDisk := make(map[string]bool, len(names))
	for _, entry := range names {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		onDisk[path] = true

		info, err := entry.Info()
		if err != nil {
			return verifyReport{}, fmt.Errorf("stat %s: %w", path, err)
		}
		sha, err := runstore.FileSHA256(path)
		if err != nil {
			return verifyReport{}, err
		}

		ve := verifyEntry{File: entry.Name(), Bytes: info.Size(), SHA256: sha, Ledger: "unrecorded"}
		if want, ok := expected[path]; ok {
			if want == sha {
				ve.Ledger = "verified"
			} else {
				ve.Ledger = "mismatch"
				report.Mismatches++
			}
		}
		report.Artifacts = append(report.Artifacts, ve)
	}

	for path := range expected {
		if !onDisk[path] {
			report.Missing = append(report.Missing, path)
		}
	}
	sort.Strings(report.Missing)
	return report, nil
}

func printVerifyReport(r verifyReport) {
	if len(r.Artifacts) == 0 && len(r.Missing) == 0 {
		fmt.Printf("verify %s: no artifacts\n", r.RunDate)
		return
	}
	fmt.Printf("verify %s: %d artifact(s)\n", r.RunDate, len(r.Artifacts))
	for _, a := range r.Artifacts {
		fmt.Printf("  %-32s %10s  sha256=%s  %s\n", a.File, workspace.FormatBytes(a.Bytes), a.SHA256[:12], a.Ledger)
	}
	for _, m := range r.Missing {
		fmt.Printf("  missing from disk: %s\n", m)
	}
}
