package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefmill/internal/workspace"
)

func newDoctorCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "check required tools, directories, manifest, and lock health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			report := workspace.Doctor(cfg)
			if jsonOut {
				if err := printJSON(report); err != nil {
					return err
				}
			} else {
				for _, c := range report.Checks {
					mark := " ok "
					if !c.OK {
						mark = "FAIL"
					}
					fmt.Printf("[%s] %-22s %s\n", mark, c.Name, c.Message)
				}
			}
			if !report.OK {
				return fmt.Errorf("doctor: %d check(s) failed", failedCheckCount(report))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func failedCheckCount(r workspace.DoctorReport) int {
	n := 0
	for _, c := range r.Checks {
		if !c.OK {
			n++
		}
	}
	return n
}
