package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefmill/internal/runstore"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var limit int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "print recent maintenance audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			paths := runstore.NewPaths(cfg.Workspace)
			entries, err := runstore.NewAuditLog(paths.AuditPath()).Read(limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(entries)
			}
			if len(entries) == 0 {
				fmt.Println("audit log is empty")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s  %-9s %-8s operator=%s dry_run=%v paths=%d",
					e.Timestamp, e.Mode, e.Outcome, e.Operator, e.DryRun, len(e.AffectedPaths))
				if e.DeploymentRef != "" {
					fmt.Printf(" deployment=%s", e.DeploymentRef)
				}
				if e.Reason != "" {
					fmt.Printf(" reason=%q", e.Reason)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "show the most recent N entries (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}
