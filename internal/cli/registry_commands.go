package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"briefmill/internal/config"
	"briefmill/internal/registry"
)

func newRegistryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "inspect and migrate the job manifest",
	}
	cmd.AddCommand(
		newRegistryListCmd(opts),
		newRegistryValidateCmd(opts),
		newRegistryImportCmd(opts),
	)
	return cmd
}

func newRegistryListCmd(opts *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "print the manifest in load order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			jobs, err := registry.LoadJobs(cfg.Manifest.Backend, cfg.ManifestPath())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(jobs)
			}
			fmt.Printf("manifest: %s (%s backend, %d job(s))\n", cfg.ManifestPath(), cfg.Manifest.Backend, len(jobs))
			for _, j := range jobs {
				state := "enabled"
				if !j.Enabled {
					state = "disabled"
				}
				fmt.Printf("  %-28s %-14s %-8s %s\n", j.Slug(), j.Category, j.Priority, state)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON output")
	return cmd
}

func newRegistryValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "check the manifest for duplicate domains and empty fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			jobs, err := registry.LoadJobs(cfg.Manifest.Backend, cfg.ManifestPath())
			if err != nil {
				return err
			}
			problems := registry.Validate(jobs)
			if len(problems) == 0 {
				fmt.Printf("manifest OK: %d job(s), %d enabled\n", len(jobs), len(registry.EnabledJobs(jobs)))
				return nil
			}
			for _, p := range problems {
				fmt.Println("problem:", p)
			}
			return fmt.Errorf("manifest has %d problem(s)", len(problems))
		},
	}
}

func newRegistryImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "migrate the TSV manifest into the SQLite registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			n, err := registry.ImportTSV(cfg.TSVManifestPath(), cfg.SQLiteManifestPath())
			if err != nil {
				return err
			}
			fmt.Printf("imported %d job(s) into %s\n", n, cfg.SQLiteManifestPath())
			if cfg.Manifest.Backend != config.BackendSQLite {
				fmt.Println("set manifest.backend: sqlite in the config file to activate it")
			}
			return nil
		},
	}
}
