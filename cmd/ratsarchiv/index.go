package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ratsarchiv/archiv"
)

func indexCMD(g *globalFlags) *cobra.Command {
	var skipExisting, extract bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Project the raw artifact tree into the SQLite index",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			svc, err := archiv.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			stats, err := svc.BuildIndex(cmd.Context(), skipExisting, extract)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(stats)
		},
	}
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "leave sessions already in the index untouched")
	cmd.Flags().BoolVar(&extract, "extract", false, "run content extraction and store its status")
	return cmd
}

func migrateCMD(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move legacy raw directories and apply pending index migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			// New applies migrations on open; conflicting steps stay pending
			// and are reported by Migrate.
			svc, err := archiv.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, err := svc.Migrate(cmd.Context())
			if rep != nil {
				json.NewEncoder(os.Stdout).Encode(rep)
			}
			return err
		},
	}
}
