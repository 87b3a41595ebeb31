package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ratsarchiv/archiv"
)

func fetchCMD(g *globalFlags) *cobra.Command {
	var year int
	var months []int
	var baseURL, revalidate string
	var buildIndex bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Acquire overview pages, session details and documents for a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := g.load()
			if err != nil {
				return err
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			if revalidate != "" {
				cfg.Revalidate = revalidate
			}
			ctx := cmd.Context()
			svc, err := archiv.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			rep, runErr := svc.Acquire(ctx, archiv.AcquireOptions{Year: year, Months: months})
			if rep != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				enc.Encode(rep)
			}
			if runErr != nil && (rep == nil || !rep.Cancelled) {
				return runErr
			}
			if buildIndex && runErr == nil {
				if _, err := svc.BuildIndex(ctx, false, false); err != nil {
					return err
				}
			}
			switch rep.Outcome() {
			case archiv.OutcomePartial:
				return &exitError{code: 2, msg: "fetch: partial run"}
			case archiv.OutcomeFailed:
				return &exitError{code: 1, msg: "fetch: run failed"}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year to fetch (default: config, then current year)")
	cmd.Flags().IntSliceVar(&months, "months", nil, "months to fetch, e.g. 1,2,3 (default: config, then all)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "portal base URL")
	cmd.Flags().StringVar(&revalidate, "revalidate", "", "head, never or always")
	cmd.Flags().BoolVar(&buildIndex, "build-index", false, "rebuild the index after the run")
	return cmd
}
