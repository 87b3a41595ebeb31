package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/ratsarchiv/archiv"
)

func exportCMD(g *globalFlags) *cobra.Command {
	var f archiv.ExportFilter
	var types []string
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a filtered, reproducible batch of indexed documents",
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

			for _, t := range types {
				f.DocumentTypes = append(f.DocumentTypes, archiv.DocumentType(t))
			}
			if out == "-" {
				b, err := svc.Export(cmd.Context(), f)
				if err != nil {
					return err
				}
				data, err := archiv.EncodeBatch(b)
				if err != nil {
					return err
				}
				_, err = os.Stdout.Write(data)
				return err
			}
			_, err = svc.ExportFile(cmd.Context(), f, out)
			return err
		},
	}
	cmd.Flags().StringSliceVar(&f.SessionIDs, "session", nil, "session IDs")
	cmd.Flags().StringArrayVar(&f.Committees, "committee", nil, "committee name (repeatable)")
	cmd.Flags().StringVar(&f.DateFrom, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.DateTo, "to", "", "last date, YYYY-MM-DD")
	cmd.Flags().StringSliceVar(&types, "type", nil, "document types")
	cmd.Flags().BoolVar(&f.RequireLocalPath, "require-local-path", false, "only documents stored on disk")
	cmd.Flags().BoolVar(&f.IncludeText, "include-text", false, "run content extraction")
	cmd.Flags().IntVar(&f.MaxTextChars, "max-text-chars", 0, "inline at most this many chars of text")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: config export_path, - for stdout)")
	return cmd
}

func importCMD(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <batch.json>",
		Short: "Load an export batch into a fresh index",
		Args:  cobra.ExactArgs(1),
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

			stats, err := svc.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(stats)
		},
	}
}
