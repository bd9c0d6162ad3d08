package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		statuses []string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored documents to an XLSX report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var filter []constants.DocumentStatus
			for _, s := range statuses {
				filter = append(filter, constants.DocumentStatus(s))
			}
			xlsx, err := a.Export.ExportXLSX(cmd.Context(), filter...)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", out, len(xlsx))
			return err
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "document statuses to include (default approved,needs_review)")
	cmd.Flags().StringVar(&out, "out", "waste-report.xlsx", "output XLSX path")
	return cmd
}
