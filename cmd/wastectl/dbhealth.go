package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

func newDBHealthCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "dbhealth",
		Short: "Check the database connection and print document counts per status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.DB.HealthCheck(ctx, timeout); err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "DB health: OK (%s)\n", a.DB.Dialect())

			docs, err := a.Docs.ListByStatus(ctx)
			if err != nil {
				return err
			}
			counts := map[constants.DocumentStatus]int{}
			for _, d := range docs {
				counts[d.Status]++
			}
			fmt.Fprintf(w, "documents: %d\n", len(docs))
			for _, st := range []constants.DocumentStatus{
				constants.DocumentUploaded, constants.DocumentQueued, constants.DocumentProcessing,
				constants.DocumentApproved, constants.DocumentNeedsReview, constants.DocumentError,
			} {
				fmt.Fprintf(w, "- %s: %d\n", st, counts[st])
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "health check timeout")
	return cmd
}
