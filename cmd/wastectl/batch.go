package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/constants"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		dir        string
		out        string
		skipHidden bool
		reprocess  bool
	)
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Ingest a directory, process every new document and export an XLSX report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if out == "" {
				out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "waste-report.xlsx")
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			logger := opts.logger
			results, stats, err := a.Ingest.IngestDirectory(ctx, dir, skipHidden)
			if err != nil {
				return err
			}
			logger.Info("wastectl.batch.ingested", "dir", dir, "scanned", stats.Scanned, "matched", stats.Matched,
				"succeeded", stats.Succeeded, "deduplicated", stats.Deduplicated, "failed", stats.Failed)

			var ids []uuid.UUID
			for _, r := range results {
				if r.Err != "" {
					logger.Warn("wastectl.batch.ingest_failed", "path", r.SourcePath, "error", r.Err)
					continue
				}
				if r.Deduplicated && !reprocess {
					continue
				}
				ids = append(ids, r.DocumentID)
			}

			counts := map[constants.DocumentStatus]int{}
			for _, id := range ids {
				doc, err := a.Documents.Process(ctx, id)
				if doc != nil {
					counts[doc.Status]++
				}
				if err != nil {
					logger.Error("wastectl.batch.process_failed", "doc_id", id, "error", err)
				}
			}

			xlsx, err := a.Export.ExportXLSX(ctx)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, xlsx, 0o644); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Batch processing complete!\n")
			fmt.Fprintf(w, "- Files ingested: %d (deduplicated %d, failed %d)\n", stats.Succeeded, stats.Deduplicated, stats.Failed)
			fmt.Fprintf(w, "- Documents processed: %d\n", len(ids))
			fmt.Fprintf(w, "- Approved: %d, needs review: %d, errors: %d\n",
				counts[constants.DocumentApproved], counts[constants.DocumentNeedsReview], counts[constants.DocumentError])
			fmt.Fprintf(w, "- Output: %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to ingest (required)")
	cmd.Flags().StringVar(&out, "out", "", "output XLSX path (defaults next to --dir)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	cmd.Flags().BoolVar(&reprocess, "reprocess", false, "also re-run documents that were already ingested")
	_ = cmd.MarkFlagRequired("dir")
	return cmd
}
