package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/internal/ocr"
)

func newOCRCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "ocr <file>",
		Short: "Recognise the text of a scanned PDF or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := ocr.NewExtractor(ocr.ConfigFrom(opts.cfg.OCR), opts.logger).
				ExtractText(cmd.Context(), data, filepath.Base(args[0]))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print method, pages and confidence along with the text")
	return cmd
}
