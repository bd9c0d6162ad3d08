package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/prescan"
	"github.com/joseph-ayodele/waste-pipeline/internal/tabular"
)

type prescanOutput struct {
	Filename string   `json:"filename"`
	Rows     int      `json:"rows"`
	Header   []string `json:"header"`
	prescan.Result
}

func newPrescanCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prescan <file>",
		Short: "Print the spreadsheet baseline totals without calling any capability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			name := filepath.Base(args[0])
			grid, err := tabular.Decode(data, constants.KindFromFilename(name, ""))
			if err != nil {
				return err
			}
			res := prescan.Scan(grid)
			out := prescanOutput{Filename: name, Rows: len(grid), Result: res}
			if res.HeaderIndex < len(grid) {
				out.Header = grid[res.HeaderIndex]
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
