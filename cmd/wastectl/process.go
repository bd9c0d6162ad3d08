package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/constants"
	"github.com/joseph-ayodele/waste-pipeline/internal/app"
	"github.com/joseph-ayodele/waste-pipeline/internal/entity"
	"github.com/joseph-ayodele/waste-pipeline/internal/export"
	"github.com/joseph-ayodele/waste-pipeline/internal/pipeline"
)

type processOutput struct {
	Filename   string                  `json:"filename"`
	Status     constants.Disposition   `json:"status"`
	Confidence float64                 `json:"confidence"`
	Route      constants.Capability    `json:"route"`
	ModelPath  string                  `json:"modelPath"`
	Error      string                  `json:"error,omitempty"`
	Record     *entity.ExtractedRecord `json:"record"`
}

func newProcessCmd(opts *rootOptions) *cobra.Command {
	var (
		xlsxOut      string
		settingsFile string
	)
	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Run the pipeline over one local file and print the record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			settings := entity.DefaultSettings()
			if settingsFile == "" {
				settingsFile = opts.cfg.SettingsFile
			}
			if settingsFile != "" {
				if settings, err = app.LoadSettingsFile(settingsFile); err != nil {
					return err
				}
			}
			pcfg := pipeline.LoadConfigFromEnv()
			if err := pcfg.Validate(); err != nil {
				return err
			}

			name := filepath.Base(path)
			proc := app.NewProcessor(opts.cfg, pcfg, opts.logger)
			res := proc.Process(cmd.Context(), pipeline.Input{
				Bytes:    data,
				Filename: name,
				MIME:     constants.MIMEForExt(filepath.Ext(name)),
			}, settings)

			out := processOutput{
				Filename:   name,
				Status:     res.Status,
				Confidence: res.Confidence,
				Route:      res.Route,
				ModelPath:  res.ModelPath,
				Record:     res.Record,
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}

			if xlsxOut != "" && res.Record != nil {
				doc := &entity.Document{Filename: name, Status: constants.DocumentStatus(res.Status), Record: res.Record}
				xlsx, _, err := export.Documents([]*entity.Document{doc}, name)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxOut, xlsx, 0o644); err != nil {
					return err
				}
				opts.logger.Info("wastectl.process.xlsx", "output", xlsxOut)
			}
			return res.Err
		},
	}
	cmd.Flags().StringVar(&xlsxOut, "xlsx", "", "also write the record as an XLSX report")
	cmd.Flags().StringVar(&settingsFile, "settings", "", "YAML settings file (defaults to SETTINGS_FILE)")
	return cmd
}
