// Command wastectl runs the waste document pipeline from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/waste-pipeline/internal/app"
	"github.com/joseph-ayodele/waste-pipeline/internal/common"
)

type rootOptions struct {
	envFile  string
	logLevel string
	cfg      *common.Config
	logger   *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "wastectl",
		Short:         "Extract, verify and export waste management documents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			common.LoadDotEnv(opts.envFile)
			opts.cfg = common.LoadConfig()
			if opts.logLevel != "" {
				opts.cfg.Log.Level = opts.logLevel
			}
			opts.logger = app.NewLogger(opts.cfg.Log, cmd.ErrOrStderr())
			slog.SetDefault(opts.logger)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(
		newProcessCmd(opts),
		newPrescanCmd(opts),
		newOCRCmd(opts),
		newBatchCmd(opts),
		newExportCmd(opts),
		newDBHealthCmd(opts),
	)
	return root
}

func openApp(cmd *cobra.Command, opts *rootOptions) (*app.App, error) {
	return app.Open(cmd.Context(), opts.cfg, opts.logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
