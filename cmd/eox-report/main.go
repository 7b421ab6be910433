package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/eox-report/pkg/config"
	"github.com/Sternrassler/eox-report/pkg/logging"
	"github.com/Sternrassler/eox-report/pkg/report"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eox-report",
		Short: "Append EoX milestone dates to a CSV of serial numbers",
		Long: `eox-report reads the CSV named by EOX_CSV_FILE, looks up every serial number
in the EoX API and writes <input>_output.csv with the five milestone columns appended.

Settings come from EOX_* environment variables, a .env file and an optional
config.yaml in the working directory.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
}

func run(cmd *cobra.Command, _ []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return &report.StageError{Stage: report.StageConfig, Err: err}
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return &report.StageError{Stage: report.StageConfig, Err: err}
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		JSON:   cfg.LogJSON,
		Output: cmd.ErrOrStderr(),
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = report.Run(ctx, cfg, cmd.OutOrStdout())
	return err
}
