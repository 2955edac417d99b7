package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"remarknews/orchestrator"

	"github.com/spf13/cobra"
)

func (a *app) runCmd() *cobra.Command {
	var (
		format string
		upload string
		hours  int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, render and deliver one digest per source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if format != "" {
				cfg.Format = format
			}
			if upload != "" {
				cfg.Delivery.Target = upload
			}
			if hours > 0 {
				cfg.FreshnessHours = hours
			}
			if cfg.ApplyFormatOverride() {
				slog.Info("email delivery sends epub; switching format", "format", cfg.Format)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			runner, err := orchestrator.Build(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := runner.RunOnce(ctx)
			if report != nil {
				orchestrator.PrintReport(cmd.OutOrStdout(), report)
			}
			if err != nil {
				return err
			}
			if n := len(report.DeliveryFailures); n > 0 {
				return fmt.Errorf("%d of %d deliveries failed", n, len(report.Files))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format: pdf or epub")
	cmd.Flags().StringVar(&upload, "upload", "", "delivery target: none, rmapi, email, s3 or drive")
	cmd.Flags().IntVar(&hours, "hours", 0, "freshness window in hours")
	return cmd
}
