package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-sorter/internal/notify"
	"github.com/meko-christian/mail-sorter/internal/sorter"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sort mail periodically until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cfg = applyProcessFlags(cmd, cfg)
		interval, _ := cmd.Flags().GetDuration("interval")

		coordinator, err := newCoordinator(cfg)
		if err != nil {
			return err
		}

		loop := &sorter.Loop{
			Sweeper:  coordinator,
			Interval: interval,
			Log:      slog.Default(),
		}

		if cfg.Report.Enabled() {
			reporter := notify.NewReporter(cfg.Report)
			loop.OnSummary = func(summary sorter.Summary) {
				if err := reporter.Send(summary); err != nil {
					slog.Error("Failed to send report", "run_id", summary.RunID, "error", err)
				}
			}
		}

		slog.Info("Starting serve mode", "interval", interval, "folders", cfg.Processing.Folders)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return loop.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().Duration("interval", 5*time.Minute, "Time between sweeps")
	serveCmd.Flags().Bool("dry-run", false, "Classify and mark mail without moving it")
	serveCmd.Flags().Int("max", 0, "Maximum number of emails per sweep (overrides config)")
	serveCmd.Flags().StringSlice("folder", nil, "Source folder to process (repeatable, overrides config)")
}
