package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meko-christian/mail-sorter/internal/config"
	"github.com/meko-christian/mail-sorter/internal/notify"
	"github.com/meko-christian/mail-sorter/internal/sorter"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Classify and sort unprocessed mail once",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		cfg = applyProcessFlags(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		summary, err := runOnce(ctx, cfg)
		if err != nil {
			return fmt.Errorf("processing failed: %w", err)
		}

		fmt.Printf("Processed %d emails, %d successfully categorized\n", summary.Processed, summary.Succeeded)
		return nil
	},
}

func init() {
	processCmd.Flags().Bool("dry-run", false, "Classify and mark mail without moving it")
	processCmd.Flags().Int("max", 0, "Maximum number of emails to process (overrides config)")
	processCmd.Flags().StringSlice("folder", nil, "Source folder to process (repeatable, overrides config)")
}

func applyProcessFlags(cmd *cobra.Command, cfg config.Config) config.Config {
	if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
		cfg.Processing.DryRun = true
	}
	if limit, _ := cmd.Flags().GetInt("max"); limit > 0 {
		cfg.Processing.MaxEmailsPerRun = limit
	}
	if folders, _ := cmd.Flags().GetStringSlice("folder"); len(folders) > 0 {
		cfg.Processing.Folders = folders
	}

	return cfg
}

// runOnce performs one sweep and reports unrouted messages when a report
// recipient is configured.
func runOnce(ctx context.Context, cfg config.Config) (sorter.Summary, error) {
	coordinator, err := newCoordinator(cfg)
	if err != nil {
		return sorter.Summary{}, err
	}

	summary, err := coordinator.Run(ctx)
	if err != nil {
		return summary, err
	}

	if cfg.Report.Enabled() {
		if err := notify.NewReporter(cfg.Report).Send(summary); err != nil {
			slog.Error("Failed to send report", "run_id", summary.RunID, "error", err)
		}
	}

	return summary, nil
}
