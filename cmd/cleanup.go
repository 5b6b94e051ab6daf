package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupRetentionDays int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete stale unclaimed places past the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		days := cleanupRetentionDays
		if days <= 0 {
			days = cfg.Cleanup.RetentionDays
		}
		cutoff := time.Now().UTC().AddDate(0, 0, -days)

		deleted, err := st.DeleteUnclaimedBefore(ctx, cutoff)
		if err != nil {
			return eris.Wrap(err, "cleanup")
		}

		zap.L().Info("cleanup complete",
			zap.Int64("deleted", deleted),
			zap.Int("retention_days", days),
			zap.Time("cutoff", cutoff),
		)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupRetentionDays, "retention-days", 0, "delete unclaimed places older than this (default from config)")
	rootCmd.AddCommand(cleanupCmd)
}
