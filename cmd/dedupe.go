package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/dedupe"
)

var (
	dedupeThreshold float64
	dedupeOutPath   string
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Scan the store for likely duplicate places",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListPlaces(ctx)
		if err != nil {
			return eris.Wrap(err, "list places")
		}

		threshold := dedupeThreshold
		if threshold <= 0 {
			threshold = cfg.Dedupe.Threshold
		}

		clusters := dedupe.NewEngine(threshold).FindDuplicateClusters(records)

		out := os.Stdout
		if dedupeOutPath != "" {
			f, err := os.Create(dedupeOutPath)
			if err != nil {
				return eris.Wrapf(err, "create %s", dedupeOutPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(clusters); err != nil {
			return eris.Wrap(err, "encode report")
		}

		zap.L().Info("dedupe scan complete",
			zap.Int("records", len(records)),
			zap.Int("clusters", len(clusters)),
			zap.Float64("threshold", threshold),
		)
		return nil
	},
}

func init() {
	dedupeCmd.Flags().Float64Var(&dedupeThreshold, "threshold", 0, "similarity threshold (default from config)")
	dedupeCmd.Flags().StringVar(&dedupeOutPath, "out", "", "write the JSON report to a file instead of stdout")
	rootCmd.AddCommand(dedupeCmd)
}
