package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/places-cli/internal/geo"
	"github.com/sells-group/places-cli/internal/importer"
)

var (
	importCity     string
	importLat      float64
	importLng      float64
	importRadius   float64
	importCategory string
	importKeyword  string
	importMax      int
	importUpdate   bool
	importDryRun   bool
	importJSONOut  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import places from the provider into the local store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		job := importer.JobSpec{
			Latitude:       importLat,
			Longitude:      importLng,
			RadiusMeters:   radiusDefault(importRadius),
			Category:       importCategory,
			Keyword:        importKeyword,
			MaxResults:     maxDefault(importMax),
			UpdateExisting: importUpdate,
			DryRun:         importDryRun,
		}
		if importCity != "" {
			c := geo.Resolve(importCity)
			job.Location = c.Name
			if importLat == 0 && importLng == 0 {
				job.Latitude = c.Latitude
				job.Longitude = c.Longitude
			}
		}

		report, err := orch.Run(ctx, job)
		if err != nil {
			return eris.Wrap(err, "import")
		}
		return emitReport(report)
	},
}

var importBulkCmd = &cobra.Command{
	Use:   "bulk [cities...]",
	Short: "Run one import job per city",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		orch, st, err := initOrchestrator(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		base := importer.JobSpec{
			RadiusMeters:   radiusDefault(importRadius),
			Category:       importCategory,
			Keyword:        importKeyword,
			MaxResults:     maxDefault(importMax),
			UpdateExisting: importUpdate,
			DryRun:         importDryRun,
		}
		reports, err := orch.BulkImport(ctx, base, args)
		if err != nil {
			return eris.Wrap(err, "bulk import")
		}

		for _, r := range reports {
			if err := emitReport(r); err != nil {
				return err
			}
		}
		return nil
	},
}

func emitReport(r *importer.Report) error {
	if importJSONOut {
		return json.NewEncoder(os.Stdout).Encode(r)
	}
	zap.L().Info("import report",
		zap.String("query", r.Query),
		zap.Int("found", r.Found),
		zap.Int("new", r.New),
		zap.Int("updated", r.Updated),
		zap.Int("skipped", r.Skipped),
		zap.Int("errors", r.Errors),
		zap.Bool("degraded", r.Degraded),
		zap.Duration("duration", r.Duration),
	)
	return nil
}

func radiusDefault(r float64) float64 {
	if r <= 0 {
		return cfg.Import.RadiusMeters
	}
	return r
}

func maxDefault(n int) int {
	if n <= 0 {
		return cfg.Import.MaxResults
	}
	return n
}

func init() {
	for _, c := range []*cobra.Command{importCmd, importBulkCmd} {
		c.Flags().Float64Var(&importRadius, "radius", 0, "search radius in meters (default from config)")
		c.Flags().StringVar(&importCategory, "category", "", "place category, e.g. restaurant")
		c.Flags().StringVar(&importKeyword, "keyword", "", "free-text search keyword")
		c.Flags().IntVar(&importMax, "max", 0, "maximum results per search (default from config)")
		c.Flags().BoolVar(&importUpdate, "update", false, "refresh places that already exist")
		c.Flags().BoolVar(&importDryRun, "dry-run", false, "report without writing to the store")
		c.Flags().BoolVar(&importJSONOut, "json", false, "emit the report as JSON on stdout")
	}
	importCmd.Flags().StringVar(&importCity, "city", "", "city to search around")
	importCmd.Flags().Float64Var(&importLat, "lat", 0, "latitude of the search center")
	importCmd.Flags().Float64Var(&importLng, "lng", 0, "longitude of the search center")

	importCmd.AddCommand(importBulkCmd)
	rootCmd.AddCommand(importCmd)
}
