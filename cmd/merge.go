package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/linkage-cli/internal/config"
	"github.com/sells-group/linkage-cli/internal/input"
	"github.com/sells-group/linkage-cli/internal/linkage"
	"github.com/sells-group/linkage-cli/internal/model"
	"github.com/sells-group/linkage-cli/internal/report"
	"github.com/sells-group/linkage-cli/internal/resilience"
	"github.com/sells-group/linkage-cli/pkg/geocode"
)

var (
	mergeInput     string
	mergeOutput    string
	mergeLowOutput string
	mergeFormat    string
	mergeSheet     string
	mergeLimit     int
	mergeNoGeocode bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Cluster company records into location groups",
	Long: `Reads a company directory, standardizes names and addresses, geocodes
each address, and assigns every record a Location Index grouping records
that refer to the same company at the same place. Records whose best
in-group match is weak are written to a separate low-similarity table
for manual review.

Examples:
  # Local CSV, default thresholds
  linkage-cli merge --input import_yeti.csv --output processed.csv --low-similarity low_similarity.csv

  # First 10 rows only, skip geocoding (text-only clustering)
  linkage-cli merge --input import_yeti.csv --limit 10 --no-geocode \
    --output processed.csv --low-similarity low_similarity.csv

  # XLSX export fetched over FTP is also accepted for CSV sources
  linkage-cli merge --input ftp://data.example.com/dumps/companies.csv \
    --output processed.csv --low-similarity low_similarity.csv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		table, err := loadTable(ctx)
		if err != nil {
			return err
		}
		zap.L().Info("merge: parsed input",
			zap.String("source", mergeInput),
			zap.Int("records", len(table.Records)),
		)

		geo, cleanup, err := buildGeocoder()
		if err != nil {
			return err
		}
		defer cleanup()

		pipe := linkage.New(linkage.Options{
			DistanceThresholdMiles: cfg.Linkage.DistanceThresholdMiles,
			AcceptanceThreshold:    cfg.Linkage.SimilarityAcceptanceThreshold,
			ReportThreshold:        cfg.Linkage.LowSimilarityReportThreshold,
			NameWeight:             cfg.Linkage.NameWeight,
			AddressWeight:          cfg.Linkage.AddressWeight,
			GeocodeConcurrency:     cfg.Geocode.Concurrency,
		}, geo)

		result, err := pipe.Run(ctx, table)
		if err != nil {
			return eris.Wrap(err, "merge: run pipeline")
		}

		if err := report.WriteFiles(mergeOutput, mergeLowOutput, table, result); err != nil {
			return eris.Wrap(err, "merge: write outputs")
		}

		fmt.Printf("Processed %d records into %d location groups\n", len(result.Records), len(result.Groups))
		fmt.Printf("  %s: %d records\n", mergeOutput, len(result.Processed))
		fmt.Printf("  %s: %d records flagged for review\n", mergeLowOutput, len(result.LowSimilarity))
		return nil
	},
}

func loadTable(ctx context.Context) (*model.Table, error) {
	opts := input.Options{
		NameColumn:    cfg.Input.NameColumn,
		AddressColumn: cfg.Input.AddressColumn,
		Limit:         mergeLimit,
	}

	if mergeFormat == "xlsx" {
		return input.ReadXLSX(mergeInput, input.XLSXOptions{Options: opts, SheetName: mergeSheet})
	}

	rc, err := input.Open(ctx, mergeInput, input.SourceOptions{
		Timeout:   time.Duration(cfg.Geocode.TimeoutSecs) * time.Second,
		UserAgent: cfg.Geocode.UserAgent,
	})
	if err != nil {
		return nil, eris.Wrap(err, "merge: open input")
	}
	defer rc.Close() //nolint:errcheck

	table, err := input.ReadCSV(rc, opts)
	if err != nil {
		return nil, eris.Wrap(err, "merge: parse input")
	}
	return table, nil
}

// buildGeocoder wires the provider cascade from config, or the disabled
// stub when --no-geocode is set (every address unresolved, so grouping
// runs on the textual fallback path alone).
func buildGeocoder() (linkage.Geocoder, func(), error) {
	if mergeNoGeocode {
		return disabledGeocoder{}, func() {}, nil
	}

	providers, err := buildProviders(cfg.Geocode)
	if err != nil {
		return nil, nil, err
	}

	opts := []geocode.CascadeOption{
		geocode.WithBatchConcurrency(cfg.Geocode.Concurrency),
		geocode.WithRetry(resilience.RetryConfig{MaxAttempts: cfg.Geocode.MaxRetries + 1}),
	}

	cleanup := func() {}
	if cfg.Geocode.CacheEnabled {
		cache, err := geocode.OpenCache(cfg.Geocode.CachePath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "merge: open geocode cache")
		}
		opts = append(opts, geocode.WithCache(cache))
		cleanup = func() { _ = cache.Close() }
	}

	return clientGeocoder{client: geocode.NewCascadeClient(providers, opts...)}, cleanup, nil
}

func buildProviders(gc config.GeocodeConfig) ([]geocode.Provider, error) {
	pc := geocode.ProviderConfig{
		UserAgent:    gc.UserAgent,
		Timeout:      time.Duration(gc.TimeoutSecs) * time.Second,
		RateLimitRPS: gc.RateLimitRPS,
	}

	providers := make([]geocode.Provider, 0, len(gc.Providers))
	for _, name := range gc.Providers {
		switch name {
		case "nominatim":
			cfg := pc
			cfg.BaseURL = gc.NominatimBaseURL
			providers = append(providers, geocode.NewNominatim(cfg))
		case "arcgis":
			cfg := pc
			cfg.BaseURL = gc.ArcGISBaseURL
			providers = append(providers, geocode.NewArcGIS(cfg))
		default:
			return nil, eris.Errorf("merge: unknown geocode provider %q", name)
		}
	}
	if len(providers) == 0 {
		return nil, eris.New("merge: no geocode providers configured")
	}
	return providers, nil
}

// clientGeocoder adapts a geocode.Client to the pipeline's Geocoder contract.
type clientGeocoder struct {
	client geocode.Client
}

func (g clientGeocoder) Geocode(ctx context.Context, address string) (float64, float64, bool, error) {
	r, err := g.client.Geocode(ctx, address)
	if err != nil {
		return 0, 0, false, err
	}
	return r.Latitude, r.Longitude, r.Matched, nil
}

// disabledGeocoder resolves nothing.
type disabledGeocoder struct{}

func (disabledGeocoder) Geocode(context.Context, string) (float64, float64, bool, error) {
	return 0, 0, false, nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeInput, "input", "", "input dataset: path, http(s):// or ftp:// URL (required)")
	mergeCmd.Flags().StringVar(&mergeOutput, "output", "processed.csv", "processed output CSV path")
	mergeCmd.Flags().StringVar(&mergeLowOutput, "low-similarity", "low_similarity.csv", "low-similarity output CSV path")
	mergeCmd.Flags().StringVar(&mergeFormat, "format", "csv", "input format: csv or xlsx")
	mergeCmd.Flags().StringVar(&mergeSheet, "sheet", "", "sheet name for xlsx input (default: first sheet)")
	mergeCmd.Flags().IntVar(&mergeLimit, "limit", 0, "max records to process (0 = all)")
	mergeCmd.Flags().BoolVar(&mergeNoGeocode, "no-geocode", false, "skip geocoding; cluster on text similarity alone")
	_ = mergeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(mergeCmd)
}
