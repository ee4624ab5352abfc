package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/skiwithcare/datagen-cli/internal/ingest"
	"github.com/skiwithcare/datagen-cli/internal/model"
	"github.com/skiwithcare/datagen-cli/internal/pipeline"
	"github.com/skiwithcare/datagen-cli/pkg/geocode"
)

var (
	generateStrategy  string
	generateThreshold float64
	generateSource    string
	generateGeoJSON   bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Build clinics.json from the resort set and the CMS facility catalog",
	Long: `Runs the full pipeline: loads the resolved resort set, downloads (or
reads) the dialysis facility catalog, geocodes facilities not yet in the
cache, joins each facility to its nearest resort, and writes the filtered,
sorted clinic list.

Examples:
  # Full run against the live CMS catalog with the batch geocoder
  datagen generate

  # Use a local CSV export and the interactive geocoder
  datagen generate --source DFC_FACILITY.csv --strategy interactive

  # Widen the join radius and also emit GeoJSON
  datagen generate --threshold 250 --geojson`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		refs, err := loadReferences(ctx)
		if err != nil {
			return eris.Wrap(err, "generate: load resorts")
		}

		cache, cleanup, err := openCache(ctx, "facility", cfg.Cache.FacilityPath)
		if err != nil {
			return eris.Wrap(err, "generate: open facility cache")
		}
		defer cleanup()
		defer cache.Close()

		resolver, err := buildResolver()
		if err != nil {
			return err
		}

		threshold := generateThreshold
		if threshold <= 0 {
			threshold = cfg.Join.ThresholdMiles
		}

		sum, err := pipeline.Run(ctx, pipeline.Options{
			References:     refs,
			Source:         facilitySource(),
			Cache:          cache,
			Resolver:       resolver,
			ThresholdMiles: threshold,
			OutputDir:      cfg.Output.Dir,
			ClinicsFile:    cfg.Output.ClinicsFile,
			GeoJSON:        generateGeoJSON || cfg.Output.GeoJSON,
		})
		if err != nil {
			return err
		}

		printSummary(sum)
		return nil
	},
}

func init() {
	generateCmd.Flags().StringVar(&generateStrategy, "strategy", "", "geocoding strategy: batch or interactive (default from config)")
	generateCmd.Flags().Float64Var(&generateThreshold, "threshold", 0, "max clinic-to-resort distance in miles (default from config)")
	generateCmd.Flags().StringVar(&generateSource, "source", "", "local facility file (.csv or .xlsx) instead of the CMS download")
	generateCmd.Flags().BoolVar(&generateGeoJSON, "geojson", false, "also write a GeoJSON FeatureCollection next to clinics.json")
	rootCmd.AddCommand(generateCmd)
}

// facilitySource picks between a local file and the CMS catalog download.
func facilitySource() pipeline.Source {
	if generateSource != "" {
		return pipeline.SourceFunc(func(ctx context.Context) ([]model.FacilityRecord, error) {
			return ingest.LoadFile(ctx, generateSource)
		})
	}
	return ingest.NewSource(newFetcher(), cfg.CMS.MetadataURL, cfg.CMS.FallbackCSVURL)
}

// buildResolver constructs the geocoding strategy selected by flag or config.
func buildResolver() (geocode.Resolver, error) {
	strategy := generateStrategy
	if strategy == "" {
		strategy = cfg.Geocode.Strategy
	}

	switch strategy {
	case "batch":
		return geocode.NewCensusBatch(
			geocode.WithCensusBatchURL(cfg.Census.BatchURL),
			geocode.WithCensusChunkSize(cfg.Census.ChunkSize),
			geocode.WithCensusHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.Census.TimeoutSecs) * time.Second,
			}),
			geocode.WithCensusRateLimit(rate.NewLimiter(rate.Limit(cfg.Census.RateLimit), 1)),
		), nil
	case "interactive":
		return newNominatimResolver(), nil
	default:
		return nil, eris.Errorf("unknown geocoding strategy %q (want batch or interactive)", strategy)
	}
}

// newNominatimResolver builds the interactive resolver from config.
func newNominatimResolver() *geocode.NominatimResolver {
	return geocode.NewNominatim(
		geocode.WithNominatimURL(cfg.Nominatim.BaseURL+"/search"),
		geocode.WithNominatimUserAgent(cfg.Nominatim.UserAgent),
		geocode.WithNominatimInterval(time.Duration(cfg.Nominatim.MinIntervalSecs*float64(time.Second))),
		geocode.WithNominatimHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Nominatim.TimeoutSecs) * time.Second,
		}),
		geocode.WithNominatimCheckpointEvery(cfg.Geocode.CheckpointEvery),
	)
}

func printSummary(sum *pipeline.Summary) {
	fmt.Printf("Run %s finished in %s\n", sum.RunID, sum.Duration.Round(time.Millisecond))
	fmt.Printf("  facilities ingested: %d\n", sum.Facilities)
	fmt.Printf("  geocodes from cache: %d\n", sum.Cached)
	fmt.Printf("  newly resolved:      %d\n", sum.Resolved)
	fmt.Printf("  newly failed:        %d\n", sum.Failed)
	fmt.Printf("  dropped (no coords): %d\n", sum.Dropped)
	fmt.Printf("  clinics emitted:     %d\n", sum.Emitted)
	fmt.Printf("  output:              %s\n", sum.OutputPath)
}
