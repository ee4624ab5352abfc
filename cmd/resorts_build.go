package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/geocache"
	"github.com/skiwithcare/datagen-cli/internal/model"
	"github.com/skiwithcare/datagen-cli/internal/pipeline"
	"github.com/skiwithcare/datagen-cli/internal/refdata"
	"github.com/skiwithcare/datagen-cli/pkg/geocode"
)

var resortsBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Geocode the resort seed list and write resorts.json",
	Long: `Resolves coordinates for every seeded resort that is not already in the
resort cache, using the interactive geocoder (resort names are free-text
queries, not postal addresses), then writes the resolved set to
resorts.json. Already-cached resorts cost no external calls.

A configured shapefile (seeds.shapefile) seeds the cache directly and skips
the geocoder.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		seeds, err := loadSeeds()
		if err != nil {
			return eris.Wrap(err, "resorts: load seeds")
		}

		cache, cleanup, err := openCache(ctx, "resort", cfg.Cache.ResortPath)
		if err != nil {
			return eris.Wrap(err, "resorts: open cache")
		}
		defer cleanup()
		defer cache.Close()

		if err := cache.Load(ctx); err != nil {
			return eris.Wrap(err, "resorts: load cache")
		}

		if cfg.Seeds.Shapefile != "" {
			if err := seedCacheFromShapefile(ctx, cache); err != nil {
				return err
			}
		}

		_, pending := refdata.Merge(seeds, cache)
		if len(pending) > 0 {
			zap.L().Info("resolving resorts", zap.Int("pending", len(pending)))
			if err := resolvePendingResorts(ctx, cache, pending); err != nil {
				return err
			}
		}

		resolved, stillPending := refdata.Merge(seeds, cache)
		if len(resolved) == 0 {
			return eris.New("resorts: no resorts could be resolved")
		}

		path, err := pipeline.WriteResorts(cfg.Output.Dir, cfg.Output.ResortsFile, resolved)
		if err != nil {
			return eris.Wrap(err, "resorts: write output")
		}

		fmt.Printf("Resorts resolved: %d of %d (%d unresolved)\n",
			len(resolved), len(seeds), len(stillPending))
		fmt.Printf("Output: %s\n", path)
		return nil
	},
}

func init() {
	resortsCmd.AddCommand(resortsBuildCmd)
}

// resolvePendingResorts runs the interactive geocoder over seeds missing
// from the cache, checkpointing results into it as they arrive.
func resolvePendingResorts(ctx context.Context, cache *geocache.Cache, pending []refdata.Seed) error {
	queries := make([]geocode.AddressQuery, 0, len(pending))
	for _, s := range pending {
		queries = append(queries, geocode.AddressQuery{
			Key:      refdata.CacheKey(s),
			Freeform: refdata.SearchQuery(s),
		})
	}

	resolver := newNominatimResolver()
	checkpoint := func(results map[string]model.GeocodeRecord) error {
		for key, rec := range results {
			cache.Put(key, rec)
		}
		return cache.Flush(ctx)
	}
	return eris.Wrap(resolver.Resolve(ctx, queries, checkpoint), "resorts: resolve")
}

// seedCacheFromShapefile loads resort coordinates from a point shapefile
// straight into the cache.
func seedCacheFromShapefile(ctx context.Context, cache *geocache.Cache) error {
	_, coords, err := refdata.LoadShapefile(cfg.Seeds.Shapefile)
	if err != nil {
		return eris.Wrap(err, "resorts: load shapefile")
	}
	for key, pos := range coords {
		cache.Put(key, model.Resolved(pos[0], pos[1]))
	}
	return eris.Wrap(cache.Flush(ctx), "resorts: flush shapefile coordinates")
}
