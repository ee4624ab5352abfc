package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skiwithcare/datagen-cli/internal/geocache"
)

var cacheResorts bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the geocode caches",
}

func init() {
	cacheCmd.PersistentFlags().BoolVar(&cacheResorts, "resorts", false, "operate on the resort cache instead of the facility cache")
	rootCmd.AddCommand(cacheCmd)
}

// selectedCache opens the cache named by the --resorts flag, loaded.
func selectedCache(ctx context.Context) (*geocache.Cache, func(), error) {
	scope, path := "facility", cfg.Cache.FacilityPath
	if cacheResorts {
		scope, path = "resort", cfg.Cache.ResortPath
	}
	cache, cleanup, err := openCache(ctx, scope, path)
	if err != nil {
		return nil, nil, err
	}
	if err := cache.Load(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return cache, cleanup, nil
}
