package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/fetcher"
	"github.com/skiwithcare/datagen-cli/internal/geocache"
	"github.com/skiwithcare/datagen-cli/internal/model"
	"github.com/skiwithcare/datagen-cli/internal/refdata"
)

// openCache builds the geocode cache for one scope ("facility" or "resort").
// For the file and sqlite backends, path is the per-scope file; postgres
// separates scopes inside one shared table. The returned cleanup releases
// backend resources and must run after the cache is done.
func openCache(ctx context.Context, scope, path string) (*geocache.Cache, func(), error) {
	var (
		backend geocache.Backend
		cleanup = func() {}
	)
	switch cfg.Cache.Backend {
	case "", "file":
		backend = geocache.NewFile(path)
	case "sqlite":
		b, err := geocache.NewSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		backend = b
	case "postgres":
		b, pool, err := geocache.Connect(ctx, cfg.Cache.DatabaseURL, scope)
		if err != nil {
			return nil, nil, err
		}
		backend = b
		cleanup = pool.Close
	default:
		return nil, nil, eris.Errorf("unknown cache backend %q (want file, sqlite or postgres)", cfg.Cache.Backend)
	}

	var opts []geocache.Option
	if days := cfg.Geocode.RetryFailedAfterDays; days > 0 {
		opts = append(opts, geocache.WithRetryFailedAfter(time.Duration(days)*24*time.Hour))
	}
	return geocache.New(backend, opts...), cleanup, nil
}

// newFetcher builds the shared HTTP fetcher with the default per-host rate
// limits.
func newFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:    cfg.Nominatim.UserAgent,
		Timeout:      time.Duration(cfg.CMS.TimeoutSecs) * time.Second,
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
}

// loadSeeds returns the resort seed list, preferring a configured override
// file over the embedded list.
func loadSeeds() ([]refdata.Seed, error) {
	if cfg.Seeds.Path != "" {
		return refdata.LoadSeedsFile(cfg.Seeds.Path)
	}
	return refdata.LoadSeeds()
}

// loadReferences assembles the resolved resort set for a pipeline run. A
// configured shapefile supplies coordinates directly; otherwise seeds are
// joined against the resort geocode cache.
func loadReferences(ctx context.Context) ([]model.ReferencePoint, error) {
	if cfg.Seeds.Shapefile != "" {
		return referencesFromShapefile(cfg.Seeds.Shapefile)
	}

	seeds, err := loadSeeds()
	if err != nil {
		return nil, err
	}

	cache, cleanup, err := openCache(ctx, "resort", cfg.Cache.ResortPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	defer cache.Close()

	if err := cache.Load(ctx); err != nil {
		return nil, err
	}

	resolved, pending := refdata.Merge(seeds, cache)
	if len(pending) > 0 {
		zap.L().Warn("resorts without cached coordinates, run `datagen resorts build`",
			zap.Int("pending", len(pending)))
	}
	return resolved, nil
}

func referencesFromShapefile(path string) ([]model.ReferencePoint, error) {
	seeds, coords, err := refdata.LoadShapefile(path)
	if err != nil {
		return nil, err
	}
	refs := make([]model.ReferencePoint, 0, len(seeds))
	for _, s := range seeds {
		pos := coords[refdata.CacheKey(s)]
		refs = append(refs, model.ReferencePoint{
			ID:     refdata.Slug(s.Name, s.State),
			Name:   s.Name,
			State:  s.State,
			Region: s.Region,
			Lat:    pos[0],
			Lon:    pos[1],
		})
	}
	return refs, nil
}
