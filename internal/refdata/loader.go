package refdata

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/geocache"
	"github.com/skiwithcare/datagen-cli/internal/model"
)

// SearchQuery renders the free-text geocoding query for a seed, matching
// the form the resort cache was originally built with.
func SearchQuery(s Seed) string {
	return fmt.Sprintf("%s, %s, USA", s.Name, s.State)
}

// CacheKey returns the resort cache key for a seed.
func CacheKey(s Seed) string {
	return geocache.NormalizeKey(s.Name, s.State)
}

// Merge joins seeds against the resort geocode cache. Seeds with cached
// coordinates become reference points sorted by name; the rest come back as
// pending for `resorts build` to resolve. Cached failures count as pending
// only if the cache's retry policy has released them, which Get handles.
func Merge(seeds []Seed, cache *geocache.Cache) (resolved []model.ReferencePoint, pending []Seed) {
	for _, s := range seeds {
		rec, ok := cache.Get(CacheKey(s))
		if !ok {
			pending = append(pending, s)
			continue
		}
		lat, lon, ok := rec.Coordinates()
		if !ok {
			zap.L().Warn("resort geocode failed previously, skipping",
				zap.String("resort", s.Name), zap.String("state", s.State))
			continue
		}
		resolved = append(resolved, model.ReferencePoint{
			ID:     Slug(s.Name, s.State),
			Name:   s.Name,
			State:  s.State,
			Region: s.Region,
			Lat:    lat,
			Lon:    lon,
		})
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].Name < resolved[j].Name })
	return resolved, pending
}
