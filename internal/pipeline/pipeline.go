// Package pipeline drives a full dataset build: load reference resorts,
// ingest the raw facility catalog, resolve missing geocodes through the
// cache, join facilities against resorts, filter, classify, sort, and emit
// the normalized output files.
package pipeline

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/classify"
	"github.com/skiwithcare/datagen-cli/internal/geocache"
	"github.com/skiwithcare/datagen-cli/internal/model"
	"github.com/skiwithcare/datagen-cli/internal/proximity"
	"github.com/skiwithcare/datagen-cli/pkg/geocode"
)

// Source yields the raw facility rows. The CMS downloader and the local
// file loader both satisfy it.
type Source interface {
	Facilities(ctx context.Context) ([]model.FacilityRecord, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]model.FacilityRecord, error)

func (f SourceFunc) Facilities(ctx context.Context) ([]model.FacilityRecord, error) {
	return f(ctx)
}

// Options wires one run. References, Source, Cache and Resolver are
// injected so tests can run the whole pipeline in-memory.
type Options struct {
	References     []model.ReferencePoint
	Source         Source
	Cache          *geocache.Cache
	Resolver       geocode.Resolver
	ThresholdMiles float64
	OutputDir      string
	ClinicsFile    string
	GeoJSON        bool
}

// Summary is the run report printed after a build.
type Summary struct {
	RunID      string
	Facilities int // raw rows ingested
	Cached     int // geocodes served from cache
	Resolved   int // new successful resolutions this run
	Failed     int // new failed resolutions this run
	Dropped    int // facilities without usable coordinates
	Emitted    int // clinics written to output
	Duration   time.Duration
	OutputPath string
}

// Run executes the pipeline stages in order. Only an empty reference set,
// an unusable raw source, or a cache persistence failure abort the run;
// individual geocode failures degrade to dropped records.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.NewString()}
	log := zap.L().With(zap.String("run_id", sum.RunID))

	// Reference points must exist before anything else is attempted.
	index, err := proximity.NewIndex(opts.References)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load references")
	}
	log.Info("references loaded", zap.Int("resorts", index.Size()))

	if err := opts.Cache.Load(ctx); err != nil {
		return nil, eris.Wrap(err, "pipeline: load cache")
	}

	facilities, err := opts.Source.Facilities(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: ingest raw source")
	}
	sum.Facilities = len(facilities)
	log.Info("facilities ingested", zap.Int("rows", sum.Facilities))

	if err := resolveMissing(ctx, opts, facilities, sum, log); err != nil {
		return nil, err
	}

	clinics := joinAndFilter(opts, index, facilities, sum)
	sortClinics(clinics)
	sum.Emitted = len(clinics)

	path, err := writeClinics(opts.OutputDir, opts.ClinicsFile, clinics)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist output")
	}
	sum.OutputPath = path

	if opts.GeoJSON {
		geoPath, err := writeClinicsGeoJSON(opts.OutputDir, opts.ClinicsFile, clinics)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: persist geojson output")
		}
		log.Info("geojson written", zap.String("path", geoPath))
	}

	sum.Duration = time.Since(start)
	log.Info("run complete",
		zap.Int("emitted", sum.Emitted),
		zap.Int("cached", sum.Cached),
		zap.Int("resolved", sum.Resolved),
		zap.Int("failed", sum.Failed),
		zap.Int("dropped", sum.Dropped),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

// resolveMissing finds facilities absent from the cache and resolves them.
// The checkpoint callback is the single cache write path: results land in
// the cache and are flushed durably before the resolver proceeds.
func resolveMissing(ctx context.Context, opts Options, facilities []model.FacilityRecord, sum *Summary, log *zap.Logger) error {
	var queries []geocode.AddressQuery
	for _, f := range facilities {
		if _, ok := opts.Cache.Get(f.CCN); ok {
			sum.Cached++
			continue
		}
		queries = append(queries, geocode.AddressQuery{
			Key:    f.CCN,
			Street: f.Street,
			City:   f.City,
			State:  f.State,
			Zip:    f.Zip,
		})
	}
	log.Info("geocode lookup plan",
		zap.Int("cached", sum.Cached), zap.Int("missing", len(queries)))

	if len(queries) == 0 {
		return nil
	}

	checkpoint := func(results map[string]model.GeocodeRecord) error {
		for key, rec := range results {
			if rec.Status() == model.StatusResolved {
				sum.Resolved++
			} else {
				sum.Failed++
			}
			opts.Cache.Put(key, rec)
		}
		return opts.Cache.Flush(ctx)
	}
	if err := opts.Resolver.Resolve(ctx, queries, checkpoint); err != nil {
		return eris.Wrap(err, "pipeline: resolve geocodes")
	}
	return nil
}

// joinAndFilter attaches coordinates from the cache, drops unresolved
// facilities, joins each survivor to its nearest resort, and keeps those
// within the threshold.
func joinAndFilter(opts Options, index *proximity.Index, facilities []model.FacilityRecord, sum *Summary) []model.Clinic {
	clinics := make([]model.Clinic, 0, len(facilities))
	for _, f := range facilities {
		rec, ok := opts.Cache.Get(f.CCN)
		if !ok {
			sum.Dropped++
			continue
		}
		lat, lon, ok := rec.Coordinates()
		if !ok {
			sum.Dropped++
			continue
		}

		nearest, dist := index.Nearest(lat, lon)
		clinics = append(clinics, model.Clinic{
			CCN:                    f.CCN,
			Facility:               f.Name,
			Provider:               classify.Provider(f.Chain),
			Address:                f.Street,
			City:                   f.City,
			State:                  f.State,
			Zip:                    f.Zip,
			Lat:                    round(lat, 6),
			Lon:                    round(lon, 6),
			NearestResortID:        nearest.ID,
			NearestResort:          nearest.Name,
			NearestResortDistMiles: dist,
		})
	}

	// Filter on the exact distance; rounding happens only on the emitted
	// field, so a facility just past the threshold never sneaks in at
	// two-decimal precision.
	clinics = proximity.FilterWithin(clinics, opts.ThresholdMiles)
	for i := range clinics {
		clinics[i].NearestResortDistMiles = round(clinics[i].NearestResortDistMiles, 2)
	}
	return clinics
}

// sortClinics orders output by (state, city, facility name) so reruns diff
// cleanly.
func sortClinics(clinics []model.Clinic) {
	sort.Slice(clinics, func(i, j int) bool {
		a, b := clinics[i], clinics[j]
		if a.State != b.State {
			return a.State < b.State
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.Facility < b.Facility
	})
}

func round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
