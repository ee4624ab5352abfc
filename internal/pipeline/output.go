package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// writeClinics writes the clinics array, 2-space indented, atomically.
func writeClinics(dir, file string, clinics []model.Clinic) (string, error) {
	path := filepath.Join(dir, file)
	return path, writeJSONAtomic(path, clinics)
}

// WriteResorts writes the resolved resort list for downstream consumers,
// coordinates rounded to 6 decimals like the clinic output.
func WriteResorts(dir, file string, resorts []model.ReferencePoint) (string, error) {
	rounded := make([]model.ReferencePoint, len(resorts))
	for i, r := range resorts {
		r.Lat = round(r.Lat, 6)
		r.Lon = round(r.Lon, 6)
		rounded[i] = r
	}
	path := filepath.Join(dir, file)
	return path, writeJSONAtomic(path, rounded)
}

// writeClinicsGeoJSON mirrors the clinics as a GeoJSON FeatureCollection,
// one Point feature per clinic, next to the JSON output.
func writeClinicsGeoJSON(dir, file string, clinics []model.Clinic) (string, error) {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(clinics))}
	for _, c := range clinics {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       c.CCN,
			Geometry: geom.NewPointFlat(geom.XY, []float64{c.Lon, c.Lat}),
			Properties: map[string]interface{}{
				"facility":               c.Facility,
				"provider":               c.Provider,
				"address":                c.Address,
				"city":                   c.City,
				"state":                  c.State,
				"zip":                    c.Zip,
				"nearestResortId":        c.NearestResortID,
				"nearestResort":          c.NearestResort,
				"nearestResortDistMiles": c.NearestResortDistMiles,
			},
		})
	}

	base := strings.TrimSuffix(file, filepath.Ext(file))
	path := filepath.Join(dir, base+".geojson")
	return path, writeJSONAtomic(path, &fc)
}

// writeJSONAtomic serializes v and replaces path in one rename so readers
// never observe a partial file.
func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "output: create dir for %s", path)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "output: marshal %s", path)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "output: create temp for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "output: write %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "output: close %s", path)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "output: rename into %s", path)
	}
	return nil
}
