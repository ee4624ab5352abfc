// Package proximity computes great-circle distances and nearest-resort joins.
package proximity

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// EarthRadiusMiles is the single Earth radius used across the whole system
// so distances stay comparable between runs and components.
const EarthRadiusMiles = 3958.8

// Haversine returns the great-circle distance in miles between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := lat1 * math.Pi / 180
	p2 := lat2 * math.Pi / 180
	dp := (lat2 - lat1) * math.Pi / 180
	dl := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dp/2)*math.Sin(dp/2) +
		math.Cos(p1)*math.Cos(p2)*math.Sin(dl/2)*math.Sin(dl/2)
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(a))
}

// Index answers nearest-resort queries against a fixed reference set.
// Queries are O(n) over the set; resort sets are small enough that a
// spatial index would not pay for itself.
type Index struct {
	points []model.ReferencePoint
}

// NewIndex creates an Index. The reference set must be non-empty.
func NewIndex(points []model.ReferencePoint) (*Index, error) {
	if len(points) == 0 {
		return nil, eris.New("proximity: empty reference set")
	}
	return &Index{points: points}, nil
}

// Size returns the number of reference points.
func (ix *Index) Size() int { return len(ix.points) }

// Nearest returns the reference point with minimum great-circle distance to
// (lat, lon) and that distance in miles. Ties keep the first point in input
// order.
func (ix *Index) Nearest(lat, lon float64) (model.ReferencePoint, float64) {
	best := ix.points[0]
	bestDist := Haversine(lat, lon, best.Lat, best.Lon)
	for _, p := range ix.points[1:] {
		if d := Haversine(lat, lon, p.Lat, p.Lon); d < bestDist {
			best = p
			bestDist = d
		}
	}
	return best, bestDist
}

// FilterWithin keeps clinics whose nearest-resort distance is at most
// threshold miles. Boundary-equal distances are included.
func FilterWithin(clinics []model.Clinic, thresholdMiles float64) []model.Clinic {
	out := clinics[:0:0]
	for _, c := range clinics {
		if c.NearestResortDistMiles <= thresholdMiles {
			out = append(out, c)
		}
	}
	return out
}
