// Package model defines the shared data types for the dataset pipeline.
package model

import "time"

// GeocodeStatus is the resolution state of a cached geocode entry.
type GeocodeStatus string

const (
	StatusResolved GeocodeStatus = "resolved"
	StatusFailed   GeocodeStatus = "failed"
)

// GeocodeRecord is one cached address resolution. A record either carries
// coordinates or is marked failed; failed entries are cached too so reruns
// do not repeat futile lookups.
//
// The JSON shape is a superset of the legacy cache files: resolved entries
// are {"lat":..,"lon":..}, failures are {"failed":true} or null lat/lon.
type GeocodeRecord struct {
	Lat      *float64  `json:"lat,omitempty"`
	Lon      *float64  `json:"lon,omitempty"`
	Failed   bool      `json:"failed,omitempty"`
	Query    string    `json:"query,omitempty"`
	CachedAt time.Time `json:"cachedAt,omitempty"`
}

// Resolved creates a resolved record with internal (lat, lon) ordering.
func Resolved(lat, lon float64) GeocodeRecord {
	return GeocodeRecord{Lat: &lat, Lon: &lon}
}

// FailedRecord creates a record marking the key as unresolvable.
func FailedRecord() GeocodeRecord {
	return GeocodeRecord{Failed: true}
}

// Status reports whether the record is resolved or failed. Legacy cache
// entries with null coordinates count as failed even without the flag.
func (r GeocodeRecord) Status() GeocodeStatus {
	if r.Failed || r.Lat == nil || r.Lon == nil {
		return StatusFailed
	}
	return StatusResolved
}

// Coordinates returns (lat, lon, true) for resolved records.
func (r GeocodeRecord) Coordinates() (float64, float64, bool) {
	if r.Status() != StatusResolved {
		return 0, 0, false
	}
	return *r.Lat, *r.Lon, true
}
