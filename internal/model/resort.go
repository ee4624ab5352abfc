package model

// ReferencePoint is a geocoded ski resort that facilities are measured
// against. The set is loaded once at pipeline start and read-only afterwards.
type ReferencePoint struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	State  string  `json:"state"`
	Region string  `json:"region,omitempty"`
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
}
