package model

// FacilityRecord is one row from the raw dialysis facility catalog. Only the
// coordinate and derived fields are attached after ingestion; the address
// fields are never rewritten.
type FacilityRecord struct {
	CCN    string
	Name   string
	Chain  string // free-text chain organization label, input to classification
	Street string
	City   string
	State  string
	Zip    string

	Lat *float64
	Lon *float64
}

// HasCoordinates reports whether geocoding attached a usable position.
func (f FacilityRecord) HasCoordinates() bool {
	return f.Lat != nil && f.Lon != nil
}

// Clinic is the output unit of the pipeline: a facility within the distance
// threshold of at least one resort. Field order in JSON is stable across runs.
type Clinic struct {
	CCN                    string  `json:"ccn"`
	Facility               string  `json:"facility"`
	Provider               string  `json:"provider"`
	Address                string  `json:"address"`
	City                   string  `json:"city"`
	State                  string  `json:"state"`
	Zip                    string  `json:"zip"`
	Lat                    float64 `json:"lat"`
	Lon                    float64 `json:"lon"`
	NearestResortID        string  `json:"nearestResortId"`
	NearestResort          string  `json:"nearestResort"`
	NearestResortDistMiles float64 `json:"nearestResortDistMiles"`
}
