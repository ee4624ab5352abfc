package proximity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

func TestHaversine_EquatorLongitude(t *testing.T) {
	// 0.4 degrees of longitude at the equator with radius 3958.8.
	d := Haversine(0, 0, 0, 0.4)
	assert.InDelta(t, 27.64, d, 0.05)
}

func TestHaversine_ZeroDistance(t *testing.T) {
	assert.Zero(t, Haversine(39.6403, -106.3742, 39.6403, -106.3742))
}

func TestHaversine_DenverToVail(t *testing.T) {
	d := Haversine(39.7392, -104.9903, 39.6403, -106.3742)
	assert.InDelta(t, 73.90, d, 0.05)
}

func TestNewIndex_Empty(t *testing.T) {
	_, err := NewIndex(nil)
	assert.Error(t, err)
}

func TestNearest_PicksMinimum(t *testing.T) {
	ix, err := NewIndex([]model.ReferencePoint{
		{ID: "a", Name: "A", Lat: 0, Lon: 0},
		{ID: "b", Name: "B", Lat: 0, Lon: 1},
	})
	require.NoError(t, err)

	// Query point at (0, 0.4) is closer to A.
	p, d := ix.Nearest(0, 0.4)
	assert.Equal(t, "a", p.ID)
	assert.InDelta(t, 27.64, d, 0.05)

	p, _ = ix.Nearest(0, 0.9)
	assert.Equal(t, "b", p.ID)
}

func TestNearest_TieBreaksByInputOrder(t *testing.T) {
	// Two reference points equidistant from the query; the first wins.
	ix, err := NewIndex([]model.ReferencePoint{
		{ID: "west", Lat: 0, Lon: -1},
		{ID: "east", Lat: 0, Lon: 1},
	})
	require.NoError(t, err)

	p, _ := ix.Nearest(0, 0)
	assert.Equal(t, "west", p.ID)
}

func TestFilterWithin_BoundaryInclusive(t *testing.T) {
	clinics := []model.Clinic{
		{CCN: "in", NearestResortDistMiles: 199.99},
		{CCN: "boundary", NearestResortDistMiles: 200.00},
		{CCN: "out", NearestResortDistMiles: 200.01},
	}

	kept := FilterWithin(clinics, 200)
	require.Len(t, kept, 2)
	assert.Equal(t, "in", kept[0].CCN)
	assert.Equal(t, "boundary", kept[1].CCN)
}

func TestFilterWithin_Empty(t *testing.T) {
	assert.Empty(t, FilterWithin(nil, 200))
}
