package geocode

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

func newTestCensus(srvURL string, opts ...CensusOption) *CensusBatchResolver {
	base := []CensusOption{
		WithCensusBatchURL(srvURL),
		WithCensusRateLimit(rate.NewLimiter(rate.Every(time.Millisecond), 1)),
	}
	return NewCensusBatch(append(base, opts...)...)
}

// readUpload parses the multipart upload and returns the posted address rows.
func readUpload(t *testing.T, r *http.Request) [][]string {
	t.Helper()
	require.NoError(t, r.ParseMultipartForm(1<<20))
	assert.Equal(t, censusBenchmark, r.FormValue("benchmark"))
	assert.Equal(t, censusVintage, r.FormValue("vintage"))

	file, _, err := r.FormFile("addressFile")
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestCensusBatchResolve_MixedResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rows := readUpload(t, r)
		require.Len(t, rows, 2)
		assert.Equal(t, []string{"0", "1600 Pennsylvania Ave NW", "Washington", "DC", "20500"}, rows[0])

		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, `"0","1600 Pennsylvania Ave NW, Washington, DC, 20500","Match","Exact","1600 PENNSYLVANIA AVE NW, WASHINGTON, DC, 20500","-77.0365,38.8977","123","L"
"1","123 Nowhere St, Faketown, XX, 00000","No_Match"
`)
	}))
	defer srv.Close()

	r := newTestCensus(srv.URL)
	merged := map[string]model.GeocodeRecord{}
	calls := 0
	queries := []AddressQuery{
		{Key: "whitehouse", Street: "1600 Pennsylvania Ave NW", City: "Washington", State: "DC", Zip: "20500"},
		{Key: "nowhere", Street: "123 Nowhere St", City: "Faketown", State: "XX", Zip: "00000"},
	}
	err := r.Resolve(context.Background(), queries, collectCheckpoint(merged, &calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	lat, lon, ok := merged["whitehouse"].Coordinates()
	require.True(t, ok, "response order is lon,lat and must be flipped")
	assert.InDelta(t, 38.8977, lat, 0.0001)
	assert.InDelta(t, -77.0365, lon, 0.0001)

	assert.Equal(t, model.StatusFailed, merged["nowhere"].Status())
}

func TestCensusBatchResolve_OmittedRowIsFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		readUpload(t, r)
		// Server drops row 1 entirely.
		_, _ = io.WriteString(w, `"0","a","Match","Exact","A","-100.0,40.0","1","L"
`)
	}))
	defer srv.Close()

	r := newTestCensus(srv.URL)
	merged := map[string]model.GeocodeRecord{}
	queries := []AddressQuery{
		{Key: "present", Street: "1 Main St", City: "Denver", State: "CO", Zip: "80202"},
		{Key: "dropped", Street: "2 Main St", City: "Denver", State: "CO", Zip: "80202"},
	}
	err := r.Resolve(context.Background(), queries, collectCheckpoint(merged, new(int)))
	require.NoError(t, err)

	require.Len(t, merged, 2)
	assert.Equal(t, model.StatusResolved, merged["present"].Status())
	assert.Equal(t, model.StatusFailed, merged["dropped"].Status())
}

func TestCensusBatchResolve_ChunkFailureIsolated(t *testing.T) {
	var chunk int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chunk++
		if chunk == 2 {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		rows := readUpload(t, r)
		for _, row := range rows {
			fmt.Fprintf(w, "%q,%q,\"Match\",\"Exact\",%q,\"-105.0,39.0\",\"1\",\"L\"\n",
				row[0], strings.Join(row[1:], ", "), strings.ToUpper(strings.Join(row[1:], ", ")))
		}
	}))
	defer srv.Close()

	r := newTestCensus(srv.URL, WithCensusChunkSize(1))
	merged := map[string]model.GeocodeRecord{}
	calls := 0
	queries := []AddressQuery{
		{Key: "a", Street: "1 First St", City: "Denver", State: "CO", Zip: "80202"},
		{Key: "b", Street: "2 Second St", City: "Denver", State: "CO", Zip: "80202"},
		{Key: "c", Street: "3 Third St", City: "Denver", State: "CO", Zip: "80202"},
	}
	err := r.Resolve(context.Background(), queries, collectCheckpoint(merged, &calls))
	require.NoError(t, err)

	// One checkpoint per chunk, even for the failed one.
	assert.Equal(t, 3, calls)
	assert.Equal(t, model.StatusResolved, merged["a"].Status())
	assert.Equal(t, model.StatusFailed, merged["b"].Status())
	assert.Equal(t, model.StatusResolved, merged["c"].Status())
}

func TestCensusBatchResolve_CheckpointErrorAborts(t *testing.T) {
	uploads := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads++
		readUpload(t, r)
		_, _ = io.WriteString(w, `"0","a","Match","Exact","A","-100.0,40.0","1","L"
`)
	}))
	defer srv.Close()

	r := newTestCensus(srv.URL, WithCensusChunkSize(1))
	queries := []AddressQuery{
		{Key: "a", Street: "1 First St", City: "Denver", State: "CO", Zip: "80202"},
		{Key: "b", Street: "2 Second St", City: "Denver", State: "CO", Zip: "80202"},
	}
	err := r.Resolve(context.Background(), queries, func(map[string]model.GeocodeRecord) error {
		return assert.AnError
	})
	require.Error(t, err)
	assert.Equal(t, 1, uploads)
}

func TestCensusChunkSizeClamped(t *testing.T) {
	r := NewCensusBatch(WithCensusChunkSize(50000))
	assert.Equal(t, censusMaxChunk, r.chunkSize)
}
