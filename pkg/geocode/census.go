package geocode

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

const (
	defaultCensusBatchURL = "https://geocoding.geo.census.gov/geocoder/locations/addressbatch"
	censusBenchmark       = "Public_AR_Current"
	censusVintage         = "Current_Current"

	// censusMaxChunk is the hard cap the batch endpoint enforces per upload.
	censusMaxChunk     = 10000
	defaultCensusChunk = 5000
)

// CensusBatchResolver resolves addresses in bulk by uploading CSV chunks to
// the Census Bureau batch geocoder. Each chunk is checkpointed before the
// next is submitted, and a chunk that fails wholesale marks its addresses
// failed rather than aborting the run.
type CensusBatchResolver struct {
	batchURL  string
	benchmark string
	vintage   string
	chunkSize int
	client    *http.Client
	limiter   *rate.Limiter
}

var _ Resolver = (*CensusBatchResolver)(nil)

// CensusOption configures a CensusBatchResolver.
type CensusOption func(*CensusBatchResolver)

// WithCensusBatchURL overrides the batch endpoint.
func WithCensusBatchURL(u string) CensusOption {
	return func(r *CensusBatchResolver) { r.batchURL = u }
}

// WithCensusChunkSize sets addresses per upload, clamped to the endpoint cap.
func WithCensusChunkSize(n int) CensusOption {
	return func(r *CensusBatchResolver) {
		if n > 0 {
			r.chunkSize = n
		}
		if r.chunkSize > censusMaxChunk {
			r.chunkSize = censusMaxChunk
		}
	}
}

// WithCensusHTTPClient overrides the HTTP client. Batch uploads of 5,000
// addresses can take minutes, so the default timeout is generous.
func WithCensusHTTPClient(c *http.Client) CensusOption {
	return func(r *CensusBatchResolver) { r.client = c }
}

// WithCensusRateLimit sets the request pacing between chunk uploads.
func WithCensusRateLimit(l *rate.Limiter) CensusOption {
	return func(r *CensusBatchResolver) {
		if l != nil {
			r.limiter = l
		}
	}
}

// NewCensusBatch builds a batch resolver against the public endpoint.
func NewCensusBatch(opts ...CensusOption) *CensusBatchResolver {
	r := &CensusBatchResolver{
		batchURL:  defaultCensusBatchURL,
		benchmark: censusBenchmark,
		vintage:   censusVintage,
		chunkSize: defaultCensusChunk,
		client:    &http.Client{Timeout: 5 * time.Minute},
		limiter:   rate.NewLimiter(rate.Limit(3), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve uploads queries in chunks. The checkpoint fires after every chunk
// so a crash mid-run never loses a completed upload; a checkpoint error
// aborts, everything else degrades to failed records.
func (r *CensusBatchResolver) Resolve(ctx context.Context, queries []AddressQuery, checkpoint CheckpointFunc) error {
	for start := 0; start < len(queries); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(queries) {
			end = len(queries)
		}
		chunk := queries[start:end]

		if err := r.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: census rate limit wait")
		}

		results, err := r.submitChunk(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return eris.Wrap(ctx.Err(), "geocode: canceled")
			}
			zap.L().Warn("census batch chunk failed, marking addresses failed",
				zap.Int("chunk_start", start), zap.Int("chunk_size", len(chunk)), zap.Error(err))
			results = allFailed(chunk)
		}

		if err := checkpoint(results); err != nil {
			return eris.Wrap(err, "geocode: checkpoint")
		}
	}
	return nil
}

// submitChunk uploads one CSV chunk and parses the response. Every query in
// the chunk gets an entry in the returned map: rows the server omits or
// mangles come back as failed records, never silently dropped.
func (r *CensusBatchResolver) submitChunk(ctx context.Context, chunk []AddressQuery) (map[string]model.GeocodeRecord, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("benchmark", r.benchmark); err != nil {
		return nil, eris.Wrap(err, "geocode: census write benchmark")
	}
	if err := mw.WriteField("vintage", r.vintage); err != nil {
		return nil, eris.Wrap(err, "geocode: census write vintage")
	}

	part, err := mw.CreateFormFile("addressFile", "addresses.csv")
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census create form file")
	}

	// Upload format: id,street,city,state,zip with no header row. The id
	// column round-trips so responses map back to queries by key.
	keyByID := make(map[string]string, len(chunk))
	cw := csv.NewWriter(part)
	for i, q := range chunk {
		id := strconv.Itoa(i)
		keyByID[id] = q.Key
		if err := cw.Write([]string{id, q.Street, q.City, q.State, q.Zip}); err != nil {
			return nil, eris.Wrap(err, "geocode: census write address row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, eris.Wrap(err, "geocode: census flush address csv")
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "geocode: census close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.batchURL, &body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census build request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: census batch request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, eris.Errorf("geocode: census batch returned status %d", resp.StatusCode)
	}

	return parseBatchResponse(resp.Body, chunk, keyByID)
}

// parseBatchResponse reads the response CSV. Columns:
// id, input address, match status, match type, matched address,
// "lon,lat", tiger line id, side.
func parseBatchResponse(body io.Reader, chunk []AddressQuery, keyByID map[string]string) (map[string]model.GeocodeRecord, error) {
	results := make(map[string]model.GeocodeRecord, len(chunk))
	for _, q := range chunk {
		results[q.Key] = model.FailedRecord()
	}

	cr := csv.NewReader(body)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "geocode: census parse response")
		}
		if len(row) < 6 {
			continue
		}

		key, ok := keyByID[strings.TrimSpace(row[0])]
		if !ok {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(row[2]), "Match") {
			continue
		}

		lat, lon, err := parseCoordPair(row[5])
		if err != nil {
			zap.L().Warn("census unparseable coordinates",
				zap.String("key", key), zap.String("coords", row[5]))
			continue
		}
		results[key] = model.Resolved(lat, lon)
	}
	return results, nil
}

// parseCoordPair parses the response coordinate column. The server emits
// longitude first; callers get the conventional (lat, lon) order back.
func parseCoordPair(coords string) (lat, lon float64, err error) {
	parts := strings.SplitN(coords, ",", 2)
	if len(parts) != 2 {
		return 0, 0, eris.Errorf("geocode: invalid coordinate pair %q", coords)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse longitude")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, eris.Wrap(err, "geocode: parse latitude")
	}
	return lat, lon, nil
}

func allFailed(chunk []AddressQuery) map[string]model.GeocodeRecord {
	results := make(map[string]model.GeocodeRecord, len(chunk))
	for _, q := range chunk {
		results[q.Key] = model.FailedRecord()
	}
	return results
}
