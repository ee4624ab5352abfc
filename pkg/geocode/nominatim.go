package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

const (
	defaultNominatimURL       = "https://nominatim.openstreetmap.org/search"
	defaultNominatimUA        = "skiwithcare-datagen/1.0 (contact@skiwithcare.com)"
	defaultNominatimInterval  = 1100 * time.Millisecond
	defaultCheckpointInterval = 100
)

// NominatimResolver resolves addresses one at a time against a Nominatim
// search endpoint. Requests are paced by a rate limiter so successive calls
// never start closer together than the configured interval, which the
// public OSM instance requires.
type NominatimResolver struct {
	baseURL         string
	userAgent       string
	client          *http.Client
	limiter         *rate.Limiter
	checkpointEvery int
}

// NominatimOption configures a NominatimResolver.
type NominatimOption func(*NominatimResolver)

// WithNominatimURL overrides the search endpoint. Used by tests and by
// deployments pointing at a self-hosted instance.
func WithNominatimURL(u string) NominatimOption {
	return func(r *NominatimResolver) { r.baseURL = u }
}

// WithNominatimUserAgent sets the User-Agent header. The public instance
// rejects requests without an identifying agent.
func WithNominatimUserAgent(ua string) NominatimOption {
	return func(r *NominatimResolver) { r.userAgent = ua }
}

// WithNominatimHTTPClient overrides the HTTP client.
func WithNominatimHTTPClient(c *http.Client) NominatimOption {
	return func(r *NominatimResolver) { r.client = c }
}

// WithNominatimInterval sets the minimum spacing between request starts.
func WithNominatimInterval(d time.Duration) NominatimOption {
	return func(r *NominatimResolver) {
		if d > 0 {
			r.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithNominatimCheckpointEvery sets how many resolved addresses accumulate
// before the checkpoint callback fires.
func WithNominatimCheckpointEvery(n int) NominatimOption {
	return func(r *NominatimResolver) {
		if n > 0 {
			r.checkpointEvery = n
		}
	}
}

// NewNominatim builds an interactive resolver with OSM-safe defaults.
func NewNominatim(opts ...NominatimOption) *NominatimResolver {
	r := &NominatimResolver{
		baseURL:         defaultNominatimURL,
		userAgent:       defaultNominatimUA,
		client:          &http.Client{Timeout: 30 * time.Second},
		limiter:         rate.NewLimiter(rate.Every(defaultNominatimInterval), 1),
		checkpointEvery: defaultCheckpointInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ Resolver = (*NominatimResolver)(nil)

type nominatimHit struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Resolve looks up each query in order, pacing requests through the
// limiter. Lookup failures of any kind become failed records so a single
// bad address never aborts a long run. The checkpoint fires every
// checkpointEvery results and once more for the remainder.
func (r *NominatimResolver) Resolve(ctx context.Context, queries []AddressQuery, checkpoint CheckpointFunc) error {
	pending := make(map[string]model.GeocodeRecord, r.checkpointEvery)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		if err := checkpoint(pending); err != nil {
			return eris.Wrap(err, "geocode: checkpoint")
		}
		pending = make(map[string]model.GeocodeRecord, r.checkpointEvery)
		return nil
	}

	for _, q := range queries {
		if err := r.limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "geocode: rate limit wait")
		}
		rec := r.lookup(ctx, q)
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "geocode: canceled")
		}
		pending[q.Key] = rec
		if len(pending) >= r.checkpointEvery {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// lookup performs one search request. It never returns an error: transport
// failures, bad statuses, empty result sets, and unparseable coordinates
// all produce a failed record.
func (r *NominatimResolver) lookup(ctx context.Context, q AddressQuery) model.GeocodeRecord {
	text := searchText(q)

	params := url.Values{}
	params.Set("q", text)
	params.Set("format", "json")
	params.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		zap.L().Warn("nominatim request build failed", zap.String("query", text), zap.Error(err))
		return failedWithQuery(text)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		zap.L().Warn("nominatim request failed", zap.String("query", text), zap.Error(err))
		return failedWithQuery(text)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zap.L().Warn("nominatim unexpected status",
			zap.String("query", text), zap.Int("status", resp.StatusCode))
		io.Copy(io.Discard, resp.Body)
		return failedWithQuery(text)
	}

	var hits []nominatimHit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		zap.L().Warn("nominatim response decode failed", zap.String("query", text), zap.Error(err))
		return failedWithQuery(text)
	}
	if len(hits) == 0 {
		zap.L().Debug("nominatim no match", zap.String("query", text))
		return failedWithQuery(text)
	}

	lat, latErr := strconv.ParseFloat(hits[0].Lat, 64)
	lon, lonErr := strconv.ParseFloat(hits[0].Lon, 64)
	if latErr != nil || lonErr != nil {
		zap.L().Warn("nominatim unparseable coordinates",
			zap.String("query", text), zap.String("lat", hits[0].Lat), zap.String("lon", hits[0].Lon))
		return failedWithQuery(text)
	}

	rec := model.Resolved(lat, lon)
	rec.Query = text
	return rec
}

func failedWithQuery(text string) model.GeocodeRecord {
	rec := model.FailedRecord()
	rec.Query = text
	return rec
}

// searchText renders the query as free text. Freeform wins; otherwise the
// structured fields join into a single line the way a person would type it.
func searchText(q AddressQuery) string {
	if q.Freeform != "" {
		return q.Freeform
	}
	parts := make([]string, 0, 4)
	for _, p := range []string{q.Street, q.City, q.State, q.Zip} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
