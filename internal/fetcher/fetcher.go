// Package fetcher downloads and parses remote data: HTTP with retry and
// per-host rate limits, streaming CSV, JSON, and XLSX sources.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
