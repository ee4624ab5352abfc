// Package ingest loads the raw dialysis facility dataset, either from the
// CMS Provider Data Catalog or from a local CSV/XLSX file.
package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/fetcher"
	"github.com/skiwithcare/datagen-cli/internal/model"
)

const (
	// DefaultMetadataURL is the catalog entry for the Dialysis Facility
	// dataset. The distribution list inside it points at the current CSV.
	DefaultMetadataURL = "https://data.cms.gov/provider-data/api/1/metastore/schemas/dataset/items/23ew-n7w9"

	// DefaultFallbackCSVURL is a pinned snapshot used when the metadata
	// endpoint is unavailable. Staler than the catalog but always there.
	DefaultFallbackCSVURL = "https://data.cms.gov/provider-data/sites/default/files/resources/c04d84bc5c641284494bee4f20f17f9c_1759341903/DFC_FACILITY.csv"
)

// Dataset column headers as published by CMS.
const (
	colCCN    = "CMS Certification Number (CCN)"
	colName   = "Facility Name"
	colChain  = "Chain Organization"
	colStreet = "Address Line 1"
	colCity   = "City/Town"
	colState  = "State"
	colZip    = "ZIP Code"
)

// Source downloads and parses the facility dataset.
type Source struct {
	fetch       fetcher.Fetcher
	metadataURL string
	fallbackURL string
}

// NewSource builds a Source. Empty URLs fall back to the defaults.
func NewSource(f fetcher.Fetcher, metadataURL, fallbackURL string) *Source {
	if metadataURL == "" {
		metadataURL = DefaultMetadataURL
	}
	if fallbackURL == "" {
		fallbackURL = DefaultFallbackCSVURL
	}
	return &Source{fetch: f, metadataURL: metadataURL, fallbackURL: fallbackURL}
}

type datasetMetadata struct {
	Distribution []struct {
		MediaType   string `json:"mediaType"`
		DownloadURL string `json:"downloadURL"`
	} `json:"distribution"`
}

// ResolveCSVURL asks the catalog for the current CSV distribution. Any
// failure along the way degrades to the pinned fallback with a warning;
// the dataset moves rarely enough that a stale snapshot beats a dead run.
func (s *Source) ResolveCSVURL(ctx context.Context) string {
	body, err := s.fetch.Download(ctx, s.metadataURL)
	if err != nil {
		zap.L().Warn("cms metadata fetch failed, using fallback CSV",
			zap.String("url", s.metadataURL), zap.Error(err))
		return s.fallbackURL
	}
	defer body.Close()

	meta, err := fetcher.DecodeJSONObject[datasetMetadata](body)
	if err != nil {
		zap.L().Warn("cms metadata decode failed, using fallback CSV", zap.Error(err))
		return s.fallbackURL
	}

	for _, dist := range meta.Distribution {
		if dist.MediaType == "text/csv" && dist.DownloadURL != "" {
			return dist.DownloadURL
		}
	}
	zap.L().Warn("cms metadata has no text/csv distribution, using fallback CSV")
	return s.fallbackURL
}

// Facilities downloads the dataset and parses it. An unreadable or empty
// dataset is fatal: the pipeline cannot produce anything without it.
func (s *Source) Facilities(ctx context.Context) ([]model.FacilityRecord, error) {
	csvURL := s.ResolveCSVURL(ctx)
	zap.L().Info("downloading facility dataset", zap.String("url", csvURL))

	body, err := s.fetch.Download(ctx, csvURL)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: download facility dataset")
	}
	defer body.Close()

	return ParseCSV(ctx, body)
}

// LoadFile reads facilities from a local .csv or .xlsx file.
func LoadFile(ctx context.Context, path string) ([]model.FacilityRecord, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSVFile(ctx, path)
	case ".xlsx":
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read %s", path)
		}
		if len(rows) == 0 {
			return nil, eris.Errorf("ingest: %s is empty", path)
		}
		return fromRows(rows[0], rows[1:])
	default:
		return nil, eris.Errorf("ingest: unsupported source file %s (want .csv or .xlsx)", path)
	}
}

// ParseCSV streams the dataset CSV into facility records.
func ParseCSV(ctx context.Context, r io.Reader) ([]model.FacilityRecord, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})

	var (
		header []string
		rows   [][]string
	)
	for row := range rowCh {
		if header == nil {
			select {
			case header = <-headerCh:
			default:
			}
		}
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "ingest: parse facility csv")
	}
	if header == nil {
		select {
		case header = <-headerCh:
		default:
		}
	}
	if header == nil {
		return nil, eris.New("ingest: facility csv has no header row")
	}
	return fromRows(header, rows)
}

// fromRows maps header-named columns into records. Rows without a CCN are
// skipped; an empty result is an error, not an empty dataset.
func fromRows(header []string, rows [][]string) ([]model.FacilityRecord, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{colCCN, colName, colStreet, colCity, colState, colZip} {
		if _, ok := idx[required]; !ok {
			return nil, eris.Errorf("ingest: facility source missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var (
		facilities []model.FacilityRecord
		skipped    int
	)
	for _, row := range rows {
		ccn := field(row, colCCN)
		if ccn == "" {
			skipped++
			continue
		}
		facilities = append(facilities, model.FacilityRecord{
			CCN:    ccn,
			Name:   field(row, colName),
			Chain:  field(row, colChain),
			Street: field(row, colStreet),
			City:   field(row, colCity),
			State:  field(row, colState),
			Zip:    field(row, colZip),
		})
	}

	if skipped > 0 {
		zap.L().Warn("skipped facility rows without CCN", zap.Int("skipped", skipped))
	}
	if len(facilities) == 0 {
		return nil, eris.New("ingest: facility source yielded no records")
	}
	return facilities, nil
}

func parseCSVFile(ctx context.Context, path string) ([]model.FacilityRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close()
	return ParseCSV(ctx, f)
}
