package geocache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// FileBackend persists the cache as a single JSON document. Writes go to a
// temporary file in the same directory followed by a rename, so a crash
// mid-flush leaves the previous state intact.
type FileBackend struct {
	path string
}

// NewFile creates a FileBackend for the given path.
func NewFile(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the cache file. A missing or malformed file yields an empty
// mapping: the cache is an optimization, not a source of truth.
func (f *FileBackend) Load(_ context.Context) (map[string]model.GeocodeRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]model.GeocodeRecord{}, nil
		}
		return nil, eris.Wrapf(err, "geocache: read %s", f.path)
	}

	var entries map[string]model.GeocodeRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		zap.L().Warn("geocache: cache file malformed, starting empty",
			zap.String("path", f.path),
			zap.Error(err),
		)
		return map[string]model.GeocodeRecord{}, nil
	}
	if entries == nil {
		entries = map[string]model.GeocodeRecord{}
	}
	return entries, nil
}

// Persist atomically replaces the cache file with the full mapping.
func (f *FileBackend) Persist(_ context.Context, entries map[string]model.GeocodeRecord) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "geocache: marshal entries")
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "geocache: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "geocache: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "geocache: write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrap(err, "geocache: close temp file")
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return eris.Wrapf(err, "geocache: rename to %s", f.path)
	}
	return nil
}

// Close implements Backend.
func (f *FileBackend) Close() error { return nil }
