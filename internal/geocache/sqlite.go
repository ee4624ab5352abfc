package geocache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// SQLiteBackend persists the cache in a SQLite database. Persist rewrites
// the table inside one transaction, so readers never observe partial state.
type SQLiteBackend struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	key       TEXT PRIMARY KEY,
	lat       REAL,
	lon       REAL,
	failed    INTEGER NOT NULL DEFAULT 0,
	query     TEXT,
	cached_at DATETIME
);
`

// NewSQLite opens (or creates) a SQLite cache at the given path and
// configures WAL mode.
func NewSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "geocache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "geocache: sqlite migrate")
	}
	return &SQLiteBackend{db: db}, nil
}

// Load reads all cache rows.
func (s *SQLiteBackend) Load(ctx context.Context) (map[string]model.GeocodeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, lat, lon, failed, query, cached_at FROM geocode_cache`)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: sqlite select")
	}
	defer rows.Close()

	entries := make(map[string]model.GeocodeRecord)
	for rows.Next() {
		var (
			key      string
			lat, lon sql.NullFloat64
			failed   bool
			query    sql.NullString
			cachedAt sql.NullTime
		)
		if err := rows.Scan(&key, &lat, &lon, &failed, &query, &cachedAt); err != nil {
			return nil, eris.Wrap(err, "geocache: sqlite scan")
		}
		entries[key] = buildRecord(lat, lon, failed, query, cachedAt)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geocache: sqlite iterate")
	}
	return entries, nil
}

// Persist replaces the full table contents in one transaction.
func (s *SQLiteBackend) Persist(ctx context.Context, entries map[string]model.GeocodeRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "geocache: sqlite begin")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM geocode_cache`); err != nil {
		return eris.Wrap(err, "geocache: sqlite clear")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO geocode_cache (key, lat, lon, failed, query, cached_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "geocache: sqlite prepare")
	}
	defer stmt.Close()

	for key, rec := range entries {
		if _, err := stmt.ExecContext(ctx, key,
			nullFloat(rec.Lat), nullFloat(rec.Lon),
			rec.Status() == model.StatusFailed,
			nullString(rec.Query), nullTime(rec.CachedAt),
		); err != nil {
			return eris.Wrapf(err, "geocache: sqlite insert %s", key)
		}
	}

	return eris.Wrap(tx.Commit(), "geocache: sqlite commit")
}

// Close implements Backend.
func (s *SQLiteBackend) Close() error { return s.db.Close() }

func buildRecord(lat, lon sql.NullFloat64, failed bool, query sql.NullString, cachedAt sql.NullTime) model.GeocodeRecord {
	var rec model.GeocodeRecord
	if lat.Valid && lon.Valid {
		rec.Lat = &lat.Float64
		rec.Lon = &lon.Float64
	}
	rec.Failed = failed
	if query.Valid {
		rec.Query = query.String
	}
	if cachedAt.Valid {
		rec.CachedAt = cachedAt.Time.UTC()
	}
	return rec
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
