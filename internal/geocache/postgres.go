package geocache

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the backend needs; pgxmock satisfies it.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresBackend persists the cache in a Postgres table, for deployments
// where several machines share one cache. Scope separates independent
// caches (facility vs resort) within the same table.
type PostgresBackend struct {
	pool  Pool
	scope string
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	scope     TEXT NOT NULL,
	key       TEXT NOT NULL,
	lat       DOUBLE PRECISION,
	lon       DOUBLE PRECISION,
	failed    BOOLEAN NOT NULL DEFAULT FALSE,
	query     TEXT,
	cached_at TIMESTAMPTZ,
	PRIMARY KEY (scope, key)
)`

// NewPostgres creates a PostgresBackend over an existing pool.
func NewPostgres(pool Pool, scope string) *PostgresBackend {
	return &PostgresBackend{pool: pool, scope: scope}
}

// Connect opens a pgx pool for the given URL and ensures the cache table.
func Connect(ctx context.Context, databaseURL, scope string) (*PostgresBackend, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "geocache: postgres connect")
	}
	b := NewPostgres(pool, scope)
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return b, pool, nil
}

// Migrate creates the cache table if needed.
func (p *PostgresBackend) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "geocache: postgres migrate")
}

// Load reads all cache rows in this backend's scope.
func (p *PostgresBackend) Load(ctx context.Context) (map[string]model.GeocodeRecord, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, lat, lon, failed, query, cached_at FROM geocode_cache WHERE scope = $1`, p.scope)
	if err != nil {
		return nil, eris.Wrap(err, "geocache: postgres select")
	}
	defer rows.Close()

	entries := make(map[string]model.GeocodeRecord)
	for rows.Next() {
		var (
			key      string
			lat, lon *float64
			failed   bool
			query    *string
			cachedAt *time.Time
		)
		if err := rows.Scan(&key, &lat, &lon, &failed, &query, &cachedAt); err != nil {
			return nil, eris.Wrap(err, "geocache: postgres scan")
		}
		rec := model.GeocodeRecord{Lat: lat, Lon: lon, Failed: failed}
		if query != nil {
			rec.Query = *query
		}
		if cachedAt != nil {
			rec.CachedAt = cachedAt.UTC()
		}
		entries[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "geocache: postgres iterate")
	}
	return entries, nil
}

// Persist replaces the scope's rows in one transaction.
func (p *PostgresBackend) Persist(ctx context.Context, entries map[string]model.GeocodeRecord) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "geocache: postgres begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM geocode_cache WHERE scope = $1`, p.scope); err != nil {
		return eris.Wrap(err, "geocache: postgres clear")
	}

	for key, rec := range entries {
		var cachedAt any
		if !rec.CachedAt.IsZero() {
			cachedAt = rec.CachedAt.UTC()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO geocode_cache (scope, key, lat, lon, failed, query, cached_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.scope, key, rec.Lat, rec.Lon, rec.Status() == model.StatusFailed, nullString(rec.Query), cachedAt,
		); err != nil {
			return eris.Wrapf(err, "geocache: postgres insert %s", key)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "geocache: postgres commit")
}

// Close implements Backend. The pool is owned by the caller.
func (p *PostgresBackend) Close() error { return nil }
