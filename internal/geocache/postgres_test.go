package geocache

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skiwithcare/datagen-cli/internal/model"
)

func TestPostgres_Load(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	lat, lon := 39.7392, -104.9903
	query := "1600 Main St"
	cachedAt := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT key, lat, lon, failed, query, cached_at FROM geocode_cache`).
		WithArgs("facility").
		WillReturnRows(
			pgxmock.NewRows([]string{"key", "lat", "lon", "failed", "query", "cached_at"}).
				AddRow("012345", &lat, &lon, false, (*string)(nil), &cachedAt).
				AddRow("099999", (*float64)(nil), (*float64)(nil), true, &query, &cachedAt),
		)

	b := NewPostgres(mock, "facility")
	entries, err := b.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.StatusResolved, entries["012345"].Status())
	assert.Equal(t, model.StatusFailed, entries["099999"].Status())
	assert.Equal(t, "1600 Main St", entries["099999"].Query)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PersistWholesale(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM geocode_cache`).
		WithArgs("facility").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO geocode_cache`).
		WithArgs("facility", "012345", f64(39.7392), f64(-104.9903), false, nil, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()
	mock.ExpectRollback() // deferred rollback after commit is a no-op

	b := NewPostgres(mock, "facility")
	err = b.Persist(context.Background(), map[string]model.GeocodeRecord{
		"012345": {Lat: f64(39.7392), Lon: f64(-104.9903), CachedAt: time.Now()},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geocode_cache`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, NewPostgres(mock, "facility").Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
