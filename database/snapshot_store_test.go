package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/datasource"
	"cart-service/models"
)

func newMockStore(t *testing.T) (*SnapshotStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSnapshotStore(db), mock
}

func TestSnapshotStoreLoad(t *testing.T) {
	store, mock := newMockStore(t)
	fetchedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT payload, fetched_at FROM cart_snapshots").
		WithArgs("static").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "fetched_at"}).
			AddRow([]byte(`{"carts":[{"id":7,"total":12.5}],"total":1,"skip":0,"limit":30}`), fetchedAt))

	snap, ok, err := store.Load(context.Background(), "static")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fetchedAt, snap.FetchedAt)
	require.Len(t, snap.Data.Carts, 1)
	assert.Equal(t, 7, snap.Data.Carts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreLoadMissing(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT payload, fetched_at FROM cart_snapshots").
		WithArgs("static").
		WillReturnRows(sqlmock.NewRows([]string{"payload", "fetched_at"}))

	_, ok, err := store.Load(context.Background(), "static")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotStoreLoadError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT payload, fetched_at FROM cart_snapshots").
		WithArgs("static").
		WillReturnError(errors.New("connection reset"))

	_, ok, err := store.Load(context.Background(), "static")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestSnapshotStoreSaveUpserts(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO cart_snapshots").
		WithArgs("static", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), "static", datasource.Snapshot{
		Data:      &models.CartsResponse{Carts: []models.CartRecord{{ID: 1}}, Total: 1},
		FetchedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotStoreEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS cart_snapshots").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
