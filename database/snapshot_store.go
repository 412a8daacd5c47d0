package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"cart-service/datasource"
	"cart-service/models"
)

const createSnapshotsTable = `
CREATE TABLE IF NOT EXISTS cart_snapshots (
	mode       VARCHAR(32) NOT NULL PRIMARY KEY,
	payload    JSON        NOT NULL,
	fetched_at DATETIME(6) NOT NULL
)`

// SnapshotStore 多副本共享的 ISR 快照
type SnapshotStore struct {
	db *sql.DB
}

func NewSnapshotStore(db *sql.DB) *SnapshotStore {
	return &SnapshotStore{db: db}
}

func (s *SnapshotStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, createSnapshotsTable)
	return err
}

func (s *SnapshotStore) Load(ctx context.Context, key string) (datasource.Snapshot, bool, error) {
	var (
		payload   []byte
		fetchedAt time.Time
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT payload, fetched_at FROM cart_snapshots WHERE mode = ?", key,
	).Scan(&payload, &fetchedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return datasource.Snapshot{}, false, nil
		}
		return datasource.Snapshot{}, false, err
	}

	var data models.CartsResponse
	if err := json.Unmarshal(payload, &data); err != nil {
		return datasource.Snapshot{}, false, err
	}
	return datasource.Snapshot{Data: &data, FetchedAt: fetchedAt}, true, nil
}

func (s *SnapshotStore) Save(ctx context.Context, key string, snap datasource.Snapshot) error {
	payload, err := json.Marshal(snap.Data)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cart_snapshots (mode, payload, fetched_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload), fetched_at = VALUES(fetched_at)
	`, key, payload, snap.FetchedAt.UTC())
	return err
}
