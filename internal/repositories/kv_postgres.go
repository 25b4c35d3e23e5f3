package repositories

import (
	"context"
	"time"

	"github.com/questkeep/questkeep/internal/clock"
	"github.com/questkeep/questkeep/internal/database"
)

// PostgresStore is a KVStore over the kv_entries table. Expired rows are
// invisible to Get and purged by DeleteExpired.
type PostgresStore struct {
	db    *database.DB
	clock clock.Clock
}

// NewPostgresStore creates a new PostgresStore
func NewPostgresStore(db *database.DB, clk clock.Clock) *PostgresStore {
	return &PostgresStore{db: db, clock: clk}
}

var _ KVStore = (*PostgresStore)(nil)

func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	query := `
		SELECT value FROM kv_entries
		WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)
	`

	var value string
	err := s.db.Pool.QueryRow(ctx, query, key, s.clock.Now()).Scan(&value)
	if err != nil {
		return "", database.MapPostgresError("kv get", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	query := `
		INSERT INTO kv_entries (key, value, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`

	now := s.clock.Now()
	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	_, err := s.db.Pool.Exec(ctx, query, key, value, expiresAt, now)
	return database.MapPostgresError("kv set", err)
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM kv_entries WHERE key = $1`, key)
	return database.MapPostgresError("kv remove", err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return database.MapPostgresError("kv ping", s.db.HealthCheck(ctx))
}

// DeleteExpired removes rows whose TTL elapsed before now
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM kv_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		s.clock.Now(),
	)
	if err != nil {
		return 0, database.MapPostgresError("kv delete expired", err)
	}
	return tag.RowsAffected(), nil
}
