package repositories

import (
	"context"
	"encoding/json"
	"time"

	"github.com/questkeep/questkeep/internal/models"
)

// loadJSON reads key and decodes it into dst. A corrupt value is an
// infrastructure failure, not a missing record.
func loadJSON(ctx context.Context, store KVStore, key string, dst interface{}) error {
	raw, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return models.Infrastructure("decode "+key, err)
	}
	return nil
}

func storeJSON(ctx context.Context, store KVStore, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return models.Infrastructure("encode "+key, err)
	}
	return store.Set(ctx, key, string(data), ttl)
}
