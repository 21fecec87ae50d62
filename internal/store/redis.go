package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/laughstock/market-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Writes go to the primary store and invalidate the cache; reads
// check Redis first then fall back to the primary.
//
// Only the hot read paths of the settlement pipeline are cached: asset
// lookups, user lookups, and net-volume aggregates. The transaction log
// and price history are passthrough.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	if err := s.primary.CreateUser(ctx, u); err != nil {
		return err
	}
	s.cacheJSON(ctx, userKey(u.ID), u)
	return nil
}

func (s *CachedStore) UpdateUserCoins(ctx context.Context, id string, coins decimal.Decimal) error {
	if err := s.primary.UpdateUserCoins(ctx, id, coins); err != nil {
		return err
	}
	// Invalidate; next read re-populates.
	s.rdb.Del(ctx, userKey(id))
	return nil
}

func (s *CachedStore) CreateAsset(ctx context.Context, a *model.Asset) error {
	if err := s.primary.CreateAsset(ctx, a); err != nil {
		return err
	}
	s.cacheJSON(ctx, assetKey(a.ID), a)
	return nil
}

func (s *CachedStore) UpdateAssetPrice(ctx context.Context, id string, price decimal.Decimal) error {
	if err := s.primary.UpdateAssetPrice(ctx, id, price); err != nil {
		return err
	}
	s.rdb.Del(ctx, assetKey(id))
	return nil
}

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	if err := s.primary.InsertTransaction(ctx, tx); err != nil {
		return err
	}
	// A new trade changes the asset's net volume.
	s.rdb.Del(ctx, volumeKey(tx.AssetID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	data, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err == nil {
		var u model.User
		if json.Unmarshal(data, &u) == nil {
			return &u, nil
		}
	}

	u, err := s.primary.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, userKey(id), u)
	return u, nil
}

func (s *CachedStore) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	data, err := s.rdb.Get(ctx, assetKey(id)).Bytes()
	if err == nil {
		var a model.Asset
		if json.Unmarshal(data, &a) == nil {
			return &a, nil
		}
	}

	a, err := s.primary.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheJSON(ctx, assetKey(id), a)
	return a, nil
}

func (s *CachedStore) GetNetVolume(ctx context.Context, assetID string) (decimal.Decimal, error) {
	data, err := s.rdb.Get(ctx, volumeKey(assetID)).Result()
	if err == nil {
		if vol, derr := decimal.NewFromString(data); derr == nil {
			return vol, nil
		}
	}

	vol, err := s.primary.GetNetVolume(ctx, assetID)
	if err != nil {
		return decimal.Zero, err
	}

	s.rdb.Set(ctx, volumeKey(assetID), vol.String(), s.ttl)
	return vol, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.primary.ListAssets(ctx)
}

func (s *CachedStore) GetTransactionsByUserAsset(ctx context.Context, userID, assetID string) ([]model.Transaction, error) {
	return s.primary.GetTransactionsByUserAsset(ctx, userID, assetID)
}

func (s *CachedStore) GetTransactionsByUser(ctx context.Context, userID string) ([]model.Transaction, error) {
	return s.primary.GetTransactionsByUser(ctx, userID)
}

func (s *CachedStore) InsertPricePoint(ctx context.Context, p *model.PricePoint) error {
	return s.primary.InsertPricePoint(ctx, p)
}

func (s *CachedStore) GetPriceHistory(ctx context.Context, assetID string) ([]model.PricePoint, error) {
	return s.primary.GetPriceHistory(ctx, assetID)
}

// --- Cache helpers ---

func (s *CachedStore) cacheJSON(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func userKey(id string) string   { return fmt.Sprintf("user:%s", id) }
func assetKey(id string) string  { return fmt.Sprintf("asset:%s", id) }
func volumeKey(id string) string { return fmt.Sprintf("volume:%s", id) }
