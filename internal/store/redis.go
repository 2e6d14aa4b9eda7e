package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FinnSolly2/TradeQuest1/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for accounts. Writes go to the primary store and then refresh the
// cache; reads check Redis first then fall back to the primary.
//
// A read-through fill only lands when the key is absent (SET NX), so a
// reader that loaded an old row from the primary cannot overwrite the
// copy a concurrent PutAccount just wrote. The cache is still only for
// display reads: GetAccountForUpdate always goes to the primary.
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

// --- Write-through (write to primary, then refresh cache) ---

func (s *CachedStore) PutAccount(ctx context.Context, a *model.Account) error {
	if err := s.primary.PutAccount(ctx, a); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err == nil {
		err = s.rdb.Set(ctx, accountKey(a.UserID), data, s.ttl).Err()
	}
	if err != nil {
		// Drop the entry instead; the next read re-populates.
		slog.Warn("cache refresh failed", "user_id", a.UserID, "err", err)
		if err := s.rdb.Del(ctx, accountKey(a.UserID)).Err(); err != nil {
			slog.Warn("cache invalidation failed", "user_id", a.UserID, "err", err)
		}
	}
	return nil
}

func (s *CachedStore) InsertTrade(ctx context.Context, t *model.Trade) error {
	return s.primary.InsertTrade(ctx, t)
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, userID string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(userID)).Bytes()
	if err == nil {
		var a model.Account
		if json.Unmarshal(data, &a) == nil {
			if a.Portfolio == nil {
				a.Portfolio = make(map[string]model.Position)
			}
			return &a, nil
		}
	}

	// Cache miss: read from primary.
	a, err := s.primary.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(a); err == nil {
		s.rdb.SetNX(ctx, accountKey(userID), data, s.ttl)
	}
	return a, nil
}

func (s *CachedStore) GetAccountForUpdate(ctx context.Context, userID string) (*model.Account, error) {
	return s.primary.GetAccountForUpdate(ctx, userID)
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ScanAccounts(ctx context.Context) ([]model.Account, error) {
	return s.primary.ScanAccounts(ctx)
}

func (s *CachedStore) TradesByUser(ctx context.Context, userID string, limit int) ([]model.Trade, error) {
	return s.primary.TradesByUser(ctx, userID, limit)
}

// RedisObjects implements Objects on plain Redis string keys.
type RedisObjects struct {
	rdb *redis.Client
}

// NewRedisObjects creates a Redis-backed blob store.
func NewRedisObjects(rdb *redis.Client) *RedisObjects {
	return &RedisObjects{rdb: rdb}
}

func (o *RedisObjects) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := o.rdb.Get(ctx, objectKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("object %s: %w", key, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get object %s: %w", model.ErrPersistence, key, err)
	}
	return data, nil
}

func (o *RedisObjects) Put(ctx context.Context, key string, data []byte) error {
	if err := o.rdb.Set(ctx, objectKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: put object %s: %w", model.ErrPersistence, key, err)
	}
	return nil
}

// --- Key helpers ---

func accountKey(uid string) string { return fmt.Sprintf("account:%s", uid) }
func objectKey(key string) string  { return fmt.Sprintf("object:%s", key) }
