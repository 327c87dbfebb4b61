package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/kauppa/kauppa-sub000/internal/cache"
	"github.com/kauppa/kauppa-sub000/internal/domain"
)

// CachedStore serves order and refund reads from a cache in front of another
// Store. Writes go to the underlying store first and then drop the cached
// order. A version conflict also drops it, since the cached snapshot may be
// one a concurrent read filled before the winning write. Cache failures are
// logged and never fail the request.
type CachedStore struct {
	Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedStore(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedStore {
	return &CachedStore{Store: store, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	key := s.cache.GenerateKey("order", id)
	var order domain.Order
	if s.lookup(ctx, key, &order) {
		return &order, nil
	}

	stored, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, stored, s.ttl)
	return stored, nil
}

func (s *CachedStore) Update(ctx context.Context, order *domain.Order) error {
	err := s.Store.Update(ctx, order)
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return err
	}
	s.evict(ctx, order.ID)
	return err
}

func (s *CachedStore) Delete(ctx context.Context, id string) error {
	if err := s.Store.Delete(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

func (s *CachedStore) SaveRefund(ctx context.Context, order *domain.Order, refund *domain.Refund) error {
	err := s.Store.SaveRefund(ctx, order, refund)
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return err
	}
	s.evict(ctx, order.ID)
	return err
}

// GetRefund caches refunds without expiry since they are never mutated.
func (s *CachedStore) GetRefund(ctx context.Context, id string) (*domain.Refund, error) {
	key := s.cache.GenerateKey("refund", id)
	var refund domain.Refund
	if s.lookup(ctx, key, &refund) {
		return &refund, nil
	}

	stored, err := s.Store.GetRefund(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, stored, 0)
	return stored, nil
}

func (s *CachedStore) lookup(ctx context.Context, key string, dest any) bool {
	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "cache read failed", "error", err, "key", key)
		return false
	}
	if raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		s.logger.WarnContext(ctx, "cache entry is corrupt", "error", err, "key", key)
		return false
	}
	return true
}

func (s *CachedStore) fill(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode cache entry", "error", err, "key", key)
		return
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		s.logger.WarnContext(ctx, "cache write failed", "error", err, "key", key)
	}
}

func (s *CachedStore) evict(ctx context.Context, id string) {
	key := s.cache.GenerateKey("order", id)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "cache eviction failed", "error", err, "key", key)
	}
}
