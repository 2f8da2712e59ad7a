package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/tutoring-ledger-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Key(parts ...string) string
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	// generation advances on every invalidation.
	generation atomic.Uint64
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Key builds a namespaced cache key.
func (s *CacheService) Key(parts ...string) string {
	if s == nil || s.repo == nil {
		return ""
	}
	return s.repo.Key(parts...)
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	s.metrics.RecordCacheOperation(true, duration)
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// remember returns the cached value for key when present. Otherwise it runs
// load and caches the result, unless an invalidation happened while load was
// running: that result may predate the write and is returned uncached.
// Cache failures only cost a reload.
func remember[T any](ctx context.Context, cache *CacheService, key string, ttl time.Duration, load func() (T, error)) (T, bool, error) {
	var cached T
	if hit, err := cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}
	gen := cache.currentGeneration()
	value, err := load()
	if err != nil {
		return value, false, err
	}
	if cache.currentGeneration() != gen {
		cache.logger.Debug("cache fill skipped after invalidation", zap.String("key", key))
		return value, false, nil
	}
	_ = cache.Set(ctx, key, value, ttl)
	return value, false, nil
}

func (s *CacheService) currentGeneration() uint64 {
	if s == nil {
		return 0
	}
	return s.generation.Load()
}

// Invalidate removes cached values for the provided key parts pattern.
func (s *CacheService) Invalidate(ctx context.Context, parts ...string) error {
	if s != nil {
		s.generation.Add(1)
	}
	if !s.Enabled() {
		return nil
	}
	pattern := s.repo.Key(append(parts, "*")...)
	count, err := s.repo.DeleteByPattern(ctx, pattern)
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	s.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", count))
	return nil
}
