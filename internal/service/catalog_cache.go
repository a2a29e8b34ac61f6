package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

const catalogKeyPattern = "programs:*"

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CatalogCache holds rendered program listings per caller scope. A nil
// *CatalogCache is a valid, always-missing cache.
type CatalogCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewCatalogCache returns nil when repo is nil so callers can wire it unconditionally.
func NewCatalogCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if repo == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// CatalogKey scopes a listing by role, and by mentor for mentor listings,
// since their catalogue depends on assignments.
func CatalogKey(caller *models.JWTClaims, status models.ProgramStatus) string {
	scope := "all"
	if status != "" {
		scope = string(status)
	}
	if caller.Role == models.RoleMentor {
		return fmt.Sprintf("programs:mentor:%s:%s", caller.UserID, scope)
	}
	return fmt.Sprintf("programs:%s:%s", caller.Role, scope)
}

// Lookup fills dest and reports a hit. Backend failures are logged and count as misses.
func (c *CatalogCache) Lookup(ctx context.Context, key string, dest *[]models.ProgramDetail) bool {
	if c == nil {
		return false
	}
	start := time.Now()
	err := c.repo.Get(ctx, key, dest)
	c.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	}
	return err == nil
}

// Store caches a listing for the configured TTL.
func (c *CatalogCache) Store(ctx context.Context, key string, programs []models.ProgramDetail) {
	if c == nil {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, key, programs, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Flush drops every cached listing. Any program or enrollment change calls it.
func (c *CatalogCache) Flush(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.repo.DeleteByPattern(ctx, catalogKeyPattern); err != nil {
		return fmt.Errorf("flush catalog cache: %w", err)
	}
	return nil
}
