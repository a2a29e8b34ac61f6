package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cohort-api/internal/models"
	appErrors "github.com/noah-isme/cohort-api/pkg/errors"
)

type cacheRepoStub struct {
	getErr    error
	deleteErr error
	setTTL    time.Duration
	pattern   string
}

func (s *cacheRepoStub) Get(context.Context, string, interface{}) error { return s.getErr }

func (s *cacheRepoStub) Set(_ context.Context, _ string, _ interface{}, ttl time.Duration) error {
	s.setTTL = ttl
	return nil
}

func (s *cacheRepoStub) DeleteByPattern(_ context.Context, pattern string) error {
	s.pattern = pattern
	return s.deleteErr
}

func TestCatalogCacheNilIsAlwaysMissing(t *testing.T) {
	cache := NewCatalogCache(nil, nil, time.Minute, nil)
	require.Nil(t, cache)

	var dest []models.ProgramDetail
	assert.False(t, cache.Lookup(context.Background(), "programs:admin:all", &dest))
	cache.Store(context.Background(), "programs:admin:all", nil)
	assert.NoError(t, cache.Flush(context.Background()))
}

func TestCatalogCacheLookupCountsMissesAndFailures(t *testing.T) {
	metrics := NewMetricsService()
	repo := &cacheRepoStub{getErr: appErrors.ErrCacheMiss}
	cache := NewCatalogCache(repo, metrics, 0, nil)
	ctx := context.Background()
	var dest []models.ProgramDetail

	assert.False(t, cache.Lookup(ctx, "k", &dest))
	repo.getErr = errors.New("connection refused")
	assert.False(t, cache.Lookup(ctx, "k", &dest))
	repo.getErr = nil
	assert.True(t, cache.Lookup(ctx, "k", &dest))

	assert.InDelta(t, 1.0/3.0, metrics.Snapshot().CacheHitRatio, 0.001)
}

func TestCatalogCacheStoreAndFlush(t *testing.T) {
	repo := &cacheRepoStub{}
	cache := NewCatalogCache(repo, nil, 0, nil)
	ctx := context.Background()

	cache.Store(ctx, "programs:student:open", []models.ProgramDetail{})
	assert.Equal(t, time.Minute, repo.setTTL)

	require.NoError(t, cache.Flush(ctx))
	assert.Equal(t, "programs:*", repo.pattern)

	repo.deleteErr = errors.New("timeout")
	assert.ErrorContains(t, cache.Flush(ctx), "flush catalog cache")
}
