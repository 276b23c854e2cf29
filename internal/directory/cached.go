package directory

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/kirychukyurii/faculty-scheduler/internal/cache"
	"github.com/kirychukyurii/faculty-scheduler/internal/model"
)

// Cached wraps a directory and quota provider with a TTL cache.
// Only successful answers are cached; failures always reach the caller.
type Cached struct {
	directory FacultyDirectory
	quota     QuotaProvider
	cache     cache.Cache
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCached creates a caching decorator; either inner capability may be nil
func NewCached(directory FacultyDirectory, quota QuotaProvider, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	return &Cached{
		directory: directory,
		quota:     quota,
		cache:     c,
		ttl:       ttl,
		logger:    logger,
	}
}

// ResolveFacultyMembership returns cached memberships or asks the directory
func (c *Cached) ResolveFacultyMembership(ctx context.Context, userID string) ([]string, error) {
	key := cache.Key("faculty", userID)

	if faculties, ok := cache.Lookup[[]string](c.cache, key); ok {
		c.logger.Debug("faculty membership retrieved from cache",
			slog.String("user", userID),
		)
		return slices.Clone(faculties), nil
	}

	faculties, err := c.directory.ResolveFacultyMembership(ctx, userID)
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, slices.Clone(faculties), c.ttl)
	return faculties, nil
}

// GetFacultyResource returns a cached quota or asks the provider
func (c *Cached) GetFacultyResource(ctx context.Context, faculty string, date time.Time) (model.Resources, error) {
	key := cache.Key("quota", faculty, model.DayKey(date))

	if quota, ok := cache.Lookup[model.Resources](c.cache, key); ok {
		c.logger.Debug("faculty quota retrieved from cache",
			slog.String("faculty", faculty),
			slog.String("date", model.DayKey(date)),
		)
		return quota, nil
	}

	quota, err := c.quota.GetFacultyResource(ctx, faculty, date)
	if err != nil {
		return model.Resources{}, err
	}

	c.cache.Set(key, quota, c.ttl)
	return quota, nil
}

var (
	_ FacultyDirectory = (*Cached)(nil)
	_ QuotaProvider    = (*Cached)(nil)
)
