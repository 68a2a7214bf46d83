package cached

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"newspaper/internal/adapter/cache"
	domain "newspaper/internal/domain/user"
	"newspaper/internal/usecase/user"
)

// UserRepository decorates a persistent user repository with a read-through
// cache on GetByID. Session authentication looks a user up on every
// request, which is the hot path this serves.
type UserRepository struct {
	user.Repository
	cache cache.UserCache
	log   *zap.Logger
	group singleflight.Group

	mu       sync.Mutex
	versions map[int64]uint64 // bumped on every invalidation
}

// NewUserRepository wraps dbRepo. A nil cache disables caching.
func NewUserRepository(dbRepo user.Repository, c cache.UserCache, log *zap.Logger) *UserRepository {
	return &UserRepository{
		Repository: dbRepo,
		cache:      c,
		log:        log,
		versions:   make(map[int64]uint64),
	}
}

// GetByID retrieves a user by ID using the cache-aside pattern.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if r.cache == nil {
		return r.Repository.GetByID(ctx, id)
	}

	cachedUser, err := r.cache.Get(ctx, id)
	if err != nil {
		r.log.Warn("cache get error, falling back to database", zap.Int64("id", id), zap.Error(err))
	} else if cachedUser != nil {
		return cachedUser, nil
	}

	// collapse concurrent misses for the same id into one query
	result, err, _ := r.group.Do(flightKey(id), func() (any, error) {
		version := r.version(id)
		u, err := r.Repository.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		// a write that landed during the load makes u stale
		if r.version(id) != version {
			return u, nil
		}
		if err := r.cache.Set(ctx, u); err != nil {
			r.log.Warn("failed to cache user", zap.Int64("id", id), zap.Error(err))
		}
		if r.version(id) != version {
			r.deleteCached(ctx, id)
		}
		return u, nil
	})
	if err != nil {
		return nil, err
	}

	return result.(*domain.User), nil
}

// UpdatePassword updates the password and invalidates the cached entry.
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if err := r.Repository.UpdatePassword(ctx, id, passwordHash); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

// UpdateLastLogin updates the login stamp and invalidates the cached entry.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	if err := r.Repository.UpdateLastLogin(ctx, id, at); err != nil {
		return err
	}
	r.invalidate(ctx, id)
	return nil
}

func (r *UserRepository) invalidate(ctx context.Context, id int64) {
	if r.cache == nil {
		return
	}
	r.mu.Lock()
	r.versions[id]++
	r.mu.Unlock()
	r.group.Forget(flightKey(id))
	r.deleteCached(ctx, id)
}

func (r *UserRepository) deleteCached(ctx context.Context, id int64) {
	if err := r.cache.Delete(ctx, id); err != nil {
		r.log.Warn("failed to invalidate cached user", zap.Int64("id", id), zap.Error(err))
	}
}

func (r *UserRepository) version(id int64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.versions[id]
}

func flightKey(id int64) string {
	return fmt.Sprintf("user:%d", id)
}
