package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dentalops/clinic-platform/pkg/logging"
)

// Cached wraps a Directory with a redis read-through cache so bulk closures
// do not hammer the identity/room services with repeated name lookups.
// Cache failures degrade to direct lookups.
type Cached struct {
	next   Directory
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCached creates a caching decorator around a directory.
func NewCached(next Directory, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Cached {
	if next == nil {
		panic("directory: wrapped directory required")
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cached{next: next, redis: redisClient, ttl: ttl, logger: logger.Component("directory-cache")}
}

func (c *Cached) GetUserByID(ctx context.Context, id uuid.UUID) (*User, error) {
	key := fmt.Sprintf("directory:user:%s", id)
	var user User
	if c.fetch(ctx, key, &user) {
		return &user, nil
	}
	fresh, err := c.next.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, fresh)
	return fresh, nil
}

func (c *Cached) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	key := fmt.Sprintf("directory:room:%s", id)
	var room Room
	if c.fetch(ctx, key, &room) {
		return &room, nil
	}
	fresh, err := c.next.GetRoomByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.put(ctx, key, fresh)
	return fresh, nil
}

func (c *Cached) fetch(ctx context.Context, key string, out any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		c.logger.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *Cached) put(ctx context.Context, key string, value any) {
	if c.redis == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}
