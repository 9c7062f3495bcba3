package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/dentalops/clinic-platform/internal/config"
	"github.com/dentalops/clinic-platform/internal/directory"
	"github.com/dentalops/clinic-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, enrichment cache disabled", "error", err)
		return nil
	}
	return client
}

// BuildDirectory wires the identity/room collaborator clients, wrapping
// them in the redis read-through cache when a client is available.
func BuildDirectory(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) directory.Directory {
	base := directory.NewHTTPDirectory(cfg.IdentityServiceURL, cfg.RoomServiceURL, cfg.CollaboratorTimeout, logger)
	if redisClient == nil {
		return base
	}
	return directory.NewCached(base, redisClient, cfg.EnrichmentCacheTTL, logger)
}
