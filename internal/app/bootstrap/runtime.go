package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/patient-portal/internal/config"
	"github.com/wolfman30/patient-portal/internal/scheduling"
	"github.com/wolfman30/patient-portal/pkg/logging"
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
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// ConnectPostgresPool opens a pgx pool, returning nil when databaseURL is empty.
func ConnectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

// BuildRepository picks the appointment repository named by cfg.StoreBackend.
// The redis backend is seeded on first use.
func BuildRepository(ctx context.Context, cfg *appconfig.Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *logging.Logger) (scheduling.Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	switch cfg.StoreBackend {
	case "", "memory":
		logger.Info("appointment store: memory")
		return scheduling.NewSeededMemoryRepository(), nil
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("bootstrap: postgres store requires DATABASE_URL")
		}
		logger.Info("appointment store: postgres")
		return scheduling.NewPostgresRepository(pool), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("bootstrap: redis store requires a reachable REDIS_ADDR")
		}
		repo := scheduling.NewRedisRepository(redisClient, cfg.RedisKeyPrefix)
		if err := repo.Seed(ctx, scheduling.SeedAppointments(), scheduling.SeedWaitingList()); err != nil {
			return nil, fmt.Errorf("bootstrap: seed redis store: %w", err)
		}
		logger.Info("appointment store: redis", "prefix", cfg.RedisKeyPrefix)
		return repo, nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// StoreLatency converts the configured delays.
func StoreLatency(cfg *appconfig.Config) scheduling.Latency {
	return scheduling.Latency{
		List:     cfg.ListLatency,
		Schedule: cfg.ScheduleLatency,
		Cancel:   cfg.CancelLatency,
	}
}
