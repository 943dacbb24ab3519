package cli

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/testforge/cardforge/internal/registry"
	"github.com/testforge/cardforge/internal/resilience"
	"github.com/testforge/cardforge/internal/services/suite"
	"github.com/testforge/cardforge/internal/storage"
)

// redisClient connects to Redis. A failed ping is logged and yields nil:
// Redis-backed features are optional.
func (a *app) redisClient(ctx context.Context) *redis.Client {
	rc := a.cfg.Redis
	client := redis.NewClient(&redis.Options{
		Addr:        rc.Addr(),
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, rc.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		a.logger.Warn("Failed to connect to Redis, continuing without it", zap.String("addr", rc.Addr()), zap.Error(err))
		_ = client.Close()
		return nil
	}
	a.logger.Info("Connected to Redis", zap.String("addr", rc.Addr()))
	a.onClose(func() { _ = client.Close() })
	return client
}

// mirror returns the MinIO artifact mirror when enabled and reachable
func (a *app) mirror(ctx context.Context) storage.Mirror {
	s3 := a.cfg.S3
	if !s3.Enabled {
		return nil
	}
	m, err := storage.NewMinIOMirror(storage.MinIOConfig{
		Endpoint:        s3.Endpoint,
		AccessKeyID:     s3.AccessKeyID,
		SecretAccessKey: s3.SecretAccessKey,
		UseSSL:          s3.UseSSL,
		BucketName:      s3.Bucket,
	})
	if err != nil {
		a.logger.Warn("Failed to create artifact mirror", zap.Error(err))
		return nil
	}
	if err := m.EnsureBucket(ctx); err != nil {
		a.logger.Warn("Artifact mirror unavailable", zap.String("bucket", s3.Bucket), zap.Error(err))
		return nil
	}
	a.logger.Info("Mirroring artifacts", zap.String("bucket", s3.Bucket))

	cfg := resilience.DefaultConfig("s3")
	cfg.OnStateChange = func(name string, from, to resilience.State) {
		a.logger.Warn("Artifact mirror circuit changed", zap.String("from", from.String()), zap.String("to", to.String()))
	}
	return storage.NewGuardedMirror(m, resilience.NewBreaker(cfg))
}

// registry builds the variant registry from the configured sources and
// loads it once. A failed load keeps the builtin table.
func (a *app) registry(ctx context.Context, client *redis.Client) *registry.Registry {
	var sources []registry.Source
	if a.cfg.Registry.File != "" {
		sources = append(sources, registry.FileSource{Path: a.cfg.Registry.File})
	}
	if a.cfg.Registry.UseRedis && client != nil {
		sources = append(sources, registry.NewRedisSource(client))
	}

	reg := registry.New(a.logger.Named("registry"), sources...)
	if len(sources) > 0 {
		if err := reg.Reload(ctx); err != nil {
			a.logger.Warn("Variant registry reload failed, using builtin variants", zap.Error(err))
		}
	}
	return reg
}

// service wires the operations. client may be nil.
func (a *app) service(ctx context.Context, client *redis.Client) *suite.Service {
	deps := a.deps
	if deps.Registry == nil {
		deps.Registry = a.registry(ctx, client)
	}
	if deps.Mirror == nil {
		deps.Mirror = a.mirror(ctx)
	}
	return suite.NewService(a.cfg, deps, a.logger)
}

// localService connects to Redis only when the registry needs it
func (a *app) localService(ctx context.Context) *suite.Service {
	var client *redis.Client
	if a.cfg.Registry.UseRedis && a.deps.Registry == nil {
		client = a.redisClient(ctx)
	}
	return a.service(ctx, client)
}
