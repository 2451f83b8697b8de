package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clipshare/batcher"
	"clipshare/cache"
	"clipshare/config"
	"clipshare/pubsub"
	"clipshare/service"
	"clipshare/store"

	"github.com/maruel/subcommands"
	"github.com/redis/go-redis/v9"
)

const closeTimeout = 10 * time.Second

// baseRun holds what every clipctl command needs.
type baseRun struct {
	subcommands.CommandRunBase
}

// report prints err and returns the process exit code.
func (r *baseRun) report(a subcommands.Application, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(a.GetErr(), "%s: %v\n", a.GetName(), err)
	return 1
}

// backend is the set of connections one clipctl invocation uses. With Redis
// configured, views are published for the daemon to count; without it they go
// through a local hit batcher that is flushed when the backend closes.
type backend struct {
	store     *store.ClipStore
	redis     *redis.Client
	publisher *pubsub.HitPublisher
	local     *batcher.HitBatcher
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	db, err := config.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	b := &backend{store: store.NewClipStore(db)}

	if cfg.RedisURL == "" {
		b.local = batcher.NewHitBatcher(b.store, cfg.FlushInterval)
		return b, nil
	}
	b.redis, err = cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = b.store.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisURL, err)
	}
	b.publisher = pubsub.NewHitPublisher(pubsub.NewPubSub(b.redis))
	return b, nil
}

func (b *backend) hits() service.HitRecorder {
	if b.publisher != nil {
		return b.publisher
	}
	return b.local
}

func (b *backend) clipService() (*service.ClipService, error) {
	var clipCache cache.ClipCache
	if b.redis != nil {
		clipCache = cache.NewRedisStore(b.redis)
	} else {
		bc, err := cache.NewBigCacheStore()
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
		clipCache = bc
	}
	return service.NewClipService(b.store, clipCache, b.hits()), nil
}

// close delivers every recorded hit, then releases the connections.
func (b *backend) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if b.local != nil {
		if err := b.local.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("write hits: %w", err))
		}
	}
	if b.publisher != nil {
		b.publisher.Wait()
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
