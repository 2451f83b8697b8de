package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipshare/batcher"
	"clipshare/cache"
	"clipshare/config"
	"clipshare/logging"
	"clipshare/maintenance"
	"clipshare/pubsub"
	"clipshare/store"
	"clipshare/utils"

	"github.com/dustin/go-humanize"
	"github.com/getsentry/sentry-go"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 5
	connectDelay    = 200 * time.Millisecond
)

func main() {
	cfg := config.FromEnv()
	if err := logging.Init(cfg.LogDir); err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 1.0,
		}); err != nil {
			logging.ErrorLogger.Printf("Sentry initialization failed: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg)
	stop()

	if err != nil {
		logging.Capture(err, "clipshare stopped")
	}
	sentry.Flush(2 * time.Second)
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

// run starts every background component and blocks until ctx is cancelled, then
// shuts them down within cfg.ShutdownTimeout.
func run(ctx context.Context, cfg config.Config) error {
	a, err := start(ctx, cfg)
	if err != nil {
		return err
	}
	<-ctx.Done()
	logging.AuditLogger.Printf("Shutting down, waiting up to %s", cfg.ShutdownTimeout)
	return a.shutdown(cfg.ShutdownTimeout)
}

type app struct {
	store   *store.ClipStore
	batcher *batcher.HitBatcher
	sweeper *maintenance.Sweeper
	redis   *redis.Client
	sub     *pubsub.Subscription
}

func start(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{}

	err := utils.RetryWithExponentialBackoff(func() error {
		db, err := config.OpenDB(cfg.DBPath)
		if err != nil {
			return err
		}
		a.store = store.NewClipStore(db)
		return nil
	}, connectAttempts, connectDelay)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}

	a.batcher = batcher.NewHitBatcher(a.store, cfg.FlushInterval)
	a.sweeper = maintenance.NewSweeper(a.store, cfg.SweepInterval)

	// Components are stopped by shutdown, which needs them alive after ctx is done.
	runCtx := context.WithoutCancel(ctx)

	if cfg.RedisURL != "" {
		err := utils.RetryWithExponentialBackoff(func() error {
			client, err := cache.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
			a.redis = client
			return err
		}, connectAttempts, connectDelay)
		if err != nil {
			_ = a.store.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisURL, err)
		}
		a.sub, err = pubsub.ForwardHits(runCtx, pubsub.NewPubSub(a.redis), a.batcher)
		if err != nil {
			_ = a.redis.Close()
			_ = a.store.Close()
			return nil, fmt.Errorf("subscribe to %s: %w", pubsub.Channel, err)
		}
	} else {
		logging.AuditLogger.Printf("REDIS_URL not set, %s events will not be received", pubsub.EventClipViewed)
	}

	if err := a.batcher.Start(runCtx); err != nil {
		return nil, err
	}
	if err := a.sweeper.Start(runCtx); err != nil {
		return nil, err
	}
	logging.AuditLogger.Printf("clipshare running: db=%s flush=%s sweep=%s",
		cfg.DBPath, cfg.FlushInterval, cfg.SweepInterval)
	return a, nil
}

// shutdown stops hit forwarding first so the final flush sees every forwarded hit,
// then stops the batcher and sweeper together.
func (a *app) shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if a.sub != nil {
		if err := a.sub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscription: %w", err))
		}
	}

	batchErr := make(chan error, 1)
	go func() { batchErr <- a.batcher.Shutdown(ctx) }()
	if err := a.sweeper.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := <-batchErr; err != nil {
		errs = append(errs, fmt.Errorf("hit batcher: %w", err))
	}

	logging.AuditLogger.Printf("Stopped: %s hits dropped, %s clips swept",
		humanize.Comma(int64(a.batcher.Dropped())), humanize.Comma(a.sweeper.Swept()))

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
