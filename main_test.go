package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"clipshare/config"
	"clipshare/models"
	"clipshare/pubsub"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		DBPath:          filepath.Join(t.TempDir(), "clips.db"),
		FlushInterval:   20 * time.Millisecond,
		SweepInterval:   20 * time.Millisecond,
		ShutdownTimeout: 5 * time.Second,
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- run(ctx, testConfig(t)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestStartFailsWithoutRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig(t)
	cfg.RedisURL = addr
	if _, err := start(context.Background(), cfg); err == nil {
		t.Fatal("expected start to fail when Redis is unreachable")
	}
}

func TestForwardedHitsReachStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = mr.Addr()

	ctx := context.Background()
	a, err := start(ctx, cfg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := a.store.Insert(ctx, &models.Clip{ShortCode: "abc123", Content: "hi"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	publisher := pubsub.NewHitPublisher(pubsub.NewPubSub(client))
	for i := 0; i < 3; i++ {
		if err := publisher.Publish(ctx, "abc123"); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		clip, err := a.store.Get(ctx, "abc123")
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if clip.Hits == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 3 hits, got %d", clip.Hits)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := a.shutdown(cfg.ShutdownTimeout); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSweeperRunsInDaemon(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	a, err := start(ctx, cfg)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer a.shutdown(cfg.ShutdownTimeout)

	past := time.Now().Add(-time.Second)
	if err := a.store.Insert(ctx, &models.Clip{ShortCode: "old000", Content: "bye", Expires: models.Expiry(&past)}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for a.sweeper.Swept() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired clip was not swept")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
