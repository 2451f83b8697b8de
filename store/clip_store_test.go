package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"clipshare/config"
	"clipshare/models"
)

func newTestStore(t *testing.T) *ClipStore {
	t.Helper()
	db, err := config.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	s := NewClipStore(db)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertClip(t *testing.T, s *ClipStore, code string, expires *time.Time) {
	t.Helper()
	clip := &models.Clip{
		ShortCode: models.ShortCode(code),
		Content:   "content of " + code,
		Expires:   models.Expiry(expires),
	}
	if err := s.Insert(context.Background(), clip); err != nil {
		t.Fatalf("insert %s: %v", code, err)
	}
}

func TestInsertAndGet(t *testing.T) {
	s := newTestStore(t)
	insertClip(t, s, "abc123", nil)

	clip, err := s.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if clip.Content != "content of abc123" || clip.ClipID == "" || clip.Hits != 0 {
		t.Errorf("unexpected clip %+v", clip)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "nope00")
	if !errors.Is(err, models.ErrClipNotFound) {
		t.Fatalf("expected ErrClipNotFound, got %v", err)
	}
}

func TestInsertDuplicateShortCode(t *testing.T) {
	s := newTestStore(t)
	insertClip(t, s, "abc123", nil)

	err := s.Insert(context.Background(), &models.Clip{ShortCode: "abc123", Content: "again"})
	if !errors.Is(err, models.ErrClipExists) {
		t.Fatalf("expected ErrClipExists, got %v", err)
	}
}

func TestIncrementHitsAppliesDeltas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertClip(t, s, "abc123", nil)

	if err := s.IncrementHits(ctx, "abc123", 3); err != nil {
		t.Fatalf("IncrementHits: %v", err)
	}
	if err := s.IncrementHits(ctx, "abc123", 4); err != nil {
		t.Fatalf("IncrementHits: %v", err)
	}
	clip, _ := s.Get(ctx, "abc123")
	if clip.Hits != 7 {
		t.Fatalf("expected 7 hits, got %d", clip.Hits)
	}
}

func TestIncrementHitsConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertClip(t, s, "abc123", nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.IncrementHits(ctx, "abc123", 1); err != nil {
				t.Errorf("IncrementHits: %v", err)
			}
		}()
	}
	wg.Wait()

	clip, _ := s.Get(ctx, "abc123")
	if clip.Hits != 50 {
		t.Fatalf("expected 50 hits, got %d", clip.Hits)
	}
}

func TestIncrementHitsUnknownCode(t *testing.T) {
	s := newTestStore(t)
	err := s.IncrementHits(context.Background(), "ghost1", 1)
	if !errors.Is(err, models.ErrClipNotFound) {
		t.Fatalf("expected ErrClipNotFound, got %v", err)
	}
}

func TestDeleteExpiredBoundary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	insertClip(t, s, "past01", &past)
	insertClip(t, s, "now001", &now)
	insertClip(t, s, "future", &future)
	insertClip(t, s, "never1", nil)

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted, got %d", n)
	}

	for _, code := range []models.ShortCode{"past01", "now001"} {
		if _, err := s.Get(ctx, code); !errors.Is(err, models.ErrClipNotFound) {
			t.Errorf("%s should be deleted, got %v", code, err)
		}
	}
	for _, code := range []models.ShortCode{"future", "never1"} {
		if _, err := s.Get(ctx, code); err != nil {
			t.Errorf("%s should remain: %v", code, err)
		}
	}
}

func TestDeleteExpiredCancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.DeleteExpired(ctx, time.Now()); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func ExampleClipStore_DeleteExpired() {
	db, err := config.OpenDB(":memory:")
	if err != nil {
		panic(err)
	}
	s := NewClipStore(db)
	defer s.Close()

	expired := time.Now().Add(-time.Minute)
	_ = s.Insert(context.Background(), &models.Clip{ShortCode: "old001", Content: "bye", Expires: models.Expiry(&expired)})

	n, _ := s.DeleteExpired(context.Background(), time.Now())
	fmt.Println(n)
	// Output: 1
}
