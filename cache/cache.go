package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clipshare/models"

	"github.com/allegro/bigcache"
)

// ErrMiss is returned by Get when the clip is not cached.
var ErrMiss = errors.New("cache miss")

// DefaultTTL bounds how long a clip stays cached; a clip expiring sooner leaves sooner.
const DefaultTTL = 10 * time.Minute

// ClipCache is the read-through cache in front of the clip store.
type ClipCache interface {
	Set(ctx context.Context, clip *models.Clip) error
	Get(ctx context.Context, code models.ShortCode) (*models.Clip, error)
	Delete(ctx context.Context, code models.ShortCode) error
	Close() error
}

// ttlFor returns how long clip may be cached, or 0 when it should not be cached at all.
func ttlFor(clip *models.Clip, now time.Time) time.Duration {
	expires, ok := clip.ExpiresAt()
	if !ok {
		return DefaultTTL
	}
	left := expires.Sub(now)
	if left <= 0 {
		return 0
	}
	if left < DefaultTTL {
		return left
	}
	return DefaultTTL
}

func key(code models.ShortCode) string {
	return "clip:" + string(code)
}

// BigCacheStore is an in-process ClipCache used when Redis is not configured.
// Entries live for DefaultTTL; clips that expire earlier are evicted on read.
type BigCacheStore struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

func NewBigCacheStore() (*BigCacheStore, error) {
	config := bigcache.Config{
		Shards:           1024,
		LifeWindow:       DefaultTTL,
		CleanWindow:      5 * time.Minute,
		MaxEntrySize:     500,
		HardMaxCacheSize: 8192,
		Verbose:          false,
	}
	bc, err := bigcache.NewBigCache(config)
	if err != nil {
		return nil, err
	}
	return &BigCacheStore{cache: bc, now: time.Now}, nil
}

func (b *BigCacheStore) Set(_ context.Context, clip *models.Clip) error {
	if ttlFor(clip, b.now()) == 0 {
		return nil
	}
	data, err := json.Marshal(clip)
	if err != nil {
		return err
	}
	return b.cache.Set(key(clip.ShortCode), data)
}

func (b *BigCacheStore) Get(_ context.Context, code models.ShortCode) (*models.Clip, error) {
	data, err := b.cache.Get(key(code))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMiss, err)
	}
	var clip models.Clip
	if err := json.Unmarshal(data, &clip); err != nil {
		return nil, err
	}
	if clip.IsExpired(b.now()) {
		_ = b.cache.Delete(key(code))
		return nil, ErrMiss
	}
	return &clip, nil
}

func (b *BigCacheStore) Delete(_ context.Context, code models.ShortCode) error {
	// bigcache only fails a delete for a missing entry, which is the desired end state.
	_ = b.cache.Delete(key(code))
	return nil
}

// Close is a no-op; the cache is released with the process.
func (b *BigCacheStore) Close() error {
	return nil
}
