// Package service is the clip read and write path shared by the daemon and clipctl.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clipshare/cache"
	"clipshare/logging"
	"clipshare/models"
	"clipshare/utils"
)

const (
	// Passwords shorter than this are treated as no password.
	minPasswordLength = 8
	maxCodeAttempts   = 5
)

// HitRecorder receives one call per successful view. Implementations must not block.
type HitRecorder interface {
	RecordHit(code models.ShortCode)
}

type ClipStore interface {
	Insert(ctx context.Context, clip *models.Clip) error
	Get(ctx context.Context, code models.ShortCode) (*models.Clip, error)
}

type NewClip struct {
	Content  string
	Title    string
	Expires  *time.Time
	Password string
}

type GetClip struct {
	ShortCode models.ShortCode
	Password  string
}

type ClipService struct {
	store   ClipStore
	cache   cache.ClipCache
	hits    HitRecorder
	now     func() time.Time
	newCode func() models.ShortCode
}

// NewClipService wires the read path. clipCache may be nil.
func NewClipService(store ClipStore, clipCache cache.ClipCache, hits HitRecorder) *ClipService {
	return &ClipService{
		store: store,
		cache: clipCache,
		hits:  hits,
		now:   time.Now,
		newCode: func() models.ShortCode {
			return models.ShortCode(utils.GenerateShortCode(utils.ShortCodeLength))
		},
	}
}

// New stores a clip under a freshly generated short code.
func (s *ClipService) New(ctx context.Context, req NewClip) (*models.Clip, error) {
	if req.Content == "" {
		return nil, models.ErrEmptyContent
	}
	clip := &models.Clip{
		Content:  req.Content,
		Title:    optional(strings.TrimSpace(req.Title)),
		Expires:  models.Expiry(req.Expires),
		Password: normalizePassword(req.Password),
	}

	for attempt := 1; ; attempt++ {
		clip.ShortCode = s.newCode()
		err := s.store.Insert(ctx, clip)
		if err == nil {
			break
		}
		if !errors.Is(err, models.ErrClipExists) || attempt == maxCodeAttempts {
			return nil, fmt.Errorf("create clip: %w", err)
		}
		logging.DebugLogger.Printf("Short code %s taken, generating another", clip.ShortCode)
	}
	logging.AuditLogger.Printf("Created clip %s (%d bytes)", clip.ShortCode, len(clip.Content))
	return clip, nil
}

// Get returns a viewable clip and records a hit for it. Expired clips that the
// sweeper has not removed yet are rejected with models.ErrClipExpired.
func (s *ClipService) Get(ctx context.Context, req GetClip) (*models.Clip, error) {
	clip, cached, err := s.lookup(ctx, req.ShortCode)
	if err != nil {
		return nil, err
	}
	if clip.IsExpired(s.now()) {
		if cached {
			_ = s.cache.Delete(ctx, req.ShortCode)
		}
		return nil, fmt.Errorf("%w: %s", models.ErrClipExpired, req.ShortCode)
	}
	if clip.HasPassword() && *clip.Password != strings.TrimSpace(req.Password) {
		return nil, fmt.Errorf("%w: %s", models.ErrPasswordRequired, req.ShortCode)
	}
	s.hits.RecordHit(req.ShortCode)
	return clip, nil
}

func (s *ClipService) lookup(ctx context.Context, code models.ShortCode) (*models.Clip, bool, error) {
	if s.cache != nil {
		clip, err := s.cache.Get(ctx, code)
		if err == nil {
			logging.DebugLogger.Printf("X-Cache: HIT %s", code)
			return clip, true, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			logging.Capture(err, "cache lookup for %s", code)
		}
		logging.DebugLogger.Printf("X-Cache: MISS %s", code)
	}

	clip, err := s.store.Get(ctx, code)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, clip); err != nil {
			logging.Capture(err, "cache store for %s", code)
		}
	}
	return clip, false, nil
}

func normalizePassword(p string) *string {
	p = strings.TrimSpace(p)
	if len(p) < minPasswordLength {
		return nil
	}
	return &p
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
