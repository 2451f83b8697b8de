package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrClipNotFound     = errors.New("clip not found")
	ErrClipExpired      = errors.New("clip has expired")
	ErrClipExists       = errors.New("clip already exists")
	ErrPasswordRequired = errors.New("password required")
	ErrEmptyContent     = errors.New("clip content is empty")
)

// ShortCode identifies a clip. Validation happens before a value reaches this package.
type ShortCode string

func (s ShortCode) String() string { return string(s) }

// Clip is a shared piece of text. Posted and Expires are unix seconds so that
// expiry comparisons stay integer comparisons inside SQLite.
type Clip struct {
	ClipID    string    `gorm:"primaryKey" json:"clip_id"`
	ShortCode ShortCode `gorm:"uniqueIndex;not null" json:"shortcode"`
	Content   string    `gorm:"not null" json:"content"`
	Title     *string   `json:"title,omitempty"`
	Posted    int64     `gorm:"not null" json:"posted"`
	Expires   *int64    `gorm:"index" json:"expires,omitempty"`
	Password  *string   `json:"password,omitempty"`
	Hits      int64     `gorm:"not null;default:0" json:"hits"`
}

// BeforeCreate assigns a clip id and posting time when the caller left them empty.
func (c *Clip) BeforeCreate(tx *gorm.DB) error {
	if c.ClipID == "" {
		c.ClipID = uuid.NewString()
	}
	if c.Posted == 0 {
		c.Posted = time.Now().Unix()
	}
	return nil
}

// ExpiresAt returns the expiry time, if any.
func (c *Clip) ExpiresAt() (time.Time, bool) {
	if c.Expires == nil {
		return time.Time{}, false
	}
	return time.Unix(*c.Expires, 0), true
}

// IsExpired reports whether the clip expired at or before now.
func (c *Clip) IsExpired(now time.Time) bool {
	return c.Expires != nil && *c.Expires <= now.Unix()
}

// HasPassword reports whether viewing the clip needs a password.
func (c *Clip) HasPassword() bool {
	return c.Password != nil && *c.Password != ""
}

// Expiry converts an optional time into the stored representation.
func Expiry(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.Unix()
	return &v
}
