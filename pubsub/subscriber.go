package pubsub

import (
	"context"
	"sync"
	"time"

	"clipshare/logging"
	"clipshare/models"
)

// EventClipViewed is published once per successful clip view.
const EventClipViewed = "clip_viewed"

const publishTimeout = 2 * time.Second

// HitSink receives forwarded view events.
type HitSink interface {
	RecordHit(code models.ShortCode)
}

// HitPublisher turns clip views into clip_viewed events, so readers in other
// processes feed the daemon's hit batcher.
type HitPublisher struct {
	ps       *PubSub
	inflight sync.WaitGroup
}

func NewHitPublisher(ps *PubSub) *HitPublisher {
	return &HitPublisher{ps: ps}
}

// RecordHit publishes in the background and never blocks the caller.
func (h *HitPublisher) RecordHit(code models.ShortCode) {
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		if err := h.Publish(context.Background(), code); err != nil {
			logging.Capture(err, "publish %s for %s", EventClipViewed, code)
		}
	}()
}

// Wait blocks until every event handed to RecordHit has been published or failed.
func (h *HitPublisher) Wait() {
	h.inflight.Wait()
}

// Publish sends one clip_viewed event and waits for Redis to accept it.
func (h *HitPublisher) Publish(ctx context.Context, code models.ShortCode) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return h.ps.Publish(ctx, EventClipViewed, map[string]interface{}{"shortcode": string(code)})
}

// ForwardHits subscribes to clip_viewed and passes every short code to sink.
func ForwardHits(ctx context.Context, ps *PubSub, sink HitSink) (*Subscription, error) {
	return ps.Subscribe(ctx, EventClipViewed, func(data map[string]interface{}) {
		code, ok := data["shortcode"].(string)
		if !ok || code == "" {
			logging.DebugLogger.Printf("Ignoring %s event without a shortcode: %v", EventClipViewed, data)
			return
		}
		sink.RecordHit(models.ShortCode(code))
	})
}
