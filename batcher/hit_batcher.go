package batcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"clipshare/lifecycle"
	"clipshare/logging"
	"clipshare/models"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFlushInterval = 5 * time.Second

	inboxSize        = 1024
	flushParallelism = 8
	// finalFlushTimeout bounds the last flush when the runtime context is cancelled
	// instead of Shutdown being called.
	finalFlushTimeout = 10 * time.Second
)

var ErrStopped = errors.New("hit batcher stopped")

// HitStore is the part of the clip store the batcher writes to.
type HitStore interface {
	IncrementHits(ctx context.Context, code models.ShortCode, delta uint64) error
}

// HitBatcher coalesces clip views into periodic per-code increments.
//
// Only the batcher's goroutine touches pending; producers reach it through the inbox.
// A failed write keeps its delta for the next flush, so a hit is written at least once.
type HitBatcher struct {
	store         HitStore
	flushInterval time.Duration

	inbox    chan message
	stop     chan context.Context
	done     chan struct{}
	state    lifecycle.Tracker
	dropped  atomic.Uint64
	finalErr error

	pending AggregatedCount
}

// NewHitBatcher returns a batcher that writes to store every flushInterval once started.
// A non-positive interval falls back to DefaultFlushInterval.
func NewHitBatcher(store HitStore, flushInterval time.Duration) *HitBatcher {
	if flushInterval <= 0 {
		flushInterval = DefaultFlushInterval
	}
	return &HitBatcher{
		store:         store,
		flushInterval: flushInterval,
		inbox:         make(chan message, inboxSize),
		stop:          make(chan context.Context, 1),
		done:          make(chan struct{}),
		pending:       make(AggregatedCount),
	}
}

// Start begins the background goroutine. Cancelling ctx has the same effect as
// Shutdown, with a bounded final flush.
func (b *HitBatcher) Start(ctx context.Context) error {
	if err := b.state.Transition(lifecycle.Created, lifecycle.Running); err != nil {
		return fmt.Errorf("start hit batcher: %w", err)
	}
	go b.run(ctx)
	return nil
}

// RecordHit counts one view of code. It never blocks.
func (b *HitBatcher) RecordHit(code models.ShortCode) {
	b.RecordHits(code, 1)
}

// RecordHits counts n views of code. It never blocks: when the inbox is full or the
// batcher is shutting down the event is dropped.
func (b *HitBatcher) RecordHits(code models.ShortCode, n uint32) {
	if n == 0 {
		return
	}
	if !b.state.Accepting() {
		b.drop(code, n, "batcher is "+b.state.Load().String())
		return
	}
	select {
	case b.inbox <- message{kind: msgHit, hit: HitEvent{ShortCode: code, Delta: n}}:
	default:
		b.drop(code, n, "inbox full")
	}
}

// Commit flushes immediately and returns the result of that flush.
// Unlike hits, a commit waits for room in the inbox.
func (b *HitBatcher) Commit(ctx context.Context) error {
	if !b.state.Accepting() {
		return ErrStopped
	}
	reply := make(chan error, 1)
	select {
	case b.inbox <- message{kind: msgCommit, reply: reply}:
	case <-b.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-b.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown drains the inbox, flushes everything pending once more and stops the
// goroutine. It returns the error of that last flush; ctx only bounds the wait.
// Calling it again returns the same result.
func (b *HitBatcher) Shutdown(ctx context.Context) error {
	prev, first := b.state.BeginStop()
	if first && prev == lifecycle.Created {
		// Never started: nobody else owns pending, finish here.
		b.finish(ctx)
		return b.finalErr
	}
	if first {
		b.stop <- ctx
	}
	select {
	case <-b.done:
		return b.finalErr
	case <-ctx.Done():
		return fmt.Errorf("waiting for final hit flush: %w", ctx.Err())
	}
}

func (b *HitBatcher) State() lifecycle.State {
	return b.state.Load()
}

// Dropped is the number of hits discarded because the inbox was full or closed.
func (b *HitBatcher) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *HitBatcher) run(ctx context.Context) {
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case msg := <-b.inbox:
			b.handle(ctx, msg)
		case <-ticker.C:
			_ = b.flush(ctx)
		case stopCtx := <-b.stop:
			b.finish(stopCtx)
			return
		case <-ctx.Done():
			b.state.BeginStop()
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
			b.finish(finalCtx)
			cancel()
			return
		}
	}
}

func (b *HitBatcher) handle(ctx context.Context, msg message) {
	switch msg.kind {
	case msgHit:
		b.pending.Add(msg.hit.ShortCode, uint64(msg.hit.Delta))
	case msgCommit:
		msg.reply <- b.flush(ctx)
	case msgSnapshot:
		msg.snapshot <- b.pending.Clone()
	}
}

// finish runs the last drain and flush, then marks the batcher stopped.
func (b *HitBatcher) finish(ctx context.Context) {
	var replies []chan error
	for drained := false; !drained; {
		select {
		case msg := <-b.inbox:
			if msg.kind == msgCommit {
				replies = append(replies, msg.reply)
				continue
			}
			b.handle(ctx, msg)
		default:
			drained = true
		}
	}

	err := b.flush(ctx)
	if err != nil {
		logging.ErrorLogger.Printf("final hit flush failed, %s hits across %d clips not written",
			humanize.Comma(int64(b.pending.Total())), len(b.pending))
	}
	b.finalErr = err
	for _, reply := range replies {
		reply <- err
	}
	_ = b.state.Transition(lifecycle.Stopping, lifecycle.Stopped)
	close(b.done)
}

// flush writes the pending counts, one independent increment per code. Codes whose
// write failed are merged back into pending for the next cycle.
func (b *HitBatcher) flush(ctx context.Context) error {
	if len(b.pending) == 0 {
		return nil
	}
	batch := b.pending
	b.pending = make(AggregatedCount, len(batch))
	start := time.Now()

	var (
		mu        sync.Mutex
		failed    = make(AggregatedCount)
		errs      []error
		discarded int
	)
	var g errgroup.Group
	g.SetLimit(flushParallelism)
	for code, delta := range batch {
		code, delta := code, delta
		g.Go(func() error {
			err := b.store.IncrementHits(ctx, code, delta)
			if err == nil {
				return nil
			}
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, models.ErrClipNotFound) {
				// The clip is gone, most likely swept; retrying cannot succeed.
				discarded++
				return nil
			}
			failed[code] = delta
			errs = append(errs, fmt.Errorf("flush %s (+%d): %w", code, delta, err))
			return nil
		})
	}
	_ = g.Wait()

	b.pending.Merge(failed)

	written := len(batch) - len(failed) - discarded
	logging.AuditLogger.Printf("HitBatcher flush: %s hits, %d clips written, %d retrying, %d gone, took %s",
		humanize.Comma(int64(batch.Total()-failed.Total())), written, len(failed), discarded, time.Since(start))

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logging.Capture(err, "hit flush: %d of %d clips failed", len(failed), len(batch))
		return err
	}
	return nil
}

// snapshot returns a copy of the counts not yet written.
func (b *HitBatcher) snapshot(ctx context.Context) (AggregatedCount, error) {
	reply := make(chan AggregatedCount, 1)
	select {
	case b.inbox <- message{kind: msgSnapshot, snapshot: reply}:
	case <-b.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case counts := <-reply:
		return counts, nil
	case <-b.done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (b *HitBatcher) drop(code models.ShortCode, n uint32, reason string) {
	total := b.dropped.Add(uint64(n))
	if total == uint64(n) || total/1000 != (total-uint64(n))/1000 {
		logging.DebugLogger.Printf("HitBatcher dropped %d hit(s) for %s (%s), %s dropped so far",
			n, code, reason, humanize.Comma(int64(total)))
	}
}
