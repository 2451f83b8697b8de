// Package maintenance holds the background jobs that keep the clip table tidy.
package maintenance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"clipshare/lifecycle"
	"clipshare/logging"

	"github.com/dustin/go-humanize"
)

const (
	DefaultSweepInterval = time.Minute

	finalSweepTimeout = 10 * time.Second
)

// ExpiredDeleter removes every clip whose expiry is at or before now.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper deletes expired clips on a fixed interval. A failed sweep is logged and
// the next tick tries again.
type Sweeper struct {
	store    ExpiredDeleter
	interval time.Duration
	now      func() time.Time

	state lifecycle.Tracker
	stop  chan context.Context
	done  chan struct{}
	swept atomic.Int64
}

func NewSweeper(store ExpiredDeleter, sweepInterval time.Duration) *Sweeper {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: sweepInterval,
		now:      time.Now,
		stop:     make(chan context.Context, 1),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	if err := s.state.Transition(lifecycle.Created, lifecycle.Running); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	go s.run(ctx)
	return nil
}

// Shutdown runs one last sweep and stops the sweeper. Sweep failures are only
// logged; the returned error is set when ctx expires first.
func (s *Sweeper) Shutdown(ctx context.Context) error {
	prev, first := s.state.BeginStop()
	if first && prev == lifecycle.Created {
		s.finish(ctx)
		return nil
	}
	if first {
		s.stop <- ctx
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for final sweep: %w", ctx.Err())
	}
}

func (s *Sweeper) State() lifecycle.State {
	return s.state.Load()
}

// Swept is the number of clips deleted since the sweeper was created.
func (s *Sweeper) Swept() int64 {
	return s.swept.Load()
}

func (s *Sweeper) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case stopCtx := <-s.stop:
			s.finish(stopCtx)
			return
		case <-ctx.Done():
			s.state.BeginStop()
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSweepTimeout)
			s.finish(finalCtx)
			cancel()
			return
		}
	}
}

func (s *Sweeper) finish(ctx context.Context) {
	s.sweep(ctx)
	_ = s.state.Transition(lifecycle.Stopping, lifecycle.Stopped)
	close(s.done)
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		logging.Capture(err, "expiry sweep failed")
		return
	}
	if n == 0 {
		return
	}
	total := s.swept.Add(n)
	logging.AuditLogger.Printf("Sweeper removed %s expired clip(s) in %s, %s in total",
		humanize.Comma(n), time.Since(start), humanize.Comma(total))
}
