// Package lifecycle holds the state machine shared by the background workers.
//
// A worker moves Created → Running → Stopping → Stopped. A worker shut down before
// it was started skips Running. Nothing ever returns to Running; build a new worker
// instead.
package lifecycle

import (
	"errors"
	"fmt"
	"sync/atomic"
)

type State int32

const (
	Created State = iota
	Running
	Stopping
	Stopped
)

var ErrInvalidTransition = errors.New("invalid lifecycle transition")

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Tracker is a goroutine-safe State. The zero value is Created.
type Tracker struct {
	v atomic.Int32
}

func (t *Tracker) Load() State {
	return State(t.v.Load())
}

// Transition moves from one state to another, failing if the current state is not from.
func (t *Tracker) Transition(from, to State) error {
	if !allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if !t.v.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: %s -> %s (currently %s)", ErrInvalidTransition, from, to, t.Load())
	}
	return nil
}

// BeginStop moves a Created or Running tracker to Stopping and returns the state it
// left. ok is false when another caller already started stopping.
func (t *Tracker) BeginStop() (prev State, ok bool) {
	for {
		cur := t.Load()
		if cur == Stopping || cur == Stopped {
			return cur, false
		}
		if t.v.CompareAndSwap(int32(cur), int32(Stopping)) {
			return cur, true
		}
	}
}

// Accepting reports whether the worker still takes new work.
func (t *Tracker) Accepting() bool {
	s := t.Load()
	return s == Created || s == Running
}

func allowed(from, to State) bool {
	switch from {
	case Created:
		return to == Running || to == Stopping
	case Running:
		return to == Stopping
	case Stopping:
		return to == Stopped
	}
	return false
}
