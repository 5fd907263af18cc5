/*
DESCRIPTION
  bus.go provides the Bus, a fan-out layer delivering each published frame
  to every subscriber at the subscriber's own pace. A slow subscriber never
  blocks the publisher; frames it cannot keep up with are dropped according
  to the subscription's policy.

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package frame

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Subscription errors.
var (
	ErrBusClosed    = errors.New("frame: bus is closed")
	ErrSubExists    = errors.New("frame: subscriber already exists")
	ErrSubNotFound  = errors.New("frame: subscriber not found")
	ErrBadQueueSize = errors.New("frame: queue size must be at least 1")
	ErrBadPolicy    = errors.New("frame: unknown delivery policy")
)

// Policy selects how a subscription behaves when its owner consumes slower
// than frames are published.
type Policy int

const (
	// LatestWins holds a single slot; a new frame overwrites any frame not
	// yet consumed. Pollers always see the most recent frame.
	LatestWins Policy = iota

	// Queued holds a fixed-capacity ordered buffer. When full, the oldest
	// entry is dropped to admit the newest.
	Queued
)

// SubStats is a snapshot of a subscription's delivery counters.
type SubStats struct {
	Delivered uint64 // Frames handed to the subscriber.
	Dropped   uint64 // Frames overwritten or evicted before consumption.
}

// Bus distributes frames from one publisher to any number of subscribers.
// Publish never blocks: each subscription buffers independently and applies
// its own drop policy.
type Bus struct {
	mu        sync.RWMutex
	subs      map[string]*Sub
	published uint64
	closed    bool
}

// NewBus returns a new Bus with no subscribers.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]*Sub)}
}

// Subscribe registers a named subscriber with the given policy. For Queued
// subscriptions, size sets the buffer capacity; it is ignored for LatestWins.
func (b *Bus) Subscribe(name string, p Policy, size int) (*Sub, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.subs[name]; ok {
		return nil, ErrSubExists
	}

	switch p {
	case LatestWins:
		size = 1
	case Queued:
		if size < 1 {
			return nil, ErrBadQueueSize
		}
	default:
		return nil, ErrBadPolicy
	}

	s := &Sub{name: name, policy: p, buf: make([]Frame, size)}
	s.cond = sync.NewCond(&s.mu)
	b.subs[name] = s
	return s, nil
}

// Unsubscribe removes a subscriber. Its pending frames are released and any
// blocked Next call returns with ok false.
func (b *Bus) Unsubscribe(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.subs[name]
	if !ok {
		return ErrSubNotFound
	}
	s.close()
	delete(b.subs, name)
	return nil
}

// Publish delivers f to every subscription. It never blocks on a slow
// subscriber; subscriptions that are full drop their oldest frame.
func (b *Bus) Publish(f Frame) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	atomic.AddUint64(&b.published, 1)
	for _, s := range b.subs {
		s.offer(f)
	}
}

// Published returns the number of frames published on the bus.
func (b *Bus) Published() uint64 {
	return atomic.LoadUint64(&b.published)
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts the bus down. All subscriptions observe a terminal signal:
// blocked Next calls return with ok false rather than waiting on a frame
// that will never arrive.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		s.close()
	}
	b.subs = nil
}

// Sub is one subscriber's bounded delivery buffer. Frames arrive in publish
// order; within a subscription sequence numbers are non-decreasing with gaps
// permitted on drop but no reordering and no duplication.
type Sub struct {
	name   string
	policy Policy

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []Frame // Ring buffer.
	head   int
	n      int
	closed bool

	delivered uint64
	dropped   uint64
}

// Name returns the subscriber name given at subscribe time.
func (s *Sub) Name() string { return s.name }

// Policy returns the subscription's drop policy.
func (s *Sub) Policy() Policy { return s.policy }

// offer places f in the ring, evicting the oldest entry when full.
func (s *Sub) offer(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.n == len(s.buf) {
		s.head = (s.head + 1) % len(s.buf)
		s.n--
		s.dropped++
	}
	s.buf[(s.head+s.n)%len(s.buf)] = f
	s.n++
	s.cond.Broadcast()
}

// Next blocks until a frame is available or the subscription terminates.
// ok is false once the bus has closed or the subscriber was removed; this is
// the terminal disconnected signal.
func (s *Sub) Next() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.n == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.n == 0 {
		return Frame{}, false
	}
	return s.pop(), true
}

// TryNext returns the oldest buffered frame without blocking. ok is false
// if no frame is pending.
func (s *Sub) TryNext() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.n == 0 {
		return Frame{}, false
	}
	return s.pop(), true
}

// pop removes and returns the oldest frame. Callers hold s.mu.
func (s *Sub) pop() Frame {
	f := s.buf[s.head]
	s.buf[s.head] = Frame{}
	s.head = (s.head + 1) % len(s.buf)
	s.n--
	s.delivered++
	return f
}

// Closed reports whether the subscription has terminated.
func (s *Sub) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns a snapshot of the subscription's counters.
func (s *Sub) Stats() SubStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SubStats{Delivered: s.delivered, Dropped: s.dropped}
}

func (s *Sub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.cond.Broadcast()
}
