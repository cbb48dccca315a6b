package orientation

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Sampler subscribes to a Source and forwards complete samples to a handler.
// Start and Stop are idempotent; at most one subscription exists at a time.
type Sampler struct {
	src Source
	now func() time.Time

	mu         sync.Mutex
	cancel     func()
	permission Permission
	requesting bool
}

// NewSampler creates a Sampler reading from src. A nil src behaves like a
// source that is not supported.
func NewSampler(src Source) *Sampler {
	return &Sampler{
		src: src,
		now: time.Now,
	}
}

// IsSupported reports whether the underlying sensor exists.
func (s *Sampler) IsSupported() bool {
	return s.src != nil && s.src.Supported()
}

// Start subscribes to the source and calls fn for every complete sample.
// Readings with a missing angle are dropped. The first complete reading of a
// subscription picks its time base: the source's own clock if it carries a
// timestamp, the wall clock otherwise. Calling Start while already running
// keeps the existing subscription and returns nil.
func (s *Sampler) Start(fn func(Sample)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return nil
	}

	if !s.IsSupported() {
		return ErrUnsupported
	}

	clk := &sampleClock{now: s.now}
	cancel, err := s.src.Subscribe(func(r Reading) {
		sample, ok := r.Sample()
		if !ok {
			return
		}
		sample.TimestampMs = clk.stamp(r.TimestampMs)
		fn(sample)
	})
	if err != nil {
		return fmt.Errorf("subscribe to orientation source: %w", err)
	}

	s.cancel = cancel
	return nil
}

// Stop unsubscribes from the source. It is a no-op when not running.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return
	}

	s.cancel()
	s.cancel = nil
}

// Running reports whether the sampler currently holds a subscription.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Permission returns the cached result of the last permission request.
func (s *Sampler) Permission() Permission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permission
}

// RequestPermission asks for sensor access when the source requires consent.
// Sources without a consent gate are granted immediately; unsupported sources
// are denied. The result is cached and only refreshed by calling this again.
func (s *Sampler) RequestPermission(ctx context.Context) (Permission, error) {
	s.mu.Lock()
	if s.requesting {
		s.mu.Unlock()
		return PermissionUnknown, ErrPermissionPending
	}

	if !s.IsSupported() {
		s.permission = PermissionDenied
		s.mu.Unlock()
		return PermissionDenied, nil
	}

	requester, ok := s.src.(PermissionRequester)
	if !ok {
		s.permission = PermissionGranted
		s.mu.Unlock()
		return PermissionGranted, nil
	}

	s.requesting = true
	s.mu.Unlock()

	granted, err := requester.RequestPermission(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requesting = false

	if err != nil {
		s.permission = PermissionDenied
		return PermissionDenied, fmt.Errorf("request orientation permission: %w", err)
	}

	if granted {
		s.permission = PermissionGranted
	} else {
		s.permission = PermissionDenied
	}
	return s.permission, nil
}

// sampleClock keeps the timestamps of one subscription on a single time base
// so debounce windows compare like with like.
//
// On the source clock an unstamped reading is placed at the wall time elapsed
// since the last stamped one. On the wall clock every reading is restamped.
type sampleClock struct {
	now func() time.Time

	mu       sync.Mutex
	decided  bool
	source   bool
	offsetMs int64 // source minus wall at the last stamped reading
}

func (c *sampleClock) stamp(ts int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.now().UnixMilli()
	if !c.decided {
		c.decided = true
		c.source = ts != 0
	}

	switch {
	case !c.source:
		return wall
	case ts == 0:
		return wall + c.offsetMs
	default:
		c.offsetMs = ts - wall
		return ts
	}
}
