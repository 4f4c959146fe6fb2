// Package cache keeps small reference lists (estados, usuarios, roles) fresh
// for a fixed TTL. Concurrent misses share one load, and an optional shared
// backend lets several replicas reuse each other's loads.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Backend is a shared second-level store such as redis.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Observer is told about every lookup.
type Observer interface {
	CacheLookup(list string, hit bool)
}

// LoadFunc fetches the authoritative value.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Option configures a List.
type Option func(*options)

type options struct {
	backend  Backend
	observer Observer
	now      func() time.Time
}

// WithBackend adds a shared second-level store.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithObserver reports hits and misses.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// List caches one value of type T under a name.
type List[T any] struct {
	name string
	ttl  time.Duration
	load LoadFunc[T]
	opts options

	group singleflight.Group

	mu      sync.Mutex
	val     T
	expires time.Time
	valid   bool
	gen     uint64
}

// NewList returns an empty cache for one reference list.
func NewList[T any](name string, ttl time.Duration, load LoadFunc[T], opts ...Option) *List[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &List[T]{name: name, ttl: ttl, load: load, opts: o}
}

// Name returns the list name.
func (l *List[T]) Name() string { return l.name }

// Get returns the cached value, loading it when missing or expired.
func (l *List[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	if l.valid && l.opts.now().Before(l.expires) {
		v := l.val
		l.mu.Unlock()
		l.observe(true)
		return v, nil
	}
	gen := l.gen
	l.mu.Unlock()
	l.observe(false)

	ch := l.group.DoChan(l.name, func() (any, error) {
		return l.fill(context.WithoutCancel(ctx), gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// fill loads from the backend or the source and stores the result unless
// the list was invalidated while loading.
func (l *List[T]) fill(ctx context.Context, gen uint64) (T, error) {
	if v, ok := l.fromBackend(ctx); ok {
		l.store(v, gen)
		return v, nil
	}

	v, err := l.load(ctx)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("load %s: %w", l.name, err)
	}
	l.store(v, gen)
	l.toBackend(ctx, v)
	return v, nil
}

func (l *List[T]) store(v T, gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.val = v
	l.valid = true
	l.expires = l.opts.now().Add(l.ttl)
}

// Invalidate drops the cached value here and in the shared backend.
func (l *List[T]) Invalidate(ctx context.Context) error {
	l.mu.Lock()
	var zero T
	l.val = zero
	l.valid = false
	l.gen++
	l.mu.Unlock()
	l.group.Forget(l.name)

	if l.opts.backend == nil {
		return nil
	}
	if err := l.opts.backend.Delete(ctx, l.name); err != nil {
		return fmt.Errorf("invalidate %s: %w", l.name, err)
	}
	return nil
}

func (l *List[T]) fromBackend(ctx context.Context) (T, bool) {
	var zero T
	if l.opts.backend == nil {
		return zero, false
	}
	raw, ok, err := l.opts.backend.Get(ctx, l.name)
	if err != nil {
		slog.Warn("cache: backend read failed", "list", l.name, "error", err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("cache: discarding undecodable backend entry", "list", l.name, "error", err)
		return zero, false
	}
	return v, true
}

func (l *List[T]) toBackend(ctx context.Context, v T) {
	if l.opts.backend == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("cache: encode failed", "list", l.name, "error", err)
		return
	}
	if err := l.opts.backend.Set(ctx, l.name, raw, l.ttl); err != nil {
		slog.Warn("cache: backend write failed", "list", l.name, "error", err)
	}
}

func (l *List[T]) observe(hit bool) {
	if l.opts.observer != nil {
		l.opts.observer.CacheLookup(l.name, hit)
	}
}

// Invalidator is anything that can drop its cached state.
type Invalidator interface {
	Name() string
	Invalidate(ctx context.Context) error
}

// InvalidateAll clears every list and joins their errors.
func InvalidateAll(ctx context.Context, lists ...Invalidator) error {
	var errs []error
	for _, l := range lists {
		if err := l.Invalidate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
