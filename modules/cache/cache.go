// Package cache provides the configurable cache services: a Frontend that
// serializes values, composed over a Backend that stores the payloads.
// Adapters on both sides are looked up by name in a Registry, so the set of
// cache services is driven entirely by configuration.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Recorder observes cache lookups.
type Recorder interface {
	CacheLookup(service string, hit bool)
}

// Cache is one configured cache service: backend(frontend(O1), O2).
type Cache struct {
	name     string
	front    Frontend
	back     Backend
	recorder Recorder
}

// New composes a frontend over a backend.
func New(front Frontend, back Backend) *Cache {
	return &Cache{front: front, back: back}
}

// Named sets the service name reported to the recorder.
func (c *Cache) Named(name string) *Cache {
	c.name = name
	return c
}

// WithRecorder attaches a lookup recorder.
func (c *Cache) WithRecorder(r Recorder) *Cache {
	c.recorder = r
	return c
}

func (c *Cache) Name() string       { return c.name }
func (c *Cache) Frontend() Frontend { return c.front }
func (c *Cache) Backend() Backend   { return c.back }

// Save encodes value and stores it. Without an explicit lifetime the
// frontend's lifetime applies.
func (c *Cache) Save(ctx context.Context, key string, value any, lifetime ...time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	ttl := c.front.Lifetime()
	if len(lifetime) > 0 {
		ttl = lifetime[0]
	}
	data, err := c.front.Encode(value)
	if err != nil {
		return fmt.Errorf("cache %s: encode %s: %w", c.name, key, err)
	}
	return c.back.Set(ctx, key, data, ttl)
}

// Get decodes the stored value for key into dst and reports whether it was found.
func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	data, ok, err := c.back.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if c.recorder != nil {
		c.recorder.CacheLookup(c.name, ok)
	}
	if !ok {
		return false, nil
	}
	if err := c.front.Decode(data, dst); err != nil {
		return false, fmt.Errorf("cache %s: decode %s: %w", c.name, key, err)
	}
	return true, nil
}

// Exists reports whether key holds a live value.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	return c.back.Exists(ctx, key)
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return c.back.Delete(ctx, key)
}

func (c *Cache) Flush(ctx context.Context) error { return c.back.Flush(ctx) }
func (c *Cache) Close() error                    { return c.back.Close() }
