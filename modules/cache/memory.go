package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps payloads in process memory.
//
// Options: maxItems (0 = unbounded), cleanupInterval (seconds or a
// duration string; 0 disables the background sweep).
type MemoryBackend struct {
	opts       Options
	maxItems   int
	items      map[string]memoryItem
	mutex      sync.RWMutex
	now        func() time.Time
	cancelFunc context.CancelFunc
	closed     bool
}

type memoryItem struct {
	data       []byte
	expiration time.Time
}

// NewMemoryBackend creates a memory backend and starts its cleanup routine.
func NewMemoryBackend(opts Options) (Backend, error) {
	if opts == nil {
		opts = Options{}
	}
	b := &MemoryBackend{
		opts:     opts,
		maxItems: opts.IntOr("maxItems", 0),
		items:    make(map[string]memoryItem),
		now:      time.Now,
	}
	if interval := opts.DurationOr("cleanupInterval", 0); interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancelFunc = cancel
		go b.startCleanupTimer(ctx, interval)
	}
	return b, nil
}

// Get retrieves a payload from memory
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	if b.closed {
		return nil, false, ErrNotConnected
	}
	item, found := b.items[key]
	if !found || b.expired(item) {
		return nil, false, nil
	}
	return item.data, true, nil
}

// Set stores a payload in memory
func (b *MemoryBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return ErrNotConnected
	}
	// If the backend is full, reject new keys but allow overwrites
	if _, exists := b.items[key]; !exists && b.maxItems > 0 && len(b.items) >= b.maxItems {
		return ErrCacheFull
	}

	var exp time.Time
	if ttl > 0 {
		exp = b.now().Add(ttl)
	}
	b.items[key] = memoryItem{data: append([]byte(nil), data...), expiration: exp}
	return nil
}

// Delete removes a payload from memory
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	delete(b.items, key)
	return nil
}

// Exists reports whether key holds a live payload
func (b *MemoryBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

// Flush removes all payloads
func (b *MemoryBackend) Flush(_ context.Context) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.items = make(map[string]memoryItem)
	return nil
}

// Close stops the cleanup routine
func (b *MemoryBackend) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.cancelFunc != nil {
		b.cancelFunc()
	}
	b.closed = true
	return nil
}

func (b *MemoryBackend) Options() Options { return b.opts }

// Len returns the number of stored items, expired ones included until swept.
func (b *MemoryBackend) Len() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.items)
}

func (b *MemoryBackend) expired(item memoryItem) bool {
	return !item.expiration.IsZero() && b.now().After(item.expiration)
}

// startCleanupTimer starts the cleanup timer for expired items
func (b *MemoryBackend) startCleanupTimer(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.cleanupExpiredItems()
		case <-ctx.Done():
			return
		}
	}
}

// cleanupExpiredItems removes expired items from memory
func (b *MemoryBackend) cleanupExpiredItems() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for key, item := range b.items {
		if b.expired(item) {
			delete(b.items, key)
		}
	}
}
