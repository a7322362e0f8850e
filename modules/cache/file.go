package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileBackend stores one file per key under cacheDir.
//
// Each file starts with the expiry as 8 big-endian bytes of Unix nanoseconds
// (zero = never) followed by the payload.
type FileBackend struct {
	opts   Options
	dir    string
	prefix string
	now    func() time.Time
}

// NewFileBackend creates a file backend. Options: cacheDir (required), prefix.
func NewFileBackend(opts Options) (Backend, error) {
	if opts == nil {
		opts = Options{}
	}
	dir := opts.String("cacheDir")
	if dir == "" {
		return nil, fmt.Errorf("%w: file backend requires cacheDir", ErrSectionInvalid)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBackend{opts: opts, dir: dir, prefix: opts.String("prefix"), now: time.Now}, nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, b.prefix+url.PathEscape(key))
}

// Get reads a payload file, treating expired files as misses
func (b *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache file: %w", err)
	}
	if len(raw) < 8 {
		return nil, false, fmt.Errorf("%w: truncated cache file for %s", ErrInvalidValue, key)
	}
	if exp := int64(binary.BigEndian.Uint64(raw[:8])); exp != 0 && b.now().UnixNano() > exp {
		return nil, false, nil
	}
	return raw[8:], true, nil
}

// Set writes a payload file atomically
func (b *FileBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	var exp int64
	if ttl > 0 {
		exp = b.now().Add(ttl).UnixNano()
	}
	buf := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(buf, uint64(exp))
	buf = append(buf, data...)

	tmp, err := os.CreateTemp(b.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	return nil
}

// Delete removes a payload file
func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cache file: %w", err)
	}
	return nil
}

// Exists reports whether key has a live payload file
func (b *FileBackend) Exists(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

// Flush removes every payload file carrying the backend prefix
func (b *FileBackend) Flush(_ context.Context) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("flush cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".tmp-") || !strings.HasPrefix(e.Name(), b.prefix) {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("flush cache dir: %w", err)
		}
	}
	return nil
}

func (b *FileBackend) Close() error     { return nil }
func (b *FileBackend) Options() Options { return b.opts }
