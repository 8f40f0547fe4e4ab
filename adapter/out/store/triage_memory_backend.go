package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process. It is the fallback when no Redis URL is set
// and the backend tests use to get an isolated store per case.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(v), nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.data[key] = cloneBytes(value)
	b.mu.Unlock()
	return nil
}

// Update holds the backend lock for the whole read-modify-write. fn is pure CPU work,
// so the lock is never held across I/O.
func (b *MemoryBackend) Update(_ context.Context, key string, fn UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	value, changed, err := fn(cloneBytes(b.data[key]))
	if err != nil {
		return err
	}
	if changed {
		b.data[key] = cloneBytes(value)
	}
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

// Keys returns a snapshot of stored keys.
func (b *MemoryBackend) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	keys := make([]string, 0, len(b.data))
	for k := range b.data {
		keys = append(keys, k)
	}
	return keys
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
