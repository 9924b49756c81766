package idemstore

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend implements Backend with an in-memory map. Intended for
// tests and non-production profiles.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]*Record)}
}

func recordKey(scope, key string) string {
	return scope + "\x00" + key
}

// Put stores or replaces a record.
func (b *MemoryBackend) Put(ctx context.Context, record *Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := *record
	r.Response = append([]byte(nil), record.Response...)
	b.records[recordKey(record.Scope, record.Key)] = &r
	return nil
}

// Get returns the record for (scope, key), or nil when absent or expired.
func (b *MemoryBackend) Get(ctx context.Context, scope, key string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	record, ok := b.records[recordKey(scope, key)]
	if !ok {
		return nil, nil
	}
	if !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	r := *record
	r.Response = append([]byte(nil), record.Response...)
	return &r, nil
}

// DeleteExpired removes expired records.
func (b *MemoryBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var removed int64
	for key, record := range b.records {
		if !record.ExpiresAt.IsZero() && !record.ExpiresAt.After(now) {
			delete(b.records, key)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the memory backend.
func (b *MemoryBackend) Close() error {
	return nil
}
