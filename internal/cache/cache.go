// Package cache provides a short-TTL cache for availability reads. Cached
// listings are advisory: the commit path always recomputes availability, so
// a stale hit can never create a double booking.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores JSON-encoded values under string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string, out any) bool
	Set(ctx context.Context, key string, val any, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

// SlotsKey builds the cache key for a garage/date availability listing.
func SlotsKey(garageID int64, date string) string {
	return fmt.Sprintf("slots:%d:%s", garageID, date)
}

// memoryEntry is one cached value with its expiry instant.
type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// Memory is an in-process Cache for single-node deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string, out any) bool {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	return unmarshal(entry.data, out) == nil
}

func (m *Memory) Set(_ context.Context, key string, val any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	data, err := marshal(val)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{data: data, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
}

func (m *Memory) Delete(_ context.Context, key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}
