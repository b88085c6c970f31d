// Package cache stores computed trend analyses so repeated dashboard reads skip the
// measurement scan. Entries are JSON encoded and dropped by key prefix when the
// underlying data changes.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const keyPrefix = "recomp:"

// Cache is the storage contract used by the HTTP layer.
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// TrendKey identifies one cached analysis.
func TrendKey(userID, objective string, days int) string {
	return fmt.Sprintf("%s%s:%d", UserTrendPrefix(userID), objective, days)
}

// UserTrendPrefix covers every cached analysis of a user.
func UserTrendPrefix(userID string) string {
	return "trends:" + strings.TrimSpace(userID) + ":"
}

// NopCache never stores anything.
type NopCache struct{}

func (NopCache) Get(context.Context, string, any) (bool, error) { return false, nil }

func (NopCache) Set(context.Context, string, any, time.Duration) error { return nil }

func (NopCache) InvalidatePrefix(context.Context, string) error { return nil }

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache used when no Redis URL is configured.
type MemoryCache struct {
	mu      sync.Mutex
	clock   func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache returns an empty MemoryCache. A nil clock uses time.Now.
func NewMemoryCache(clock func() time.Time) *MemoryCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryCache{clock: clock, entries: make(map[string]memoryEntry)}
}

// Get decodes the entry stored under key into dest.
func (m *MemoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	entry, ok := m.entries[keyPrefix+key]
	if ok && !entry.expiresAt.IsZero() && !m.clock().Before(entry.expiresAt) {
		delete(m.entries, keyPrefix+key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(entry.payload, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key. A non-positive ttl keeps the entry until invalidated.
func (m *MemoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	entry := memoryEntry{payload: payload}
	if ttl > 0 {
		entry.expiresAt = m.clock().Add(ttl)
	}
	m.mu.Lock()
	m.entries[keyPrefix+key] = entry
	m.mu.Unlock()
	return nil
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (m *MemoryCache) InvalidatePrefix(_ context.Context, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if strings.HasPrefix(key, keyPrefix+prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}
