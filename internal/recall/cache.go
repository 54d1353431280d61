// ABOUTME: Per-owner single-slot cache for computed memory context blocks
// ABOUTME: In-process implementation; last writer wins, staleness detected by freshness token

package recall

import (
	"context"
	"sync"
)

// Entry is the cached result of one memory-context computation for an owner.
// An empty ContextText is a valid, cacheable negative result.
type Entry struct {
	// FreshnessToken is the opaque profile-change marker the entry was
	// computed against. A different token invalidates the entry.
	FreshnessToken string `json:"freshness_token"`
	// QueryFingerprint is the normalized query the entry was computed for.
	QueryFingerprint string `json:"query_fingerprint"`
	ContextText      string `json:"context_text"`
}

// Cache holds at most one Entry per owner. Implementations are injected into
// the turn pipeline; correctness never depends on cache contents, only the
// richness of the produced context, so lost updates between concurrent turns
// for the same owner are acceptable.
type Cache interface {
	Get(ctx context.Context, ownerID string) (*Entry, bool)
	Put(ctx context.Context, ownerID string, entry Entry)
}

// MemoryCache is the in-process Cache implementation.
// Entries live for the process lifetime and are lost on restart.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-process cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
	}
}

// Get returns the single cached entry for the owner, if any
func (c *MemoryCache) Get(_ context.Context, ownerID string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[ownerID]
	if !ok {
		return nil, false
	}
	return &entry, true
}

// Put overwrites the owner's slot. No history is kept.
func (c *MemoryCache) Put(_ context.Context, ownerID string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ownerID] = entry
}
