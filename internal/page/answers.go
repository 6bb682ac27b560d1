package page

import (
	"context"
	"sync"
	"time"
)

// AnswerCache memoizes request fingerprints to stored page ids. Entries
// expire after the answer TTL; whether the referenced page is still alive is
// the caller's concern (a dead reference is treated as a miss upstream).
type AnswerCache interface {
	// Lookup returns the memoized page id for the fingerprint, reporting
	// false on a miss or expired entry.
	Lookup(ctx context.Context, fingerprint string) (string, bool, error)
	// Record memoizes fingerprint -> pageID. Last write wins.
	Record(ctx context.Context, fingerprint, pageID string) error
	// Len reports how many live entries exist.
	Len(ctx context.Context) int
}

type answerEntry struct {
	pageID    string
	createdAt time.Time
}

// MemAnswerCache is the in-process answer cache. Expired entries are swept
// opportunistically on every lookup.
type MemAnswerCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]answerEntry
}

// NewMemAnswerCache creates an in-memory answer cache with the given TTL.
func NewMemAnswerCache(ttl time.Duration) *MemAnswerCache {
	return &MemAnswerCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]answerEntry),
	}
}

func (c *MemAnswerCache) sweep() {
	now := c.now()
	for k, e := range c.entries {
		if now.Sub(e.createdAt) > c.ttl {
			delete(c.entries, k)
		}
	}
}

func (c *MemAnswerCache) Lookup(ctx context.Context, fingerprint string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	e, ok := c.entries[fingerprint]
	if !ok {
		return "", false, nil
	}
	return e.pageID, true, nil
}

func (c *MemAnswerCache) Record(ctx context.Context, fingerprint, pageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fingerprint] = answerEntry{pageID: pageID, createdAt: c.now()}
	return nil
}

func (c *MemAnswerCache) Len(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweep()
	return len(c.entries)
}
