package page

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// Page is a fully rendered, stored answer page. Pages are immutable after
// creation except for the one finalization rewrite that bakes in their id.
type Page struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	HTML      string    `json:"html"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists rendered pages under opaque ids until their TTL expires.
type Store interface {
	// Save stores a new page and returns its generated id.
	Save(ctx context.Context, title, html string) (string, error)
	// Rewrite replaces the HTML of an existing page in place, keeping its
	// creation time and TTL.
	Rewrite(ctx context.Context, id, html string) error
	// Get returns the page, reporting false when it is absent or expired.
	Get(ctx context.Context, id string) (Page, bool, error)
	// Len reports how many live pages are stored.
	Len(ctx context.Context) int
}

// newPageID returns an unguessable page identifier. Ids come from a
// cryptographic random source so stored pages cannot be enumerated.
func newPageID() (string, error) {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate page id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemStore is the in-process page store. Expired pages are swept lazily
// before every save and read.
type MemStore struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	pages map[string]Page
}

// NewMemStore creates an in-memory page store with the given TTL.
func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{
		ttl:   ttl,
		now:   time.Now,
		pages: make(map[string]Page),
	}
}

func (s *MemStore) sweep() {
	now := s.now()
	for id, p := range s.pages {
		if now.Sub(p.CreatedAt) > s.ttl {
			delete(s.pages, id)
		}
	}
}

func (s *MemStore) Save(ctx context.Context, title, html string) (string, error) {
	id, err := newPageID()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.pages[id] = Page{ID: id, Title: title, HTML: html, CreatedAt: s.now()}
	return id, nil
}

func (s *MemStore) Rewrite(ctx context.Context, id, html string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[id]
	if !ok {
		return fmt.Errorf("page %s not found", id)
	}
	p.HTML = html
	s.pages[id] = p
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (Page, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	p, ok := s.pages[id]
	return p, ok, nil
}

func (s *MemStore) Len(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	return len(s.pages)
}
