package page

import (
	"context"
	"testing"
	"time"
)

func TestMemStoreSaveGetRewrite(t *testing.T) {
	s := NewMemStore(time.Hour)
	ctx := context.Background()

	id, err := s.Save(ctx, "Guide", "<html>v1</html>")
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id == "" {
		t.Fatalf("expected non-empty id")
	}

	p, ok, err := s.Get(ctx, id)
	if err != nil || !ok {
		t.Fatalf("expected stored page, ok=%v err=%v", ok, err)
	}
	if p.Title != "Guide" || p.HTML != "<html>v1</html>" {
		t.Fatalf("unexpected page %+v", p)
	}

	if err := s.Rewrite(ctx, id, "<html>v2</html>"); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	p, _, _ = s.Get(ctx, id)
	if p.HTML != "<html>v2</html>" {
		t.Fatalf("rewrite not applied: %q", p.HTML)
	}
	if p.Title != "Guide" {
		t.Fatalf("rewrite must not touch the title")
	}
}

func TestMemStoreRewriteMissing(t *testing.T) {
	s := NewMemStore(time.Hour)
	if err := s.Rewrite(context.Background(), "nope", "<html/>"); err == nil {
		t.Fatalf("expected error rewriting a missing page")
	}
}

func TestMemStoreExpiry(t *testing.T) {
	s := NewMemStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }
	ctx := context.Background()

	id, _ := s.Save(ctx, "Guide", "<html/>")
	if _, ok, _ := s.Get(ctx, id); !ok {
		t.Fatalf("expected live page")
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := s.Get(ctx, id); ok {
		t.Fatalf("expected page to expire")
	}
	if n := s.Len(ctx); n != 0 {
		t.Fatalf("expected empty store after expiry, got %d", n)
	}
}

func TestPageIDsAreUnique(t *testing.T) {
	s := NewMemStore(time.Hour)
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := s.Save(ctx, "t", "h")
		if err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if len(id) != 14 {
			t.Fatalf("unexpected id length %d for %q", len(id), id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestMemAnswerCacheRecordLookup(t *testing.T) {
	c := NewMemAnswerCache(time.Hour)
	ctx := context.Background()

	if _, ok, _ := c.Lookup(ctx, "key"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	if err := c.Record(ctx, "key", "page-1"); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	got, ok, _ := c.Lookup(ctx, "key")
	if !ok || got != "page-1" {
		t.Fatalf("expected hit with page-1, got %q ok=%v", got, ok)
	}

	// last write wins
	_ = c.Record(ctx, "key", "page-2")
	got, _, _ = c.Lookup(ctx, "key")
	if got != "page-2" {
		t.Fatalf("expected page-2 after overwrite, got %q", got)
	}
}

func TestMemAnswerCacheExpiry(t *testing.T) {
	c := NewMemAnswerCache(time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Record(ctx, "key", "page-1")
	now = now.Add(2 * time.Hour)
	if _, ok, _ := c.Lookup(ctx, "key"); ok {
		t.Fatalf("expected entry to expire")
	}
	if n := c.Len(ctx); n != 0 {
		t.Fatalf("expected empty cache after expiry, got %d", n)
	}
}
