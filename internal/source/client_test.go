package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pagewright/pagewright/config"
)

func TestListPostsRequestsPublishedWithFields(t *testing.T) {
	var gotQuery map[string][]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wp-json/wp/v2/posts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":7,"link":"https://example.com/p/7","title":{"rendered":"Hello"},"content":{"rendered":"<p>Body</p>"}}]`))
	}))
	defer ts.Close()

	c := NewClient(config.SourceConfig{BaseURL: ts.URL})
	docs, err := c.ListPosts(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("list posts failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != 7 || docs[0].Title.Rendered != "Hello" {
		t.Fatalf("unexpected docs %+v", docs)
	}
	if got := gotQuery["status"]; len(got) != 1 || got[0] != "publish" {
		t.Fatalf("expected status=publish, got %v", got)
	}
	if got := gotQuery["per_page"]; len(got) != 1 || got[0] != "50" {
		t.Fatalf("expected per_page=50, got %v", got)
	}
	if got := gotQuery["_fields"]; len(got) != 1 || got[0] != "id,link,title,content" {
		t.Fatalf("unexpected _fields %v", got)
	}
}

func TestPastTheEndPageIsSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"rest_post_invalid_page_number","message":"The page number requested is larger than the number of pages available."}`))
	}))
	defer ts.Close()

	c := NewClient(config.SourceConfig{BaseURL: ts.URL})
	if _, err := c.ListPosts(context.Background(), 99, 50); err != ErrPageOutOfRange {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

func TestOtherErrorsAreNotSentinel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(config.SourceConfig{BaseURL: ts.URL})
	_, err := c.ListPosts(context.Background(), 1, 50)
	if err == nil || err == ErrPageOutOfRange {
		t.Fatalf("expected a real error, got %v", err)
	}
}

func TestListAttachmentsFiltersByParent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("parent"); got != "42" {
			t.Errorf("expected parent=42, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":9,"media_type":"image","source_url":"https://example.com/a.jpg","title":{"rendered":"Img"}}]`))
	}))
	defer ts.Close()

	c := NewClient(config.SourceConfig{BaseURL: ts.URL})
	items, err := c.ListAttachments(context.Background(), 42, 20)
	if err != nil {
		t.Fatalf("list attachments failed: %v", err)
	}
	if len(items) != 1 || items[0].ID != 9 {
		t.Fatalf("unexpected items %+v", items)
	}
}
