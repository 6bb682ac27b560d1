package source

import (
	"context"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pagewright/pagewright/config"
)

// Stats reports cache partition sizes for the health probe.
type Stats struct {
	Posts int `json:"posts_cached"`
	Pages int `json:"pages_cached"`
	Media int `json:"media_cached"`
}

type chunkPartition struct {
	refreshedAt time.Time
	items       []Chunk
	gen         uint64
}

type mediaPartition struct {
	refreshedAt time.Time
	items       []Media
	gen         uint64
}

// Cache holds TTL-bounded snapshots of the content source's posts, pages and
// media. Each partition refreshes independently; a failed refresh keeps
// serving the previous snapshot, so fetch failures never surface to callers.
type Cache struct {
	api    API
	cfg    config.SourceConfig
	logger *log.Logger
	now    func() time.Time

	mu    sync.Mutex
	posts chunkPartition
	pages chunkPartition
	media mediaPartition
}

// NewCache creates a content cache over the given source client.
func NewCache(api API, cfg config.SourceConfig) *Cache {
	return &Cache{
		api:    api,
		cfg:    cfg,
		logger: log.New(log.Writer(), "[SOURCE] ", log.LstdFlags),
		now:    time.Now,
	}
}

// Documents returns every cached chunk (posts first, then pages) together
// with a generation token that changes whenever either partition is swapped.
// The returned slice is a consistent view of single fetch generations.
func (c *Cache) Documents(ctx context.Context) ([]Chunk, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshPosts(ctx)
	c.refreshPages(ctx)

	docs := make([]Chunk, 0, len(c.posts.items)+len(c.pages.items))
	docs = append(docs, c.posts.items...)
	docs = append(docs, c.pages.items...)
	return docs, c.posts.gen<<32 | c.pages.gen
}

// MediaItems returns the cached media partition, refreshing it when stale.
func (c *Cache) MediaItems(ctx context.Context) []Media {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refreshMedia(ctx)
	return c.media.items
}

// Stats reports current partition sizes without triggering a refresh.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Posts: len(c.posts.items), Pages: len(c.pages.items), Media: len(c.media.items)}
}

func (c *Cache) refreshPosts(ctx context.Context) {
	if !c.posts.refreshedAt.IsZero() && c.now().Sub(c.posts.refreshedAt) < c.cfg.CacheTTL {
		return
	}
	fetched, err := c.fetchChunks(ctx, c.api.ListPosts, c.cfg.PostsPerPage, c.cfg.PostsMaxPages)
	c.swapChunks(&c.posts, fetched, err, "posts")
}

func (c *Cache) refreshPages(ctx context.Context) {
	if !c.pages.refreshedAt.IsZero() && c.now().Sub(c.pages.refreshedAt) < c.cfg.CacheTTL {
		return
	}
	fetched, err := c.fetchChunks(ctx, c.api.ListPages, c.cfg.PagesPerPage, c.cfg.PagesMaxPages)
	c.swapChunks(&c.pages, fetched, err, "pages")
}

// swapChunks atomically replaces the partition snapshot. A failed fetch that
// produced nothing keeps the previous snapshot; the refresh timestamp still
// advances so a down source is retried once per TTL, not on every read.
func (c *Cache) swapChunks(p *chunkPartition, fetched []Chunk, err error, name string) {
	p.refreshedAt = c.now()
	if err != nil && len(fetched) == 0 {
		c.logger.Printf("refresh %s failed, keeping previous snapshot (%d chunks): %v", name, len(p.items), err)
		return
	}
	if err != nil {
		c.logger.Printf("refresh %s ended early with partial results (%d chunks): %v", name, len(fetched), err)
	}
	p.items = fetched
	p.gen++
}

type listFunc func(ctx context.Context, page, perPage int) ([]document, error)

func (c *Cache) fetchChunks(ctx context.Context, list listFunc, perPage, maxPages int) ([]Chunk, error) {
	var out []Chunk
	for page := 1; page <= maxPages; page++ {
		docs, err := list(ctx, page, perPage)
		if err == ErrPageOutOfRange {
			break
		}
		if err != nil {
			return out, err
		}
		for _, doc := range docs {
			out = append(out, chunkDocument(doc, c.cfg.ChunkMaxChars, c.cfg.ChunkOverlap)...)
		}
		if len(docs) < perPage {
			break
		}
	}
	return out, nil
}

func (c *Cache) refreshMedia(ctx context.Context) {
	if !c.media.refreshedAt.IsZero() && c.now().Sub(c.media.refreshedAt) < c.cfg.CacheTTL {
		return
	}

	var fetched []Media
	var fetchErr error
	for page := 1; page <= c.cfg.MediaMaxPages; page++ {
		items, err := c.api.ListMedia(ctx, page, c.cfg.MediaPerPage)
		if err == ErrPageOutOfRange {
			break
		}
		if err != nil {
			fetchErr = err
			break
		}
		for _, item := range items {
			if m, ok := toMedia(item); ok {
				fetched = append(fetched, m)
			}
		}
		if len(items) < c.cfg.MediaPerPage {
			break
		}
	}

	c.media.refreshedAt = c.now()
	if fetchErr != nil && len(fetched) == 0 {
		c.logger.Printf("refresh media failed, keeping previous snapshot (%d items): %v", len(c.media.items), fetchErr)
		return
	}
	c.media.items = fetched
	c.media.gen++
}

// Attachments performs a direct, uncached lookup of image attachments owned
// by the given source documents, capped at limit. Per-id failures are logged
// and skipped.
func (c *Cache) Attachments(ctx context.Context, sourceIDs []int, limit int) []Media {
	if len(sourceIDs) == 0 || limit <= 0 {
		return nil
	}
	var out []Media
	for _, id := range sourceIDs {
		items, err := c.api.ListAttachments(ctx, id, 20)
		if err != nil {
			c.logger.Printf("attachments fetch failed for source %d: %v", id, err)
			continue
		}
		for _, item := range items {
			if m, ok := toMedia(item); ok {
				out = append(out, m)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ScoredMedia ranks the cached media partition by how often the query's
// terms appear in title, alt text and caption, descending, capped at limit.
// Items that match nothing still participate at score zero, preserving
// fetch order.
func (c *Cache) ScoredMedia(ctx context.Context, query string, limit int) []Media {
	items := c.MediaItems(ctx)
	if len(items) == 0 || limit <= 0 {
		return nil
	}
	terms := Tokenize(query)

	scored := make([]struct {
		media Media
		score int
	}, 0, len(items))
	for _, m := range items {
		text := strings.ToLower(m.Title + " " + m.Alt + " " + m.Caption)
		score := 0
		for _, t := range terms {
			score += strings.Count(text, t)
		}
		scored = append(scored, struct {
			media Media
			score int
		}{m, score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	n := limit
	if n > len(scored) {
		n = len(scored)
	}
	out := make([]Media, 0, n)
	for _, s := range scored[:n] {
		out = append(out, s.media)
	}
	return out
}

// toMedia converts a wire media item, dropping anything that is not an
// image. Responsive variants come out sorted ascending by width.
func toMedia(item mediaItem) (Media, bool) {
	if item.MediaType != "image" {
		return Media{}, false
	}
	var variants []Variant
	for _, s := range item.MediaDetails.Sizes {
		if s.SourceURL != "" && s.Width > 0 {
			variants = append(variants, Variant{URL: s.SourceURL, Width: s.Width})
		}
	}
	sort.Slice(variants, func(i, j int) bool {
		if variants[i].Width != variants[j].Width {
			return variants[i].Width < variants[j].Width
		}
		return variants[i].URL < variants[j].URL
	})
	return Media{
		ID:       "wp_" + strconv.Itoa(item.ID),
		URL:      item.SourceURL,
		Title:    StripHTML(item.Title.Rendered),
		Alt:      item.AltText,
		Caption:  StripHTML(item.Caption.Rendered),
		Width:    item.MediaDetails.Width,
		Height:   item.MediaDetails.Height,
		Variants: variants,
	}, true
}
