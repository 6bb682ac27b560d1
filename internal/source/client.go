package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pagewright/pagewright/config"
)

// ErrPageOutOfRange signals that the requested listing page is past the end
// of the collection. Callers treat it as a clean end of pagination.
var ErrPageOutOfRange = errors.New("page out of range")

const (
	documentFields = "id,link,title,content"
	mediaFields    = "id,alt_text,caption,media_type,media_details,source_url,title"
)

// API is the content-source capability consumed by the cache.
type API interface {
	ListPosts(ctx context.Context, page, perPage int) ([]document, error)
	ListPages(ctx context.Context, page, perPage int) ([]document, error)
	ListMedia(ctx context.Context, page, perPage int) ([]mediaItem, error)
	ListAttachments(ctx context.Context, parentID, perPage int) ([]mediaItem, error)
}

// Client fetches posts, pages and media from a WordPress-style REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a content-source client
func NewClient(cfg config.SourceConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListPosts(ctx context.Context, page, perPage int) ([]document, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("status", "publish")
	params.Set("_fields", documentFields)

	var docs []document
	if err := c.get(ctx, "/wp-json/wp/v2/posts", params, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) ListPages(ctx context.Context, page, perPage int) ([]document, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("_fields", documentFields)

	var docs []document
	if err := c.get(ctx, "/wp-json/wp/v2/pages", params, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (c *Client) ListMedia(ctx context.Context, page, perPage int) ([]mediaItem, error) {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("page", strconv.Itoa(page))
	params.Set("_fields", mediaFields)

	var items []mediaItem
	if err := c.get(ctx, "/wp-json/wp/v2/media", params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) ListAttachments(ctx context.Context, parentID, perPage int) ([]mediaItem, error) {
	params := url.Values{}
	params.Set("parent", strconv.Itoa(parentID))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("_fields", mediaFields)

	var items []mediaItem
	if err := c.get(ctx, "/wp-json/wp/v2/media", params, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// The source reports a past-the-end listing page as a 400 with a
		// dedicated error code.
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(string(b), "rest_post_invalid_page_number") {
			return ErrPageOutOfRange
		}
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
