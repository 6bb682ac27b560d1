package source

import (
	"strconv"
	"strings"
)

// Chunk is a bounded window of a document's plain text. Chunks are immutable
// once created and belong to the cache generation that produced them.
type Chunk struct {
	SourceID int
	Title    string
	URL      string
	Text     string
}

// Variant is one responsive rendition of a media item.
type Variant struct {
	URL   string
	Width int
}

// Media is an image published by the content source. Variants are sorted
// ascending by width.
type Media struct {
	ID       string
	URL      string
	Title    string
	Alt      string
	Caption  string
	Width    int
	Height   int
	Variants []Variant
}

// Srcset renders the responsive variants as an HTML srcset attribute value.
func (m Media) Srcset() string {
	if len(m.Variants) == 0 {
		return ""
	}
	parts := make([]string, 0, len(m.Variants))
	for _, v := range m.Variants {
		parts = append(parts, v.URL+" "+strconv.Itoa(v.Width)+"w")
	}
	return strings.Join(parts, ", ")
}

// rendered is the content source's wrapper around HTML-bearing fields.
type rendered struct {
	Rendered string `json:"rendered"`
}

// document is a post or page as returned by the content source.
type document struct {
	ID      int      `json:"id"`
	Link    string   `json:"link"`
	Title   rendered `json:"title"`
	Content rendered `json:"content"`
}

// mediaItem is a media attachment as returned by the content source.
type mediaItem struct {
	ID           int      `json:"id"`
	AltText      string   `json:"alt_text"`
	Caption      rendered `json:"caption"`
	MediaType    string   `json:"media_type"`
	SourceURL    string   `json:"source_url"`
	Title        rendered `json:"title"`
	MediaDetails struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		Sizes  map[string]struct {
			SourceURL string `json:"source_url"`
			Width     int    `json:"width"`
		} `json:"sizes"`
	} `json:"media_details"`
}
