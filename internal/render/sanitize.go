package render

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

// articlePolicy is the allowlist applied to every rendered article before it
// is stored. Anything outside it is stripped, scripts and event handlers
// included.
func articlePolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements(
			"article", "section", "header", "footer", "nav",
			"h1", "h2", "h3", "h4", "p", "ul", "ol", "li",
			"a", "img", "figure", "figcaption", "blockquote",
			"code", "pre", "em", "strong", "hr", "br", "div", "span",
			"table", "thead", "tbody", "tr", "th", "td", "sup",
		)
		p.AllowAttrs("href", "title", "target", "rel").OnElements("a")
		p.AllowAttrs("src", "alt", "width", "height", "loading", "decoding", "sizes", "srcset").OnElements("img")
		p.AllowAttrs("class", "id", "role", "aria-label", "aria-live", "tabindex").Globally()
		p.AllowDataAttributes()
		p.AllowURLSchemes("http", "https", "mailto")
		p.AllowRelativeURLs(true)
		policy = p
	})
	return policy
}

// Sanitize reduces article HTML to the allowed tag and attribute set.
func Sanitize(html string) string {
	return articlePolicy().Sanitize(html)
}
