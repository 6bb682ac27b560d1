package render

import (
	"fmt"
	"strings"
)

// LinkCitations rewrites plain [n] markers into superscript anchors pointing
// at the matching source entry. Markers beyond the citation count are left
// untouched; with no citations the input passes through unchanged.
func LinkCitations(html string, citations int) string {
	if citations == 0 {
		return html
	}
	out := html
	for i := 1; i <= citations; i++ {
		marker := fmt.Sprintf("[%d]", i)
		link := fmt.Sprintf(`<sup class="cite"><a href="#src-%d">%d</a></sup>`, i, i)
		out = strings.ReplaceAll(out, marker, link)
	}
	return out
}
