package source

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy
)

func stripPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// StripHTML removes every tag from the rendered content and decodes entities,
// returning trimmed plain text.
func StripHTML(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(stripPolicy().Sanitize(s)))
}

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

// Tokenize lower-cases the text and extracts alphanumeric runs.
func Tokenize(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// SplitText cuts text into windows of at most maxChars bytes where each
// window past the first starts overlap bytes before the end of the previous
// one. Cuts prefer a whitespace boundary in the second half of the window so
// chunks end on content boundaries where possible. Reassembling the first
// chunk with every later chunk minus its leading overlap reproduces the
// input exactly.
func SplitText(text string, maxChars, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChars <= 0 || len(text) <= maxChars {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChars/2 {
		overlap = maxChars / 4
	}

	var chunks []string
	for start := 0; start < len(text); {
		end := start + maxChars
		if end >= len(text) {
			chunks = append(chunks, text[start:])
			break
		}
		cut := end
		if i := strings.LastIndexAny(text[start:end], " \t\n"); i > maxChars/2 {
			cut = start + i + 1
		}
		for cut > start+1 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		chunks = append(chunks, text[start:cut])
		start = cut - overlap
	}
	return chunks
}

// chunkDocument strips the document's rendered content and splits it into
// indexable chunks. Documents with no textual content produce none.
func chunkDocument(doc document, maxChars, overlap int) []Chunk {
	title := StripHTML(doc.Title.Rendered)
	if title == "" {
		title = "Untitled"
	}
	text := StripHTML(doc.Content.Rendered)
	if text == "" {
		return nil
	}

	parts := SplitText(text, maxChars, overlap)
	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		chunks = append(chunks, Chunk{
			SourceID: doc.ID,
			Title:    title,
			URL:      doc.Link,
			Text:     part,
		})
	}
	return chunks
}
