package render

import (
	"fmt"
	"strings"
)

// Article renders the plan into an HTML article fragment. The output is NOT
// safe yet: callers must pass it through Sanitize before storing or serving.
// Paragraphs starting with ">" become blockquotes. The first image, when
// present, becomes the hero figure.
func Article(plan Plan, citations []Citation, brandClass string, includeCitations bool, images []Image) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<article class="%s">`, brandClass)
	fmt.Fprintf(&b, `<header class="%s__header" role="banner">`, brandClass)
	fmt.Fprintf(&b, `<h1 class="%s__title">%s</h1>`, brandClass, plan.Title)
	fmt.Fprintf(&b, `<p class="%s__summary" aria-live="polite">%s</p>`, brandClass, plan.Summary)
	b.WriteString(`</header>`)

	if len(images) > 0 {
		hero := images[0]
		fmt.Fprintf(&b, `<figure class="%s__hero" role="img" aria-label="%s">`, brandClass, hero.Alt)
		fmt.Fprintf(&b, `<img src="%s" alt="%s" loading="lazy" decoding="async" class="%s__hero-image"/>`, hero.URL, hero.Alt, brandClass)
		fmt.Fprintf(&b, `<figcaption class="%s__hero-caption">%s</figcaption>`, brandClass, hero.Caption)
		b.WriteString(`</figure>`)
	}

	if plan.ShowTOC {
		fmt.Fprintf(&b, `<nav class="%s__toc" aria-label="Table of contents">`, brandClass)
		fmt.Fprintf(&b, `<p class="%s__toc-title">Contents</p>`, brandClass)
		fmt.Fprintf(&b, `<ul class="%s__toc-list">`, brandClass)
		for _, s := range plan.Sections {
			fmt.Fprintf(&b, `<li><a href="#%s" class="%s__toc-link">%s</a></li>`, s.ID, brandClass, s.Heading)
		}
		b.WriteString(`</ul></nav>`)
	}

	for _, s := range plan.Sections {
		fmt.Fprintf(&b, `<section id="%s" class="%s__section" tabindex="-1">`, s.ID, brandClass)
		fmt.Fprintf(&b, `<h2 class="%s__section-title">%s</h2>`, brandClass, s.Heading)
		for _, p := range s.Paragraphs {
			if strings.HasPrefix(strings.TrimSpace(p), ">") {
				quoted := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), ">"))
				fmt.Fprintf(&b, `<blockquote class="%s__blockquote">%s</blockquote>`, brandClass, quoted)
			} else {
				fmt.Fprintf(&b, `<p class="%s__paragraph">%s</p>`, brandClass, p)
			}
		}
		if len(s.Bullets) > 0 {
			fmt.Fprintf(&b, `<ul class="%s__list">`, brandClass)
			for _, bullet := range s.Bullets {
				fmt.Fprintf(&b, `<li>%s</li>`, bullet)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)
	}

	if includeCitations && len(citations) > 0 {
		fmt.Fprintf(&b, `<footer class="%s__sources" aria-label="Content sources">`, brandClass)
		fmt.Fprintf(&b, `<h2 class="%s__sources-title">Sources</h2>`, brandClass)
		fmt.Fprintf(&b, `<ol class="%s__sources-list">`, brandClass)
		for i, c := range citations {
			url := c.URL
			if url == "" {
				url = "#"
			}
			title := c.Title
			if title == "" {
				title = url
			}
			fmt.Fprintf(&b, `<li id="src-%d"><a href="%s" target="_blank" rel="noopener noreferrer">%s</a></li>`, i+1, url, title)
		}
		b.WriteString(`</ol></footer>`)
	}

	b.WriteString(`</article>`)
	return b.String()
}
