package compose

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/pagewright/pagewright/config"
	"github.com/pagewright/pagewright/internal/page"
	"github.com/pagewright/pagewright/internal/rank"
	"github.com/pagewright/pagewright/internal/render"
	"github.com/pagewright/pagewright/internal/source"
	"github.com/pagewright/pagewright/provider"
)

// Searcher ranks the content corpus for a question.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]rank.Source, error)
	TopScore(ctx context.Context, query, text string) float64
}

// MediaFinder supplies illustration candidates for an answer.
type MediaFinder interface {
	Attachments(ctx context.Context, sourceIDs []int, limit int) []source.Media
	ScoredMedia(ctx context.Context, query string, limit int) []source.Media
}

// Request is one compose invocation after the transport layer has applied
// its defaults.
type Request struct {
	Question         string
	Layout           string
	IncludeCitations bool
	BrandClass       string
	PrimaryColor     string
	BaseURL          string
}

// Result identifies the stored answer page.
type Result struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	TraceID string `json:"trace_id"`
}

// Composer runs the full question-to-page pipeline: memo lookup, retrieval,
// confidence gate, planning, rendering, storage. Identical concurrent
// requests collapse into one execution via singleflight.
type Composer struct {
	searcher Searcher
	media    MediaFinder
	planner  provider.Planner
	store    page.Store
	answers  page.AnswerCache
	cfg      config.Config
	logger   *log.Logger
	group    singleflight.Group
}

// New creates a composer over the given collaborators.
func New(searcher Searcher, media MediaFinder, planner provider.Planner, store page.Store, answers page.AnswerCache, cfg config.Config) *Composer {
	return &Composer{
		searcher: searcher,
		media:    media,
		planner:  planner,
		store:    store,
		answers:  answers,
		cfg:      cfg,
		logger:   log.New(log.Writer(), "[COMPOSE] ", log.LstdFlags),
	}
}

// Compose answers the request, returning the id of a stored page. Repeated
// identical requests within the answer TTL return the same page without
// re-running the pipeline.
func (c *Composer) Compose(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() { composeDuration.Observe(time.Since(start).Seconds()) }()

	key := Fingerprint(req.Question, req.Layout, req.IncludeCitations, req.BrandClass, req.PrimaryColor)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.compose(ctx, req, key)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *Composer) compose(ctx context.Context, req Request, key string) (Result, error) {
	traceID := TraceID(req.Question)

	if pageID, ok, err := c.answers.Lookup(ctx, key); err == nil && ok {
		if p, live, err := c.store.Get(ctx, pageID); err == nil && live {
			composeTotal.WithLabelValues(outcomeMemoHit).Inc()
			return Result{ID: p.ID, Title: p.Title, TraceID: traceID}, nil
		}
	}

	hits, err := c.searcher.Search(ctx, req.Question, c.cfg.Rank.FinalDocs)
	if err != nil {
		return Result{}, fmt.Errorf("search failed: %w", err)
	}
	if len(hits) == 0 {
		composeTotal.WithLabelValues(outcomeNoSources).Inc()
		return c.finish(ctx, req, key, traceID, noSourcesPlan(), nil, nil, false)
	}

	if threshold := c.cfg.Rank.RerankThreshold; threshold > 0 {
		if top := c.searcher.TopScore(ctx, req.Question, hits[0].Text); top < threshold {
			c.logger.Printf("trace=%s top score %.3f below threshold %.3f", traceID, top, threshold)
			composeTotal.WithLabelValues(outcomeLowConfidence).Inc()
			return c.finish(ctx, req, key, traceID, lowConfidencePlan(), nil, nil, false)
		}
	}

	sources := excerpt(hits, c.cfg.Rank.ExcerptChars)
	citations := dedupeCitations(sources)
	images := c.findImages(ctx, req.Question, hits)

	plan, outcome := c.plan(ctx, req, sources, traceID)
	composeTotal.WithLabelValues(outcome).Inc()
	return c.finish(ctx, req, key, traceID, plan, citations, images, req.IncludeCitations)
}

// plan asks the planner for a layout. Any planner failure degrades to a
// passthrough plan built from the top source, never to an error.
func (c *Composer) plan(ctx context.Context, req Request, sources []rank.Source, traceID string) (render.Plan, string) {
	prompt := buildPlannerPrompt(req.Question, sources, req.Layout, c.cfg.Rank.ExcerptChars)
	response, err := c.planner.Plan(ctx, prompt)
	if err == nil {
		if plan, perr := parsePlan(response); perr == nil {
			return plan, outcomeAnswer
		} else {
			err = perr
		}
	}
	c.logger.Printf("trace=%s planner failed, using passthrough plan: %v", traceID, err)
	top := sources[0]
	title := top.Title
	if title == "" {
		title = "Untitled"
	}
	return render.Plan{
		Title:   title,
		ShowTOC: false,
		Sections: []render.Section{{
			ID:         "s1",
			Heading:    title,
			Paragraphs: []string{top.Text},
		}},
	}, outcomePlannerFallback
}

// finish renders, sanitizes and stores the answer page. The page is saved
// first with a placeholder id so the shell's canonical and download links can
// be rewritten with the real id, then the memo entry is recorded.
func (c *Composer) finish(ctx context.Context, req Request, key, traceID string, plan render.Plan, citations []render.Citation, images []render.Image, includeCitations bool) (Result, error) {
	article := render.Article(plan, citations, req.BrandClass, includeCitations, images)
	safe := render.Sanitize(article)
	// Markers are linkified even when the sources footer is off, so the body
	// never shows literal [n] text.
	safe = render.LinkCitations(safe, len(citations))

	title := plan.Title
	if title == "" {
		title = "Article"
	}

	shell := func(pageID string) (string, error) {
		return render.FullPage(render.PageInput{
			Title:        title,
			ArticleHTML:  safe,
			BrandClass:   req.BrandClass,
			BrandName:    c.cfg.Brand.Name,
			Primary:      req.PrimaryColor,
			TraceID:      traceID,
			PageID:       pageID,
			BaseURL:      req.BaseURL,
			ContactEmail: c.cfg.Brand.ContactEmail,
			ContactPhone: c.cfg.Brand.ContactPhone,
			ContactURL:   c.cfg.Brand.ContactURL,
		})
	}

	placeholder, err := shell("tmp")
	if err != nil {
		return Result{}, err
	}
	pageID, err := c.store.Save(ctx, title, placeholder)
	if err != nil {
		return Result{}, fmt.Errorf("failed to save page: %w", err)
	}
	final, err := shell(pageID)
	if err != nil {
		return Result{}, err
	}
	if err := c.store.Rewrite(ctx, pageID, final); err != nil {
		return Result{}, fmt.Errorf("failed to finalize page: %w", err)
	}
	if err := c.answers.Record(ctx, key, pageID); err != nil {
		c.logger.Printf("trace=%s memo record failed: %v", traceID, err)
	}
	return Result{ID: pageID, Title: title, TraceID: traceID}, nil
}

// findImages prefers attachments owned by the answering documents and falls
// back to keyword-scored site media.
func (c *Composer) findImages(ctx context.Context, question string, hits []rank.Source) []render.Image {
	ids := make([]int, 0, len(hits))
	seen := make(map[int]bool, len(hits))
	for _, h := range hits {
		if h.SourceID != 0 && !seen[h.SourceID] {
			seen[h.SourceID] = true
			ids = append(ids, h.SourceID)
		}
	}
	media := c.media.Attachments(ctx, ids, 3)
	if len(media) == 0 {
		media = c.media.ScoredMedia(ctx, question, 3)
	}
	images := make([]render.Image, 0, len(media))
	for _, m := range media {
		images = append(images, render.Image{URL: m.URL, Alt: m.Alt, Caption: m.Caption})
	}
	return images
}

func excerpt(hits []rank.Source, maxChars int) []rank.Source {
	out := make([]rank.Source, len(hits))
	copy(out, hits)
	for i := range out {
		if out[i].Title == "" {
			out[i].Title = "Untitled"
		}
		out[i].Text = truncate(out[i].Text, maxChars)
	}
	return out
}

// truncate cuts s to at most max bytes, backing off to a rune boundary so
// the excerpt never ends mid-character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// dedupeCitations keeps the first citation per normalized URL (or title when
// the URL is empty). Entries with neither are dropped.
func dedupeCitations(sources []rank.Source) []render.Citation {
	seen := make(map[string]bool, len(sources))
	out := make([]render.Citation, 0, len(sources))
	for _, s := range sources {
		key := s.URL
		if key == "" {
			key = s.Title
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, render.Citation{Title: s.Title, URL: s.URL})
	}
	return out
}

func noSourcesPlan() render.Plan {
	return render.Plan{
		Title:   "No sources available",
		ShowTOC: false,
		Sections: []render.Section{{
			ID:         "s1",
			Heading:    "Please try again",
			Paragraphs: []string{"We couldn't find any relevant sources from the site. Try rephrasing your question."},
		}},
	}
}

func lowConfidencePlan() render.Plan {
	return render.Plan{
		Title:   "We couldn’t find a confident answer",
		ShowTOC: false,
		Sections: []render.Section{{
			ID:         "s1",
			Heading:    "Try rephrasing your question",
			Paragraphs: []string{"We couldn’t confidently answer from the site’s content. Please rephrase or narrow the topic."},
		}},
	}
}
