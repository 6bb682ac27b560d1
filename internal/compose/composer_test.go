package compose

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pagewright/pagewright/config"
	"github.com/pagewright/pagewright/internal/page"
	"github.com/pagewright/pagewright/internal/rank"
	"github.com/pagewright/pagewright/internal/source"
)

type fakeSearcher struct {
	hits     []rank.Source
	topScore float64
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]rank.Source, error) {
	if k < len(f.hits) {
		return f.hits[:k], nil
	}
	return f.hits, nil
}

func (f *fakeSearcher) TopScore(ctx context.Context, query, text string) float64 {
	return f.topScore
}

type fakeMedia struct {
	attachments []source.Media
	scored      []source.Media
}

func (f *fakeMedia) Attachments(ctx context.Context, sourceIDs []int, limit int) []source.Media {
	return f.attachments
}

func (f *fakeMedia) ScoredMedia(ctx context.Context, query string, limit int) []source.Media {
	return f.scored
}

type fakePlanner struct {
	response string
	err      error
	calls    int
}

func (f *fakePlanner) Plan(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testConfig() config.Config {
	return config.Config{
		Rank: config.RankConfig{
			FinalDocs:       6,
			RerankThreshold: 0.20,
			ExcerptChars:    1800,
		},
		Pages: config.PagesConfig{
			PageTTL:   24 * time.Hour,
			AnswerTTL: 12 * time.Hour,
		},
		Brand: config.BrandConfig{
			Name:         "Acme",
			Class:        "acme",
			PrimaryColor: "#21808d",
			ContactEmail: "hi@example.com",
			ContactURL:   "https://example.com/contact",
		},
	}
}

func testRequest() Request {
	return Request{
		Question:         "How do solar panels work?",
		Layout:           "guide",
		IncludeCitations: true,
		BrandClass:       "acme",
		PrimaryColor:     "#21808d",
		BaseURL:          "https://answers.example.com",
	}
}

func goodHits() []rank.Source {
	return []rank.Source{
		{SourceID: 1, Title: "Solar 101", URL: "https://example.com/solar", Text: "Panels convert sunlight into electricity.", Score: 0.9},
		{SourceID: 2, Title: "Panel FAQ", URL: "https://example.com/faq", Text: "Inverters turn DC into AC.", Score: 0.6},
	}
}

const validPlanJSON = `{"title":"Solar Power","summary":"The basics.","show_toc":false,` +
	`"sections":[{"id":"s1","heading":"How it works","paragraphs":["Panels convert light. [1]"],"bullets":[]}]}`

func newTestComposer(s Searcher, p *fakePlanner) (*Composer, page.Store, page.AnswerCache) {
	cfg := testConfig()
	store := page.NewMemStore(cfg.Pages.PageTTL)
	answers := page.NewMemAnswerCache(cfg.Pages.AnswerTTL)
	return New(s, &fakeMedia{}, p, store, answers, cfg), store, answers
}

func TestComposeStoresFinalizedPage(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, store, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.9}, planner)

	res, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if res.Title != "Solar Power" {
		t.Fatalf("unexpected title %q", res.Title)
	}

	p, ok, _ := store.Get(context.Background(), res.ID)
	if !ok {
		t.Fatalf("page not stored")
	}
	if strings.Contains(p.HTML, "/v/tmp") {
		t.Fatalf("placeholder id survived finalization")
	}
	if !strings.Contains(p.HTML, "/v/"+res.ID) {
		t.Fatalf("final page does not reference its own id")
	}
	if !strings.Contains(p.HTML, `<sup class="cite"><a href="#src-1">1</a></sup>`) {
		t.Fatalf("citation marker not linkified")
	}
}

func TestComposeLinkifiesMarkersWithoutSourcesFooter(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, store, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.9}, planner)

	req := testRequest()
	req.IncludeCitations = false
	res, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}

	p, ok, _ := store.Get(context.Background(), res.ID)
	if !ok {
		t.Fatalf("page not stored")
	}
	if strings.Contains(p.HTML, "[1]") {
		t.Fatalf("literal marker left in body with citations disabled")
	}
	if !strings.Contains(p.HTML, `<sup class="cite"><a href="#src-1">1</a></sup>`) {
		t.Fatalf("marker not linkified with citations disabled")
	}
	if strings.Contains(p.HTML, `<li id="src-1">`) {
		t.Fatalf("sources footer rendered despite citations disabled")
	}
}

func TestComposeMemoizesIdenticalRequests(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, _, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.9}, planner)

	first, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	second, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("identical requests produced different pages: %s vs %s", first.ID, second.ID)
	}
	if planner.calls != 1 {
		t.Fatalf("expected a single planner call, got %d", planner.calls)
	}
	if first.TraceID != second.TraceID {
		t.Fatalf("trace id must be stable per question")
	}
}

func TestComposeQuestionNormalizationSharesMemo(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, _, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.9}, planner)

	req := testRequest()
	first, _ := c.Compose(context.Background(), req)

	req.Question = "  how DO solar   panels work?  "
	req.Question = strings.TrimSpace(req.Question)
	second, err := c.Compose(context.Background(), req)
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("normalized question missed the memo")
	}
}

func TestComposeNoSources(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, store, _ := newTestComposer(&fakeSearcher{}, planner)

	res, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if res.Title != "No sources available" {
		t.Fatalf("unexpected title %q", res.Title)
	}
	if planner.calls != 0 {
		t.Fatalf("planner must not run without sources")
	}
	if _, ok, _ := store.Get(context.Background(), res.ID); !ok {
		t.Fatalf("fallback page not stored")
	}
}

func TestComposeLowConfidence(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	c, _, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.05}, planner)

	res, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if res.Title != "We couldn’t find a confident answer" {
		t.Fatalf("unexpected title %q", res.Title)
	}
	if planner.calls != 0 {
		t.Fatalf("planner must not run below the confidence gate")
	}
}

func TestComposePlannerFailurePassthrough(t *testing.T) {
	planner := &fakePlanner{err: errors.New("provider down")}
	c, store, _ := newTestComposer(&fakeSearcher{hits: goodHits(), topScore: 0.9}, planner)

	res, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if res.Title != "Solar 101" {
		t.Fatalf("expected passthrough title from top source, got %q", res.Title)
	}
	p, _, _ := store.Get(context.Background(), res.ID)
	if !strings.Contains(p.HTML, "Panels convert sunlight into electricity.") {
		t.Fatalf("passthrough body missing from page")
	}
}

func TestComposeExpiredPageMissesMemo(t *testing.T) {
	planner := &fakePlanner{response: validPlanJSON}
	cfg := testConfig()
	store := page.NewMemStore(time.Nanosecond)
	answers := page.NewMemAnswerCache(cfg.Pages.AnswerTTL)
	c := New(&fakeSearcher{hits: goodHits(), topScore: 0.9}, &fakeMedia{}, planner, store, answers, cfg)

	first, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	second, err := c.Compose(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("compose failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatalf("memo served a page that had already expired")
	}
	if planner.calls != 2 {
		t.Fatalf("expected a fresh pipeline run, got %d planner calls", planner.calls)
	}
}

func TestFingerprintNormalization(t *testing.T) {
	a := Fingerprint("  How DO   panels Work? ", "guide", true, "acme", "#123")
	b := Fingerprint("how do panels work?", "guide", true, "acme", "#123")
	if a != b {
		t.Fatalf("whitespace and case must not change the fingerprint")
	}
	c := Fingerprint("how do panels work?", "guide", false, "acme", "#123")
	if a == c {
		t.Fatalf("citation toggle must change the fingerprint")
	}
	if len(a) != 24 {
		t.Fatalf("unexpected fingerprint length %d", len(a))
	}
}

func TestTraceIDStable(t *testing.T) {
	a := TraceID("How do panels work?")
	b := TraceID("How do panels work?")
	if a != b || len(a) != 16 {
		t.Fatalf("trace id unstable or wrong length: %q %q", a, b)
	}
	if a == TraceID("another question") {
		t.Fatalf("different questions must trace differently")
	}
}

func TestParsePlanWrappedInProse(t *testing.T) {
	resp := "Here is the plan:\n" + validPlanJSON + "\nHope that helps."
	plan, err := parsePlan(resp)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if plan.Title != "Solar Power" || len(plan.Sections) != 1 {
		t.Fatalf("unexpected plan %+v", plan)
	}
}

func TestParsePlanRejectsGarbage(t *testing.T) {
	if _, err := parsePlan("no json here"); err == nil {
		t.Fatalf("expected error for non-JSON response")
	}
	if _, err := parsePlan("{broken"); err == nil {
		t.Fatalf("expected error for unbalanced JSON")
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	s := strings.Repeat("é", 10)
	got := truncate(s, 5)
	if !utf8.ValidString(got) {
		t.Fatalf("truncate produced invalid UTF-8: %q", got)
	}
	if got != strings.Repeat("é", 2) {
		t.Fatalf("unexpected truncation %q", got)
	}
	if truncate("short", 100) != "short" {
		t.Fatalf("input below the limit must pass through")
	}
}

func TestDedupeCitations(t *testing.T) {
	hits := []rank.Source{
		{Title: "A", URL: "https://example.com/a"},
		{Title: "A again", URL: "HTTPS://EXAMPLE.COM/A"},
		{Title: "B", URL: ""},
		{Title: "b", URL: ""},
		{Title: "", URL: ""},
	}
	got := dedupeCitations(hits)
	if len(got) != 2 {
		t.Fatalf("expected 2 citations, got %d: %+v", len(got), got)
	}
	if got[0].Title != "A" || got[1].Title != "B" {
		t.Fatalf("first occurrence must win: %+v", got)
	}
}
