package rank

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/pagewright/pagewright/internal/source"
	"github.com/pagewright/pagewright/provider"
)

// Corpus supplies the chunks to rank plus a generation token that changes
// whenever the underlying snapshot does.
type Corpus interface {
	Documents(ctx context.Context) ([]source.Chunk, uint64)
}

// Source is one ranked retrieval result.
type Source struct {
	SourceID int
	Title    string
	URL      string
	Text     string
	Score    float64
}

// indexedChunk is the shape actually stored in the lexical index. Only the
// chunk text participates in scoring.
type indexedChunk struct {
	Text string `json:"text"`
}

// Engine ranks cached chunks lexically and reranks the candidates with the
// semantic capability. Reranking is an enhancement: any rerank failure falls
// back to the lexical ordering.
type Engine struct {
	corpus   Corpus
	reranker provider.Reranker
	logger   *log.Logger

	mu    sync.Mutex
	index bleve.Index
	docs  []source.Chunk
	gen   uint64
}

// New creates a ranking engine over the given corpus.
func New(corpus Corpus, reranker provider.Reranker) *Engine {
	return &Engine{
		corpus:   corpus,
		reranker: reranker,
		logger:   log.New(log.Writer(), "[RANK] ", log.LstdFlags),
	}
}

// ensureIndex rebuilds the in-memory lexical index when the corpus
// generation has moved. Chunk ids are zero-padded corpus positions so equal
// scores resolve in corpus order.
func (e *Engine) ensureIndex(ctx context.Context) ([]source.Chunk, bleve.Index, error) {
	docs, gen := e.corpus.Documents(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index != nil && gen == e.gen && len(docs) == len(e.docs) {
		return e.docs, e.index, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build lexical index: %w", err)
	}
	for i, chunk := range docs {
		if err := index.Index(chunkID(i), indexedChunk{Text: chunk.Text}); err != nil {
			_ = index.Close()
			return nil, nil, fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
	}

	// The old index is dropped without Close: a concurrent Search may still
	// hold its handle, and mem-only indexes free with the last reference.
	e.index = index
	e.docs = docs
	e.gen = gen
	return docs, index, nil
}

func chunkID(i int) string {
	return fmt.Sprintf("%08d", i)
}

// Search returns the top k sources for the query. Candidates are the top
// max(5k, k) chunks by lexical score; the reranker keeps the best k of them.
// An empty corpus yields an empty result.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Source, error) {
	if k <= 0 {
		return nil, nil
	}
	docs, index, err := e.ensureIndex(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	m := 5 * k
	if m < k {
		m = k
	}
	if m > len(docs) {
		m = len(docs)
	}

	candidates, scores, err := e.lexicalTopM(ctx, index, docs, query, m)
	if err != nil {
		return nil, err
	}

	if k > len(candidates) {
		k = len(candidates)
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	results, err := e.reranker.Rerank(ctx, query, texts, k)
	if err != nil || len(results) == 0 {
		if err != nil {
			e.logger.Printf("rerank failed, using lexical order: %v", err)
		}
		return toSources(candidates[:k], scores[:k]), nil
	}

	out := make([]Source, 0, k)
	picked := make(map[int]bool, k)
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) || picked[r.Index] {
			continue
		}
		picked[r.Index] = true
		c := candidates[r.Index]
		out = append(out, Source{SourceID: c.SourceID, Title: c.Title, URL: c.URL, Text: c.Text, Score: r.RelevanceScore})
		if len(out) >= k {
			break
		}
	}
	if len(out) == 0 {
		return toSources(candidates[:k], scores[:k]), nil
	}
	return out, nil
}

// lexicalTopM returns the top m chunks by lexical score. When the query
// matches fewer than m chunks, the remainder is padded with unmatched chunks
// in corpus order at score zero, so a non-empty corpus always yields a full
// candidate list.
func (e *Engine) lexicalTopM(ctx context.Context, index bleve.Index, docs []source.Chunk, query string, m int) ([]source.Chunk, []float64, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), m, 0, false)
	res, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, nil, fmt.Errorf("lexical search failed: %w", err)
	}

	candidates := make([]source.Chunk, 0, m)
	scores := make([]float64, 0, m)
	seen := make(map[string]bool, len(res.Hits))
	for _, hit := range res.Hits {
		var pos int
		if _, err := fmt.Sscanf(hit.ID, "%d", &pos); err != nil || pos < 0 || pos >= len(docs) {
			continue
		}
		seen[hit.ID] = true
		candidates = append(candidates, docs[pos])
		scores = append(scores, hit.Score)
	}
	for i := 0; len(candidates) < m && i < len(docs); i++ {
		if seen[chunkID(i)] {
			continue
		}
		candidates = append(candidates, docs[i])
		scores = append(scores, 0)
	}
	return candidates, scores, nil
}

func toSources(chunks []source.Chunk, scores []float64) []Source {
	out := make([]Source, 0, len(chunks))
	for i, c := range chunks {
		out = append(out, Source{SourceID: c.SourceID, Title: c.Title, URL: c.URL, Text: c.Text, Score: scores[i]})
	}
	return out
}

// TopScore reranks a single candidate to probe answer confidence, returning
// a score in [0,1]. A probe failure never blocks an answer: it reports 1.0.
func (e *Engine) TopScore(ctx context.Context, query, text string) float64 {
	results, err := e.reranker.Rerank(ctx, query, []string{text}, 1)
	if err != nil || len(results) == 0 {
		if err != nil {
			e.logger.Printf("confidence probe failed: %v", err)
		}
		return 1.0
	}
	score := results[0].RelevanceScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
