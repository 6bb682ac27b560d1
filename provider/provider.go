package provider

import "context"

// RerankResult is one scored candidate from a rerank call. Index refers to
// the position in the submitted document list.
type RerankResult struct {
	Index          int
	RelevanceScore float64
}

// Reranker scores candidate texts against a query, most relevant first.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// Planner produces free-form text expected to contain exactly one JSON
// object matching the content-plan schema.
type Planner interface {
	Plan(ctx context.Context, prompt string) (string, error)
}
