package cohere_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pagewright/pagewright/config"
	"github.com/pagewright/pagewright/provider"
)

// Client implements the Reranker and Planner capabilities using Cohere's API
type Client struct {
	apiKey       string
	baseURL      string
	rerankModel  string
	plannerModel string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
}

// New creates a new Cohere client
func New(cfg config.CohereConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		rerankModel:  cfg.RerankModel,
		plannerModel: cfg.PlannerModel,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Rerank scores documents against the query using Cohere's rerank endpoint
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]provider.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	requestBody := map[string]interface{}{
		"model":     c.rerankModel,
		"query":     query,
		"documents": documents,
	}
	if topN > 0 {
		requestBody["top_n"] = topN
	}

	var rerankResp struct {
		Results []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := c.post(ctx, "/v1/rerank", requestBody, &rerankResp); err != nil {
		return nil, err
	}

	results := make([]provider.RerankResult, 0, len(rerankResp.Results))
	for _, r := range rerankResp.Results {
		results = append(results, provider.RerankResult{Index: r.Index, RelevanceScore: r.RelevanceScore})
	}
	return results, nil
}

// Plan sends the planning prompt to Cohere's chat endpoint and returns the
// raw response text
func (c *Client) Plan(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]interface{}{
		"model":       c.plannerModel,
		"message":     prompt,
		"temperature": c.temperature,
	}
	if c.maxTokens > 0 {
		requestBody["max_tokens"] = c.maxTokens
	}

	var chatResp struct {
		Text string `json:"text"`
	}
	if err := c.post(ctx, "/v1/chat", requestBody, &chatResp); err != nil {
		return "", err
	}
	if strings.TrimSpace(chatResp.Text) == "" {
		return "", fmt.Errorf("empty planner response")
	}
	return chatResp.Text, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(b))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
