// Package cohere provides a relevance scorer adapter using the Cohere
// rerank API.
package cohere

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure RelevanceScorer implements the interface.
var _ driven.RelevanceScorer = (*RelevanceScorer)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.cohere.com"
	DefaultModel   = "rerank-multilingual-v3.0"
	DefaultTimeout = 30 * time.Second
)

// Config holds configuration for the Cohere relevance scorer.
type Config struct {
	// APIKey is the Cohere API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.cohere.com).
	BaseURL string

	// Model is the rerank model to use (default: rerank-multilingual-v3.0).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration

	// RequestsPerSecond throttles API calls client-side.
	// Zero disables throttling.
	RequestsPerSecond float64
}

// RelevanceScorer scores query-passage pairs using the Cohere rerank API.
type RelevanceScorer struct {
	client  *http.Client
	limiter *rate.Limiter
	baseURL string
	apiKey  string
	model   string
}

// rerankRequest is the Cohere v2 rerank request format.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse is the Cohere v2 rerank response format.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// NewRelevanceScorer creates a new Cohere relevance scorer.
func NewRelevanceScorer(cfg Config) (*RelevanceScorer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &RelevanceScorer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: limiter,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Score rates every passage against the query in one batch. The result
// corresponds positionally to the passages.
func (s *RelevanceScorer) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqBody := rerankRequest{
		Model:     s.model,
		Query:     query,
		Documents: passages,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v2/rerank",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if rerankResp.Message != "" {
			return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, rerankResp.Message)
		}
		return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, string(body))
	}

	// The API returns results ranked by relevance; map back to input order.
	scores := make([]float64, len(passages))
	for _, result := range rerankResp.Results {
		if result.Index < 0 || result.Index >= len(scores) {
			return nil, fmt.Errorf("cohere: result index %d out of range", result.Index)
		}
		scores[result.Index] = result.RelevanceScore
	}

	return scores, nil
}

// ModelName returns the name of the rerank model being used.
func (s *RelevanceScorer) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (s *RelevanceScorer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("cohere: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("cohere: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cohere: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *RelevanceScorer) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
