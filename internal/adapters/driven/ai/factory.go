// Package ai provides factory functions for creating AI service
// adapters, and the embedding gateway the services consume.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/adapters/driven/config/dotenv"
	ollamaembed "github.com/custodia-labs/knowledge-core/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/knowledge-core/internal/adapters/driven/embedding/openai"
	cohererank "github.com/custodia-labs/knowledge-core/internal/adapters/driven/rerank/cohere"
	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// Environment variables consulted when settings carry no API key.
// Resolution goes through the dotenv loader so .env files work too.
const (
	openaiKeyEnv = "OPENAI_API_KEY"
	cohereKeyEnv = "COHERE_API_KEY"
)

// CreateAndValidateEmbeddingService creates an embedding provider,
// validates connectivity, and returns it wrapped in the gateway.
// Returns nil without error when the provider is not configured.
func CreateAndValidateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable: %w", domain.ErrEmbedding, err)
	}

	gateway, err := NewGateway(ctx, svc, GatewayConfig{Normalise: settings.Normalise})
	if err != nil {
		svc.Close()
		return nil, err
	}
	return gateway, nil
}

// CreateAndValidateRelevanceScorer creates a rerank provider and
// validates connectivity. Returns nil without error when the provider
// is not configured.
func CreateAndValidateRelevanceScorer(settings *domain.RerankSettings) (driven.RelevanceScorer, error) {
	svc, err := CreateRelevanceScorer(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrReranking, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable: %w", domain.ErrReranking, err)
	}
	return svc, nil
}

// ValidateEmbeddingConfig validates an embedding configuration by creating a service and pinging it.
// This is intended for validating credentials when settings change.
func ValidateEmbeddingConfig(settings *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// ValidateRerankConfig validates a rerank configuration by creating a service and pinging it.
// This is intended for validating credentials when settings change.
func ValidateRerankConfig(settings *domain.RerankSettings) error {
	svc, err := CreateRelevanceScorer(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateEmbeddingService creates the appropriate embedding provider
// based on settings, without the gateway wrapper.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil {
		return nil, nil
	}

	resolved := *settings
	if resolved.APIKey == "" {
		resolved.APIKey = dotenv.Getenv(openaiKeyEnv)
	}
	if !resolved.IsConfigured() {
		return nil, nil
	}

	switch resolved.Provider {
	case domain.AIProviderOllama:
		return createOllamaEmbedding(&resolved), nil

	case domain.AIProviderOpenAI:
		return createOpenAIEmbedding(&resolved)

	case domain.AIProviderCohere:
		// Cohere only serves reranking here.
		return nil, fmt.Errorf("cohere does not support embeddings, use ollama or openai")

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", resolved.Provider)
	}
}

// CreateRelevanceScorer creates the appropriate rerank provider based
// on settings. Returns nil if the provider is not configured.
func CreateRelevanceScorer(settings *domain.RerankSettings) (driven.RelevanceScorer, error) {
	if settings == nil {
		return nil, nil
	}

	resolved := *settings
	if resolved.APIKey == "" {
		resolved.APIKey = dotenv.Getenv(cohereKeyEnv)
	}
	if !resolved.IsConfigured() {
		return nil, nil
	}

	switch resolved.Provider {
	case domain.AIProviderCohere:
		return cohererank.NewRelevanceScorer(cohererank.Config{
			APIKey:  resolved.APIKey,
			BaseURL: resolved.BaseURL,
			Model:   resolved.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported rerank provider: %s", resolved.Provider)
	}
}

// createOllamaEmbedding creates an Ollama embedding service.
func createOllamaEmbedding(settings *domain.EmbeddingSettings) driven.EmbeddingService {
	dimensions := domain.EmbeddingDimensions()[settings.Model]
	if dimensions == 0 {
		dimensions = ollamaembed.DefaultDimensions
	}

	return ollamaembed.NewEmbeddingService(ollamaembed.Config{
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Dimensions:        dimensions,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}

// createOpenAIEmbedding creates an OpenAI embedding service.
func createOpenAIEmbedding(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	dimensions := domain.EmbeddingDimensions()[settings.Model]

	return openaiembed.NewEmbeddingService(openaiembed.Config{
		APIKey:            settings.APIKey,
		BaseURL:           settings.BaseURL,
		Model:             settings.Model,
		Dimensions:        dimensions,
		RequestsPerSecond: settings.RequestsPerSecond,
	})
}
