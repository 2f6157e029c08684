package ai

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
)

// Ensure Gateway implements the interface.
var _ driven.EmbeddingService = (*Gateway)(nil)

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 2 * time.Minute

// probeInput is embedded once at construction when a provider does not
// declare its dimension.
const probeInput = "dimension probe"

// GatewayConfig holds configuration for the embedding gateway.
type GatewayConfig struct {
	// Normalise enables L2 normalisation of returned vectors.
	// Similarity assumes unit-norm vectors.
	Normalise bool

	// CallTimeout bounds each provider call (default: 2m).
	CallTimeout time.Duration
}

// Gateway decorates a provider embedding service with the guarantees
// the services rely on: a dimension fixed at construction, zero
// vectors for empty input without a provider call, optional L2
// normalisation, and failures wrapped in ErrEmbedding.
type Gateway struct {
	provider   driven.EmbeddingService
	dimensions int
	normalise  bool
	timeout    time.Duration
}

// NewGateway wraps the provider. The dimension is taken from the
// provider, or probed with a sentinel input when the provider does not
// declare one.
func NewGateway(ctx context.Context, provider driven.EmbeddingService, cfg GatewayConfig) (*Gateway, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: no embedding provider", domain.ErrEmbedding)
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	dimensions := provider.Dimensions()
	if dimensions <= 0 {
		probeCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
		defer cancel()

		probe, err := provider.Embed(probeCtx, probeInput)
		if err != nil {
			return nil, fmt.Errorf("%w: probing dimension: %w", domain.ErrEmbedding, err)
		}
		if len(probe) == 0 {
			return nil, fmt.Errorf("%w: provider returned an empty probe vector", domain.ErrEmbedding)
		}
		dimensions = len(probe)
	}

	return &Gateway{
		provider:   provider,
		dimensions: dimensions,
		normalise:  cfg.Normalise,
		timeout:    cfg.CallTimeout,
	}, nil
}

// Embed generates a vector embedding for the given text. Empty or
// whitespace-only text maps to the all-zero vector without a provider
// call.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, g.dimensions), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	embedding, err := g.provider.Embed(callCtx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	return g.conform(embedding)
}

// EmbedBatch generates embeddings for multiple texts. Empty texts are
// filtered out before the provider call and their zero vectors are
// re-inserted positionally.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	indices := make([]int, 0, len(texts))
	payload := make([]string, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			indices = append(indices, i)
			payload = append(payload, text)
		}
	}

	embeddings := make([][]float32, len(texts))
	for i := range embeddings {
		embeddings[i] = make([]float32, g.dimensions)
	}
	if len(payload) == 0 {
		return embeddings, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	batch, err := g.provider.EmbedBatch(callCtx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(batch) != len(payload) {
		return nil, fmt.Errorf("%w: provider returned %d embeddings for %d texts",
			domain.ErrEmbedding, len(batch), len(payload))
	}

	for i, embedding := range batch {
		conformed, err := g.conform(embedding)
		if err != nil {
			return nil, err
		}
		embeddings[indices[i]] = conformed
	}
	return embeddings, nil
}

// Similarity returns the dot product of two embeddings clipped to
// [0, 1]. With normalisation enabled this is cosine similarity with
// negative values treated as zero.
func (g *Gateway) Similarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	if dot < 0 {
		return 0
	}
	if dot > 1 {
		return 1
	}
	return dot
}

// Dimensions returns the embedding vector size fixed at construction.
func (g *Gateway) Dimensions() int {
	return g.dimensions
}

// ModelName returns the name of the underlying embedding model.
func (g *Gateway) ModelName() string {
	return g.provider.ModelName()
}

// Ping validates the underlying provider is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.provider.Ping(ctx)
}

// Close releases the underlying provider.
func (g *Gateway) Close() error {
	return g.provider.Close()
}

// conform enforces the fixed dimension and applies normalisation.
func (g *Gateway) conform(embedding []float32) ([]float32, error) {
	if len(embedding) != g.dimensions {
		return nil, fmt.Errorf("%w: provider returned %d dimensions, want %d",
			domain.ErrEmbedding, len(embedding), g.dimensions)
	}
	if g.normalise {
		l2Normalise(embedding)
	}
	return embedding, nil
}

// l2Normalise scales the vector to unit length in place. Zero vectors
// are left untouched.
func l2Normalise(embedding []float32) {
	var sum float64
	for _, v := range embedding {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range embedding {
		embedding[i] = float32(float64(embedding[i]) / norm)
	}
}
