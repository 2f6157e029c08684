package driving

import "github.com/custodia-labs/knowledge-core/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings after validation.
	Save(settings *domain.AppSettings) error

	// SetChunking updates the chunk size and overlap. The overlap
	// must be smaller than the size.
	SetChunking(size, overlap int) error

	// SetEmbeddingProvider configures the embedding provider.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetRerankProvider configures the cross-encoder provider.
	SetRerankProvider(provider domain.AIProvider, model, apiKey string) error

	// SetRetrievalDefaults updates the default query parameters.
	SetRetrievalDefaults(retrieval domain.RetrievalSettings) error

	// Validate checks if current settings are internally consistent.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
	ValidateEmbeddingConfig() error

	// ValidateRerankConfig validates the current rerank configuration by pinging the provider.
	ValidateRerankConfig() error
}
