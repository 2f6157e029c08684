package services

import (
	"fmt"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driven"
	"github.com/custodia-labs/knowledge-core/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize          = "chunking.size"
	keyChunkOverlap       = "chunking.overlap"
	keyEmbedProvider      = "embedding.provider"
	keyEmbedModel         = "embedding.model"
	keyEmbedBaseURL       = "embedding.base_url"
	keyEmbedAPIKey        = "embedding.api_key"
	keyEmbedNormalise     = "embedding.normalise"
	keyEmbedRate          = "embedding.requests_per_second"
	keyRerankProvider     = "rerank.provider"
	keyRerankModel        = "rerank.model"
	keyRerankBaseURL      = "rerank.base_url"
	keyRerankAPIKey       = "rerank.api_key"
	keyTopK               = "retrieval.top_k"
	keyRerankTopK         = "retrieval.rerank_top_k"
	keyMinScore           = "retrieval.min_score"
	keyVectorWeight       = "retrieval.vector_weight"
	keyKeywordWeight      = "retrieval.keyword_weight"
	keyMMRLambda          = "retrieval.mmr_lambda"
	keyStorageDriver      = "storage.driver"
	keyStoragePath        = "storage.path"
	keyStorageDSN         = "storage.dsn"
	keyStorageCollection  = "storage.collection"
	keyIndexEngine        = "keyword_index.engine"
	keyIndexPath          = "keyword_index.path"
	keyPipelineProcessors = "pipeline.processors"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:    s.getInt(keyChunkSize, defaults.Chunking.Size),
			Overlap: s.getInt(keyChunkOverlap, defaults.Chunking.Overlap),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:          s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:             s.getString(keyEmbedModel, defaults.Embedding.Model),
			BaseURL:           s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:            s.configStore.GetString(keyEmbedAPIKey),
			Normalise:         s.getBool(keyEmbedNormalise, defaults.Embedding.Normalise),
			RequestsPerSecond: s.getFloat(keyEmbedRate, defaults.Embedding.RequestsPerSecond),
		},
		Rerank: domain.RerankSettings{
			Provider: s.getProvider(keyRerankProvider, defaults.Rerank.Provider),
			Model:    s.getString(keyRerankModel, defaults.Rerank.Model),
			BaseURL:  s.configStore.GetString(keyRerankBaseURL),
			APIKey:   s.configStore.GetString(keyRerankAPIKey),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:          s.getInt(keyTopK, defaults.Retrieval.TopK),
			RerankTopK:    s.getInt(keyRerankTopK, defaults.Retrieval.RerankTopK),
			MinScore:      s.getFloat(keyMinScore, defaults.Retrieval.MinScore),
			VectorWeight:  s.getFloat(keyVectorWeight, defaults.Retrieval.VectorWeight),
			KeywordWeight: s.getFloat(keyKeywordWeight, defaults.Retrieval.KeywordWeight),
			MMRLambda:     s.getFloat(keyMMRLambda, defaults.Retrieval.MMRLambda),
		},
		Storage: domain.StorageSettings{
			Driver:     s.getDriver(keyStorageDriver, defaults.Storage.Driver),
			Path:       s.getString(keyStoragePath, defaults.Storage.Path),
			DSN:        s.configStore.GetString(keyStorageDSN),
			Collection: s.getString(keyStorageCollection, defaults.Storage.Collection),
		},
		KeywordIndex: domain.KeywordIndexSettings{
			Engine: s.configStore.GetString(keyIndexEngine), // No default - empty disables the index
			Path:   s.configStore.GetString(keyIndexPath),
		},
	}

	return settings, nil
}

// Save persists application settings after validation.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	// Save chunking settings
	if err := s.configStore.Set(keyChunkSize, settings.Chunking.Size); err != nil {
		return fmt.Errorf("save chunk size: %w", err)
	}
	if err := s.configStore.Set(keyChunkOverlap, settings.Chunking.Overlap); err != nil {
		return fmt.Errorf("save chunk overlap: %w", err)
	}

	// Save embedding settings
	if err := s.configStore.Set(keyEmbedProvider, settings.Embedding.Provider.String()); err != nil {
		return fmt.Errorf("save embedding provider: %w", err)
	}
	if err := s.configStore.Set(keyEmbedModel, settings.Embedding.Model); err != nil {
		return fmt.Errorf("save embedding model: %w", err)
	}
	if err := s.configStore.Set(keyEmbedBaseURL, settings.Embedding.BaseURL); err != nil {
		return fmt.Errorf("save embedding base_url: %w", err)
	}
	if settings.Embedding.APIKey != "" {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if err := s.configStore.Set(keyEmbedNormalise, settings.Embedding.Normalise); err != nil {
		return fmt.Errorf("save embedding normalise: %w", err)
	}
	if err := s.configStore.Set(keyEmbedRate, settings.Embedding.RequestsPerSecond); err != nil {
		return fmt.Errorf("save embedding requests_per_second: %w", err)
	}

	// Save rerank settings
	if err := s.configStore.Set(keyRerankProvider, settings.Rerank.Provider.String()); err != nil {
		return fmt.Errorf("save rerank provider: %w", err)
	}
	if err := s.configStore.Set(keyRerankModel, settings.Rerank.Model); err != nil {
		return fmt.Errorf("save rerank model: %w", err)
	}
	if err := s.configStore.Set(keyRerankBaseURL, settings.Rerank.BaseURL); err != nil {
		return fmt.Errorf("save rerank base_url: %w", err)
	}
	if settings.Rerank.APIKey != "" {
		if err := s.configStore.Set(keyRerankAPIKey, settings.Rerank.APIKey); err != nil {
			return fmt.Errorf("save rerank api_key: %w", err)
		}
	}

	// Save retrieval settings
	if err := s.configStore.Set(keyTopK, settings.Retrieval.TopK); err != nil {
		return fmt.Errorf("save top_k: %w", err)
	}
	if err := s.configStore.Set(keyRerankTopK, settings.Retrieval.RerankTopK); err != nil {
		return fmt.Errorf("save rerank_top_k: %w", err)
	}
	if err := s.configStore.Set(keyMinScore, settings.Retrieval.MinScore); err != nil {
		return fmt.Errorf("save min_score: %w", err)
	}
	if err := s.configStore.Set(keyVectorWeight, settings.Retrieval.VectorWeight); err != nil {
		return fmt.Errorf("save vector_weight: %w", err)
	}
	if err := s.configStore.Set(keyKeywordWeight, settings.Retrieval.KeywordWeight); err != nil {
		return fmt.Errorf("save keyword_weight: %w", err)
	}
	if err := s.configStore.Set(keyMMRLambda, settings.Retrieval.MMRLambda); err != nil {
		return fmt.Errorf("save mmr_lambda: %w", err)
	}

	// Save storage settings
	if err := s.configStore.Set(keyStorageDriver, settings.Storage.Driver.String()); err != nil {
		return fmt.Errorf("save storage driver: %w", err)
	}
	if err := s.configStore.Set(keyStoragePath, settings.Storage.Path); err != nil {
		return fmt.Errorf("save storage path: %w", err)
	}
	if err := s.configStore.Set(keyStorageDSN, settings.Storage.DSN); err != nil {
		return fmt.Errorf("save storage dsn: %w", err)
	}
	if err := s.configStore.Set(keyStorageCollection, settings.Storage.Collection); err != nil {
		return fmt.Errorf("save storage collection: %w", err)
	}

	// Save keyword index settings
	if err := s.configStore.Set(keyIndexEngine, settings.KeywordIndex.Engine); err != nil {
		return fmt.Errorf("save keyword index engine: %w", err)
	}
	if err := s.configStore.Set(keyIndexPath, settings.KeywordIndex.Path); err != nil {
		return fmt.Errorf("save keyword index path: %w", err)
	}

	return nil
}

// SetChunking updates the chunk size and overlap.
func (s *SettingsService) SetChunking(size, overlap int) error {
	chunking := domain.ChunkingSettings{Size: size, Overlap: overlap}
	if err := chunking.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Chunking = chunking
	return s.Save(settings)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrConfiguration, provider)
	}

	// Validate provider supports embeddings
	supported := false
	for _, p := range domain.AllEmbeddingProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrConfiguration, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrConfiguration, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Embedding.Model = model
	} else if defaultModel, ok := domain.DefaultEmbeddingModels()[provider]; ok {
		settings.Embedding.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		// Local providers need a base URL
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = "http://localhost:11434"
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	// Set API key
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetRerankProvider configures the cross-encoder provider.
func (s *SettingsService) SetRerankProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid rerank provider: %s", domain.ErrConfiguration, provider)
	}

	// Validate provider supports reranking
	supported := false
	for _, p := range domain.AllRerankProviders() {
		if p == provider {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w: provider %s does not support reranking", domain.ErrConfiguration, provider)
	}

	// Validate API key if required
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrConfiguration, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Rerank.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Rerank.Model = model
	} else if defaultModel, ok := domain.DefaultRerankModels()[provider]; ok {
		settings.Rerank.Model = defaultModel
	}

	// Set base URL based on provider type
	if provider.IsLocal() {
		if settings.Rerank.BaseURL == "" {
			settings.Rerank.BaseURL = "http://localhost:11434"
		}
	} else {
		settings.Rerank.BaseURL = ""
	}

	// Set API key
	settings.Rerank.APIKey = apiKey

	return s.Save(settings)
}

// SetRetrievalDefaults updates the default query parameters.
func (s *SettingsService) SetRetrievalDefaults(retrieval domain.RetrievalSettings) error {
	if err := retrieval.Validate(); err != nil {
		return err
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Retrieval = retrieval
	return s.Save(settings)
}

// Validate checks if current settings are internally consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateRerankConfig validates the current rerank configuration by pinging the provider.
func (s *SettingsService) ValidateRerankConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateRerank(&settings.Rerank)
}

// GetPipelineConfig returns the post-processor pipeline configuration.
// The chunker inherits the chunking settings; explicit pipeline.* keys
// override per processor.
func (s *SettingsService) GetPipelineConfig() domain.PipelineConfig {
	cfg := domain.DefaultPipelineConfig()

	settings, _ := s.Get()
	cfg.ProcessorConfigs["chunker"] = map[string]any{
		"chunk_size": settings.Chunking.Size,
		"overlap":    settings.Chunking.Overlap,
	}

	if processors := s.configStore.GetStringSlice(keyPipelineProcessors); len(processors) > 0 {
		cfg.Processors = processors
	}

	for _, name := range cfg.Processors {
		overrides := s.loadProcessorConfig("pipeline." + name + ".")
		if len(overrides) == 0 {
			continue
		}
		if cfg.ProcessorConfigs == nil {
			cfg.ProcessorConfigs = make(map[string]map[string]any)
		}
		existing := cfg.ProcessorConfigs[name]
		if existing == nil {
			existing = make(map[string]any)
		}
		for k, v := range overrides {
			existing[k] = v
		}
		cfg.ProcessorConfigs[name] = existing
	}

	return cfg
}

// loadProcessorConfig loads config keys with a given prefix into a map.
func (s *SettingsService) loadProcessorConfig(prefix string) map[string]any {
	cfg := make(map[string]any)

	// Check common processor config keys
	knownKeys := []string{"chunk_size", "overlap"}
	for _, key := range knownKeys {
		if val, exists := s.configStore.Get(prefix + key); exists {
			cfg[key] = val
		}
	}

	return cfg
}

// Helper methods for reading config with defaults. Presence decides,
// not the zero value, so a stored 0 or false survives a round trip.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getDriver(key string, defaultVal domain.StorageDriver) domain.StorageDriver {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	driver := domain.StorageDriver(val)
	if !driver.IsValid() {
		return defaultVal
	}
	return driver
}
