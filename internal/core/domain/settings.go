package domain

import "fmt"

const unknownDescription = "Unknown"

// AIProvider identifies an external AI service provider.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderCohere is the Cohere cloud API (reranking).
	AIProviderCohere AIProvider = "cohere"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderCohere:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderCohere
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderCohere:
		return "Cohere (cloud)"
	default:
		return unknownDescription
	}
}

// StorageDriver identifies a vector store backend.
type StorageDriver string

// Available storage drivers.
const (
	// StorageSQLite is the embedded single-file store.
	StorageSQLite StorageDriver = "sqlite"

	// StoragePostgres is a PostgreSQL server with the pgvector extension.
	StoragePostgres StorageDriver = "postgres"

	// StorageMemory is the ephemeral in-process store.
	StorageMemory StorageDriver = "memory"
)

// IsValid returns true if the storage driver is recognised.
func (d StorageDriver) IsValid() bool {
	switch d {
	case StorageSQLite, StoragePostgres, StorageMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d StorageDriver) String() string {
	return string(d)
}

// ChunkingSettings holds text splitting configuration.
type ChunkingSettings struct {
	// Size is the maximum chunk length in runes.
	Size int

	// Overlap is the rune overlap between consecutive chunks.
	Overlap int
}

// Validate rejects unusable chunking parameters.
func (c ChunkingSettings) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: chunk overlap must be non-negative, got %d", ErrConfiguration, c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrConfiguration, c.Overlap, c.Size)
	}
	return nil
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama, or an OpenAI-compatible host).
	BaseURL string

	// APIKey is the API key (for OpenAI). Resolved from the
	// environment when empty.
	APIKey string

	// Normalise enables L2 normalisation of returned vectors.
	Normalise bool

	// RequestsPerSecond caps outbound API calls. Zero means no cap.
	RequestsPerSecond float64
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// RerankSettings holds cross-encoder provider configuration.
type RerankSettings struct {
	// Provider is the reranking service provider.
	Provider AIProvider

	// Model is the rerank model name.
	Model string

	// BaseURL is the API endpoint. Empty uses the provider default.
	BaseURL string

	// APIKey is the API key. Resolved from the environment when empty.
	APIKey string
}

// IsConfigured returns true if the rerank provider is set up.
func (r RerankSettings) IsConfigured() bool {
	if !r.Provider.IsValid() {
		return false
	}
	if r.Provider.RequiresAPIKey() && r.APIKey == "" {
		return false
	}
	return true
}

// RetrievalSettings holds default query parameters.
type RetrievalSettings struct {
	// TopK is the default result count for retrieval.
	TopK int

	// RerankTopK is the default result count after reranking.
	RerankTopK int

	// MinScore drops results below the similarity threshold.
	MinScore float64

	// VectorWeight is the hybrid retrieval vector multiplier.
	VectorWeight float64

	// KeywordWeight is the hybrid retrieval keyword multiplier.
	KeywordWeight float64

	// MMRLambda balances relevance against diversity in MMR.
	MMRLambda float64
}

// Validate rejects unusable retrieval defaults.
func (r RetrievalSettings) Validate() error {
	if r.TopK <= 0 {
		return fmt.Errorf("%w: top-k must be positive, got %d", ErrConfiguration, r.TopK)
	}
	if r.RerankTopK <= 0 {
		return fmt.Errorf("%w: rerank top-k must be positive, got %d", ErrConfiguration, r.RerankTopK)
	}
	if r.MinScore < 0 || r.MinScore > 1 {
		return fmt.Errorf("%w: min score must be between 0 and 1, got %v", ErrConfiguration, r.MinScore)
	}
	if r.VectorWeight < 0 || r.KeywordWeight < 0 {
		return fmt.Errorf("%w: retrieval weights must be non-negative", ErrConfiguration)
	}
	if r.MMRLambda < 0 || r.MMRLambda > 1 {
		return fmt.Errorf("%w: mmr lambda must be between 0 and 1, got %v", ErrConfiguration, r.MMRLambda)
	}
	return nil
}

// StorageSettings holds vector store configuration.
type StorageSettings struct {
	// Driver selects the store backend.
	Driver StorageDriver

	// Path is the database file path (sqlite).
	Path string

	// DSN is the connection string (postgres).
	DSN string

	// Collection names the record collection.
	Collection string
}

// KeywordIndexSettings holds optional full-text index configuration.
type KeywordIndexSettings struct {
	// Engine selects the index backend. Empty disables the index and
	// keyword retrieval falls back to scanning the vector store.
	Engine string

	// Path is the on-disk index location. Empty keeps the index in
	// memory.
	Path string
}

// Enabled returns true when a keyword index engine is configured.
func (k KeywordIndexSettings) Enabled() bool {
	return k.Engine != ""
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Chunking holds text splitting settings.
	Chunking ChunkingSettings

	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// Rerank holds cross-encoder provider settings.
	Rerank RerankSettings

	// Retrieval holds default query parameters.
	Retrieval RetrievalSettings

	// Storage holds vector store settings.
	Storage StorageSettings

	// KeywordIndex holds optional full-text index settings.
	KeywordIndex KeywordIndexSettings
}

// Validate checks cross-field consistency.
func (s AppSettings) Validate() error {
	if err := s.Chunking.Validate(); err != nil {
		return err
	}
	if err := s.Retrieval.Validate(); err != nil {
		return err
	}
	if !s.Storage.Driver.IsValid() {
		return fmt.Errorf("%w: unknown storage driver %q", ErrConfiguration, s.Storage.Driver)
	}
	return nil
}

// DefaultAppSettings returns settings with sensible defaults.
// Cloud providers are left without API keys; keys are resolved from
// the environment at construction time.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingSettings{
			Provider:  AIProviderOllama,
			Model:     "nomic-embed-text",
			BaseURL:   "http://localhost:11434",
			Normalise: true,
		},
		Rerank: RerankSettings{
			Provider: AIProviderCohere,
			Model:    "rerank-multilingual-v3.0",
		},
		Retrieval: RetrievalSettings{
			TopK:          5,
			RerankTopK:    10,
			MinScore:      0.0,
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
			MMRLambda:     0.5,
		},
		Storage: StorageSettings{
			Driver:     StorageSQLite,
			Path:       "knowledge.db",
			Collection: "knowledge_base",
		},
		KeywordIndex: KeywordIndexSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllRerankProviders returns providers that support reranking.
func AllRerankProviders() []AIProvider {
	return []AIProvider{
		AIProviderCohere,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultRerankModels returns default models for each rerank provider.
func DefaultRerankModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderCohere: "rerank-multilingual-v3.0",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
// Unknown models are probed at gateway construction instead.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}

// PipelineConfig holds post-processor pipeline configuration.
// Uses generic map-based config for extensibility - new processors can be added
// without modifying this struct.
type PipelineConfig struct {
	// Processors is the ordered list of processor names to run.
	Processors []string

	// ProcessorConfigs holds per-processor configuration as generic maps.
	// Key is processor name, value is processor-specific config.
	ProcessorConfigs map[string]map[string]any
}

// GetProcessorConfig returns config for a specific processor, or nil if not set.
func (c *PipelineConfig) GetProcessorConfig(name string) map[string]any {
	if c.ProcessorConfigs == nil {
		return nil
	}
	return c.ProcessorConfigs[name]
}

// DefaultPipelineConfig returns the default pipeline configuration.
// Works out-of-the-box with the chunker using standard parameters.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Processors: []string{"chunker"},
		ProcessorConfigs: map[string]map[string]any{
			"chunker": {
				"chunk_size": 1000,
				"overlap":    200,
			},
		},
	}
}
