package config

import (
	"errors"
	"fmt"
	"os"
)

// Sentinel errors for configuration validation.
// Wrap with context using fmt.Errorf("%w: details", ErrXxx).
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRetrievalK indicates the retrieval result count is out of range.
	ErrInvalidRetrievalK = errors.New("invalid retrieval_k")

	// ErrInvalidRetrievalFetchK indicates the candidate pool size is out of range.
	ErrInvalidRetrievalFetchK = errors.New("invalid retrieval_fetch_k")

	// ErrInvalidRetrievalEF indicates the HNSW search quality knob is out of range.
	ErrInvalidRetrievalEF = errors.New("invalid retrieval_ef")

	// ErrInvalidTimeout indicates a timeout value is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidRateLimit indicates the model call rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid llm_requests_per_minute")

	// ErrInvalidEnvironment indicates the environment is not recognized.
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidHistoryLimit indicates max_history_messages is out of range.
	ErrInvalidHistoryLimit = errors.New("invalid max_history_messages")
)

// Validate performs fail-fast validation of the full configuration.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if c.Provider != ProviderGemini && c.Provider != ProviderGoogleAI {
		return fmt.Errorf("%w: %q (supported: gemini, googleai)", ErrInvalidProvider, c.Provider)
	}
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name must not be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder model must not be empty", ErrInvalidEmbedderModel)
	}

	if c.RetrievalK < 1 || c.RetrievalK > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidRetrievalK, c.RetrievalK)
	}
	if c.RetrievalFetchK < c.RetrievalK {
		return fmt.Errorf("%w: %d (must be >= retrieval_k %d)", ErrInvalidRetrievalFetchK, c.RetrievalFetchK, c.RetrievalK)
	}
	if c.RetrievalEF < c.RetrievalK {
		return fmt.Errorf("%w: %d (must be >= retrieval_k %d)", ErrInvalidRetrievalEF, c.RetrievalEF, c.RetrievalK)
	}

	if c.LLMTimeout <= 0 {
		return fmt.Errorf("%w: llm_timeout must be positive", ErrInvalidTimeout)
	}
	if c.RetrievalTimeout <= 0 {
		return fmt.Errorf("%w: retrieval_timeout must be positive", ErrInvalidTimeout)
	}
	if c.LLMRequestsPerMinute < 0 {
		return fmt.Errorf("%w: %d (0 disables throttling)", ErrInvalidRateLimit, c.LLMRequestsPerMinute)
	}

	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		return fmt.Errorf("%w: %q (must be development or production)", ErrInvalidEnvironment, c.Environment)
	}

	if c.MaxHistoryMessages < 1 || c.MaxHistoryMessages > 10000 {
		return fmt.Errorf("%w: %d (must be 1-10000)", ErrInvalidHistoryLimit, c.MaxHistoryMessages)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name must not be empty", ErrInvalidPostgresDBName)
	}

	return nil
}

// ValidateServe performs additional checks required before starting the
// HTTP server: the Genkit Google AI plugin reads GEMINI_API_KEY directly,
// so its absence only surfaces here.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is not set", ErrMissingAPIKey)
	}
	return nil
}
