// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.aula/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model and embedder selection, per-call timeout
//   - Storage: PostgreSQL connection (see storage.go)
//   - Retrieval: result count, candidate pool, HNSW search quality
//   - Server: listen address, environment (development/production)
//
// Sensitive data (the database password) is masked in MarshalJSON and never
// logged. Validation lives in validation.go with sentinel errors so callers
// can check failures with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultModelName is the default generation model.
	DefaultModelName = "gemini-2.5-flash"

	// DefaultEmbedderModel is the default Gemini embedder model.
	// Its 768-dimension output must match the pgvector schema; see
	// retrieval.VectorDimension.
	DefaultEmbedderModel = "text-embedding-004"

	// DefaultMaxHistoryMessages bounds how many prior messages are loaded
	// per turn when the caller does not supply history.
	DefaultMaxHistoryMessages int32 = 100

	// EnvDevelopment and EnvProduction are the recognized environments.
	// The environment controls how much error detail reaches the client.
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// LLMTimeout bounds every model call (classification, analysis,
	// grounding, styling). A timed-out stage fails the turn.
	LLMTimeout time.Duration `mapstructure:"llm_timeout" json:"llm_timeout"`

	// LLMRequestsPerMinute throttles outgoing model calls across the whole
	// pipeline. Zero disables throttling.
	LLMRequestsPerMinute int `mapstructure:"llm_requests_per_minute" json:"llm_requests_per_minute"`

	// Retrieval configuration
	RetrievalK       int           `mapstructure:"retrieval_k" json:"retrieval_k"`             // final results per sub-query
	RetrievalFetchK  int           `mapstructure:"retrieval_fetch_k" json:"retrieval_fetch_k"` // candidate pool for diversity re-ranking
	RetrievalEF      int           `mapstructure:"retrieval_ef" json:"retrieval_ef"`           // hnsw.ef_search quality knob
	RetrievalTimeout time.Duration `mapstructure:"retrieval_timeout" json:"retrieval_timeout"`

	// Conversation history configuration
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	Addr        string `mapstructure:"addr" json:"addr"`
	Environment string `mapstructure:"environment" json:"environment"`

	// Observability configuration (optional; empty endpoint disables tracing)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" json:"service_name"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".aula")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing configuration file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, if set, overrides individual postgres_* settings.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("llm_timeout", "45s")
	viper.SetDefault("llm_requests_per_minute", 60)

	viper.SetDefault("retrieval_k", 4)
	viper.SetDefault("retrieval_fetch_k", 20)
	viper.SetDefault("retrieval_ef", 40)
	viper.SetDefault("retrieval_timeout", "10s")

	viper.SetDefault("max_history_messages", DefaultMaxHistoryMessages)

	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "aula")
	viper.SetDefault("postgres_password", "aula_dev_password")
	viper.SetDefault("postgres_db_name", "aula")
	viper.SetDefault("postgres_ssl_mode", "disable")

	viper.SetDefault("addr", "127.0.0.1:8080")
	viper.SetDefault("environment", EnvDevelopment)

	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("service_name", "aula")
}

// bindEnvVariables binds environment variable overrides explicitly.
// GEMINI_API_KEY is read directly by the Genkit Google AI plugin, not via
// viper; Validate only checks its presence.
func bindEnvVariables() {
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "AULA_PROVIDER")
	mustBind("model_name", "AULA_MODEL_NAME")
	mustBind("embedder_model", "AULA_EMBEDDER_MODEL")
	mustBind("addr", "AULA_ADDR")
	mustBind("environment", "AULA_ENV")
	mustBind("otlp_endpoint", "AULA_OTLP_ENDPOINT")
}

// IsDevelopment reports whether detailed errors may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". A name already containing "/" is
// returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matches against the real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of eight
// characters or fewer are fully masked; longer secrets keep the first and
// last two characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
