// Package config loads process configuration from the environment, with an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/WessleyAI/condo-ledger/pkg/money"
)

// Store engines.
const (
	EngineQdrant = "qdrant"
	EngineBleve  = "bleve"
)

// Completion providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderNone      = "none"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Embedding  EmbeddingConfig
	Completion CompletionConfig
	Router     RouterConfig
	Ingest     IngestConfig
	NATS       NATSConfig
}

type ServerConfig struct {
	Port               string
	CORSOrigins        []string
	RateLimitPerSecond float64
	RateLimitBurst     int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxPairs           int
	MaxSessions        int
	MetricsEnabled     bool
}

type StoreConfig struct {
	Engine     string
	QdrantAddr string
	Collection string
	BatchSize  int
	// IndexPath is the Bleve index directory; "" keeps it in memory.
	IndexPath string
}

type EmbeddingConfig struct {
	OllamaURL string
	Model     string
	Timeout   time.Duration
}

type CompletionConfig struct {
	Provider        string
	AnthropicAPIKey string
	AnthropicModel  string
	OllamaModel     string
	MaxTokens       int
	Temperature     float64
	Timeout         time.Duration
}

type RouterConfig struct {
	ReferenceYear  int
	RelevanceFloor float64
	SearchTimeout  time.Duration
	SampleLimit    int
}

type IngestConfig struct {
	DataDir  string
	Locale   money.Locale
	Schedule string
}

type NATSConfig struct {
	// URL is empty when NATS is not used.
	URL string
}

// Load reads an optional .env file, then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8000"),
			CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
			RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
			ReadTimeout:        getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
			MaxPairs:           getEnvAsInt("CONVERSATION_MAX_PAIRS", 10),
			MaxSessions:        getEnvAsInt("CONVERSATION_MAX_SESSIONS", 1000),
			MetricsEnabled:     getEnvAsBool("METRICS_ENABLED", true),
		},
		Store: StoreConfig{
			Engine:     strings.ToLower(getEnv("STORE_ENGINE", EngineQdrant)),
			QdrantAddr: getEnv("QDRANT_ADDR", "localhost:6334"),
			Collection: getEnv("QDRANT_COLLECTION", "condominium_expenses"),
			BatchSize:  getEnvAsInt("INDEX_BATCH_SIZE", 100),
			IndexPath:  getEnv("BLEVE_INDEX_PATH", ""),
		},
		Embedding: EmbeddingConfig{
			OllamaURL: getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:     getEnv("EMBED_MODEL", "nomic-embed-text"),
			Timeout:   getEnvAsDuration("EMBED_TIMEOUT", 30*time.Second),
		},
		Completion: CompletionConfig{
			Provider:        strings.ToLower(getEnv("COMPLETION_PROVIDER", "")),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
			OllamaModel:     getEnv("CHAT_MODEL", "llama3.1"),
			MaxTokens:       getEnvAsInt("COMPLETION_MAX_TOKENS", 1000),
			Temperature:     getEnvAsFloat("COMPLETION_TEMPERATURE", 0.1),
			Timeout:         getEnvAsDuration("COMPLETION_TIMEOUT", 30*time.Second),
		},
		Router: RouterConfig{
			ReferenceYear:  getEnvAsInt("REFERENCE_YEAR", 2025),
			RelevanceFloor: getEnvAsFloat("RELEVANCE_FLOOR", 0.3),
			SearchTimeout:  getEnvAsDuration("SEARCH_TIMEOUT", 5*time.Second),
			SampleLimit:    getEnvAsInt("INVENTORY_SAMPLE_LIMIT", 1000),
		},
		Ingest: IngestConfig{
			DataDir:  getEnv("DATA_DIR", "data"),
			Schedule: getEnv("REBUILD_SCHEDULE", ""),
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
	}

	loc, err := money.ParseLocale(getEnv("AMOUNT_LOCALE", string(money.LocaleBR)))
	if err != nil {
		return nil, fmt.Errorf("config: AMOUNT_LOCALE: %w", err)
	}
	cfg.Ingest.Locale = loc

	switch cfg.Store.Engine {
	case EngineQdrant, EngineBleve:
	default:
		return nil, fmt.Errorf("config: STORE_ENGINE %q: want %s or %s", cfg.Store.Engine, EngineQdrant, EngineBleve)
	}

	switch cfg.Completion.Provider {
	case "":
		cfg.Completion.Provider = ProviderNone
		if cfg.Completion.AnthropicAPIKey != "" {
			cfg.Completion.Provider = ProviderAnthropic
		}
	case ProviderAnthropic:
		if cfg.Completion.AnthropicAPIKey == "" {
			return nil, errors.New("config: ANTHROPIC_API_KEY is required for COMPLETION_PROVIDER=anthropic")
		}
	case ProviderOllama, ProviderNone:
	default:
		return nil, fmt.Errorf("config: COMPLETION_PROVIDER %q: want anthropic, ollama or none", cfg.Completion.Provider)
	}

	if cfg.Router.RelevanceFloor < 0 || cfg.Router.RelevanceFloor > 1 {
		return nil, fmt.Errorf("config: RELEVANCE_FLOOR %v outside [0,1]", cfg.Router.RelevanceFloor)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
