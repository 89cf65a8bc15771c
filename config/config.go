package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
)

// Embedding providers
const (
	EmbeddingProviderOpenAI = "openai"
	EmbeddingProviderGemini = "gemini"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Redis         RedisConfig
	Providers     ProvidersConfig
	Embedding     EmbeddingConfig
	Retrieval     RetrievalConfig
	Pipeline      PipelineConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	Ingest        IngestConfig
	Observability ObservabilityConfig
	Environment   string
	Version       string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// StoreConfig selects the fragment store backend
type StoreConfig struct {
	Driver     string // postgres or sqlite
	SQLitePath string
	InitSchema bool // create tables on startup (postgres)
}

// RedisConfig configures the optional query-embedding cache.
// An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// ProvidersConfig holds LLM provider configurations
type ProvidersConfig struct {
	Generation GenerationConfig
}

// GenerationConfig configures the OpenAI-compatible chat completion endpoint
type GenerationConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	Provider          string // openai or gemini
	APIKey            string
	BaseURL           string
	Model             string
	Dimensions        int
	BatchSize         int
	RequestsPerSecond float64
	Burst             int
}

// RetrievalConfig configures candidate retrieval and re-ranking
type RetrievalConfig struct {
	DefaultK      int
	MaxK          int
	Overfetch     int
	CanonicalFile string
	Entity        string
}

// PipelineConfig configures the question-answering pipeline
type PipelineConfig struct {
	Timeout          time.Duration
	Temperature      float64
	LogWorkers       int
	LogBufferSize    int
	ValidateAnswers  bool
	RegenerateOnFail bool
}

// AuthConfig configures optional JWT bearer authentication.
// An empty JWTSecret disables auth.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// RateLimitConfig throttles the generation endpoints per client.
// Zero RequestsPerSecond disables the limiter.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// IngestConfig configures documentation ingestion
type IngestConfig struct {
	DocsPath     string
	ChunkSize    int
	ChunkOverlap int
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists (backend/.env when run from project root, .env when run from backend/)
	_ = godotenv.Load("backend/.env")
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Version:     getEnv("APP_VERSION", "dev"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 5*time.Minute),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
			SQLitePath: getEnv("SQLITE_PATH", "data/sorobai.db"),
			InitSchema: getEnvAsBool("STORE_INIT_SCHEMA", true),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("EMBEDDING_CACHE_TTL", 24*time.Hour),
		},
		Providers: ProvidersConfig{
			Generation: GenerationConfig{
				APIKey:     getEnv("OPENROUTER_API_KEY", ""),
				BaseURL:    getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
				Model:      getEnv("GENERATION_MODEL", "deepseek/deepseek-chat"),
				MaxTokens:  getEnvAsInt("GENERATION_MAX_TOKENS", 4096),
				Timeout:    getEnvAsDuration("GENERATION_TIMEOUT", 120*time.Second),
				MaxRetries: getEnvAsInt("GENERATION_MAX_RETRIES", 2),
			},
		},
		Embedding: EmbeddingConfig{
			Provider:          strings.ToLower(getEnv("EMBEDDING_PROVIDER", EmbeddingProviderOpenAI)),
			APIKey:            getEnv("EMBEDDING_API_KEY", ""),
			BaseURL:           getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			Model:             getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions:        getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			BatchSize:         getEnvAsInt("EMBEDDING_BATCH_SIZE", 32),
			RequestsPerSecond: getEnvAsFloat("EMBEDDING_RPS", 5),
			Burst:             getEnvAsInt("EMBEDDING_BURST", 5),
		},
		Retrieval: RetrievalConfig{
			DefaultK:      getEnvAsInt("RETRIEVAL_DEFAULT_K", 5),
			MaxK:          getEnvAsInt("RETRIEVAL_MAX_K", 20),
			Overfetch:     getEnvAsInt("RETRIEVAL_OVERFETCH", 3),
			CanonicalFile: getEnv("RETRIEVAL_CANONICAL_FILE", "examples_token_contract.md"),
			Entity:        getEnv("RETRIEVAL_ENTITY", "token"),
		},
		Pipeline: PipelineConfig{
			Timeout:          getEnvAsDuration("PIPELINE_TIMEOUT", 3*time.Minute),
			Temperature:      getEnvAsFloat("PIPELINE_TEMPERATURE", 0.1),
			LogWorkers:       getEnvAsInt("REQUEST_LOG_WORKERS", 4),
			LogBufferSize:    getEnvAsInt("REQUEST_LOG_BUFFER", 256),
			ValidateAnswers:  getEnvAsBool("VALIDATE_ANSWERS", true),
			RegenerateOnFail: getEnvAsBool("REGENERATE_ON_FAIL", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_JWT_ISSUER", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 0),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Ingest: IngestConfig{
			DocsPath:     getEnv("DOCS_PATH", "docs"),
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 1000),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 200),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" {
			if c.Database.User == "" {
				return fmt.Errorf("database user is required")
			}
			if c.Database.Database == "" {
				return fmt.Errorf("database name is required")
			}
		}
	case StoreDriverSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}

	switch c.Embedding.Provider {
	case EmbeddingProviderOpenAI, EmbeddingProviderGemini:
	default:
		return fmt.Errorf("unsupported embedding provider %q", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	if c.Retrieval.DefaultK < 1 || c.Retrieval.DefaultK > c.Retrieval.MaxK {
		return fmt.Errorf("retrieval default k must be between 1 and %d", c.Retrieval.MaxK)
	}
	if c.Retrieval.Overfetch < 3 || c.Retrieval.Overfetch > 5 {
		return fmt.Errorf("retrieval overfetch must be between 3 and 5")
	}
	if c.Pipeline.Timeout <= 0 {
		return fmt.Errorf("pipeline timeout must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}

	// API keys are only mandatory in production so local tooling (validate, status) works without them
	if c.IsProduction() {
		if c.Providers.Generation.APIKey == "" {
			return fmt.Errorf("generation API key is required in production")
		}
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding API key is required in production")
		}
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// AuthEnabled reports whether bearer tokens are required on the API
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}

// CacheEnabled reports whether query embeddings are cached in Redis
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "sorobai"),
		Password:        getEnv("DB_PASSWORD", "sorobai"),
		Database:        getEnv("DB_NAME", "sorobai"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
