package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	CacheBackendPostgres = "postgres"
	CacheBackendRedis    = "redis"
	CacheBackendMemory   = "memory"
	CacheBackendNone     = "none"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	PostgresDSN string
	RedisURL    string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OllamaHost    string

	LLM   LLMConfig
	Cache CacheConfig
	Chat  ChatConfig
	Bills BillsConfig
	Auth  AuthConfig
	OTel  OTelConfig
}

type LLMConfig struct {
	Provider          string
	Model             string
	RequestsPerSecond float64
	Burst             int
}

type CacheConfig struct {
	Backend          string
	RetentionDays    int
	SweepInterval    time.Duration
	NormalizeQueries bool
}

// Retention is the age after which a cached answer is swept.
func (c CacheConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

type ChatConfig struct {
	MaxContentUnits   int
	ChunkUnits        int
	FilterConcurrency int
}

type BillsConfig struct {
	Dir        string
	Catalog    string
	ContentTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Load reads an optional .env file and then the process environment.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        getEnv("PORT", "8085"),
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFile:     getEnv("LOG_FILE", ""),

		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/citizen_connect?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),

		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			Model:             getEnv("LLM_MODEL", "gpt-3.5-turbo"),
			RequestsPerSecond: getEnvFloat("LLM_REQUESTS_PER_SECOND", 0),
			Burst:             getEnvInt("LLM_BURST", 1),
		},
		Cache: CacheConfig{
			Backend:          strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendPostgres)),
			RetentionDays:    getEnvInt("CACHE_RETENTION_DAYS", 7),
			SweepInterval:    getEnvDuration("CACHE_SWEEP_INTERVAL", 24*time.Hour),
			NormalizeQueries: getEnvBool("CACHE_NORMALIZE_QUERIES", false),
		},
		Chat: ChatConfig{
			MaxContentUnits:   getEnvInt("CHAT_MAX_CONTENT_UNITS", 8000),
			ChunkUnits:        getEnvInt("CHAT_CHUNK_UNITS", 4000),
			FilterConcurrency: getEnvInt("CHAT_FILTER_CONCURRENCY", 4),
		},
		Bills: BillsConfig{
			Dir:        getEnv("BILLS_DIR", "uploads/bills"),
			Catalog:    getEnv("BILLS_CATALOG", ""),
			ContentTTL: getEnvDuration("BILLS_CONTENT_TTL", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		OTel: OTelConfig{
			Enabled:  getEnvBool("OTEL_ENABLED", false),
			Endpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}
