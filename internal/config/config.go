package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StorageBackend string

const (
	StorageMemory    StorageBackend = "memory"
	StorageBolt      StorageBackend = "bolt"
	StorageSQLite    StorageBackend = "sqlite"
	StoragePostgres  StorageBackend = "postgres"
	StorageRedis     StorageBackend = "redis"
	StorageFirestore StorageBackend = "firestore"
)

type Config struct {
	Env  string
	Port string

	LogLevel  string
	LogFormat string
	LogFile   string

	StorageBackend StorageBackend
	BoltPath       string
	SQLitePath     string
	DatabaseURL    string
	RedisURL       string

	GCPProjectID string
	GCPLocation  string

	LLMProvider        string
	LLMAPIKey          string
	LLMBaseURL         string
	LLMModel           string
	LLMTemperature     float64
	LLMMaxOutputTokens int
	LLMTimeout         time.Duration
	HistoryTurns       int

	NATSURL           string
	NATSSubjectPrefix string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func getFloatEnv(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

// Load reads all env vars and builds the config.
// A .env file in the working directory is loaded first if present; real
// environment variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:  getEnv("SUPPORT_ENV", "development"),
		Port: getEnv("SUPPORT_PORT", "8080"),

		LogLevel:  getEnv("SUPPORT_LOG_LEVEL", "info"),
		LogFormat: getEnv("SUPPORT_LOG_FORMAT", "json"),
		LogFile:   os.Getenv("SUPPORT_LOG_FILE"),

		StorageBackend: StorageBackend(strings.ToLower(getEnv("SUPPORT_STORAGE_BACKEND", string(StorageMemory)))),
		BoltPath:       getEnv("SUPPORT_BOLT_PATH", "./data/supportchat.bolt"),
		SQLitePath:     getEnv("SUPPORT_SQLITE_PATH", "./data/supportchat.db"),
		DatabaseURL:    os.Getenv("SUPPORT_DATABASE_URL"),
		RedisURL:       os.Getenv("SUPPORT_REDIS_URL"),

		GCPProjectID: os.Getenv("SUPPORT_GCP_PROJECT"),
		GCPLocation:  getEnv("SUPPORT_GCP_LOCATION", "us-central1"),

		LLMProvider: strings.ToLower(getEnv("SUPPORT_LLM_PROVIDER", "gemini")),
		LLMAPIKey:   os.Getenv("SUPPORT_LLM_API_KEY"),
		LLMBaseURL:  os.Getenv("SUPPORT_LLM_BASE_URL"),
		LLMModel:    os.Getenv("SUPPORT_LLM_MODEL"),

		NATSURL:           os.Getenv("SUPPORT_NATS_URL"),
		NATSSubjectPrefix: getEnv("SUPPORT_NATS_SUBJECT_PREFIX", "supportchat"),
	}

	var err error
	if cfg.LLMTemperature, err = getFloatEnv("SUPPORT_LLM_TEMPERATURE", 0.7); err != nil {
		return nil, err
	}
	if cfg.LLMMaxOutputTokens, err = getIntEnv("SUPPORT_LLM_MAX_OUTPUT_TOKENS", 1024); err != nil {
		return nil, err
	}
	timeoutSeconds, err := getIntEnv("SUPPORT_LLM_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.LLMTimeout = time.Duration(timeoutSeconds) * time.Second
	if cfg.HistoryTurns, err = getIntEnv("SUPPORT_HISTORY_TURNS", 10); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that do not depend on a live connection.
// Provider credentials are checked by the provider constructors.
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory:
	case StorageBolt:
		if c.BoltPath == "" {
			return fmt.Errorf("SUPPORT_BOLT_PATH is required for the bolt backend")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SUPPORT_SQLITE_PATH is required for the sqlite backend")
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SUPPORT_DATABASE_URL is required for the postgres backend")
		}
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("SUPPORT_REDIS_URL is required for the redis backend")
		}
	case StorageFirestore:
		if c.GCPProjectID == "" {
			return fmt.Errorf("SUPPORT_GCP_PROJECT is required for the firestore backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", c.StorageBackend)
	}

	switch c.LLMProvider {
	case "gemini", "vertex", "openai", "mock":
	default:
		return fmt.Errorf("unsupported LLM provider: %s", c.LLMProvider)
	}

	if c.LLMTemperature < 0 || c.LLMTemperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got: %g", c.LLMTemperature)
	}
	if c.LLMMaxOutputTokens <= 0 {
		return fmt.Errorf("max output tokens must be positive, got: %d", c.LLMMaxOutputTokens)
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("llm timeout must be positive, got: %s", c.LLMTimeout)
	}
	if c.HistoryTurns <= 0 {
		return fmt.Errorf("history turns must be positive, got: %d", c.HistoryTurns)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("log format must be json or text, got: %s", c.LogFormat)
	}
	return nil
}
