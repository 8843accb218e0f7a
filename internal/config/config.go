// Package config provides centralized configuration for the briefstack server.
// All configurable values are loaded from environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// OpenAIKey is the API key for the OpenAI-compatible service.
	OpenAIKey string

	// OpenAIModel is the model identifier used for brief generation.
	OpenAIModel string

	// OpenAIBaseURL overrides the API endpoint for OpenAI-compatible services.
	OpenAIBaseURL string

	// HTTPTimeout is the timeout for outgoing HTTP requests (fetch, LLM).
	HTTPTimeout time.Duration

	// MaxPDFBytes is the per-file upload size cap.
	MaxPDFBytes int64

	// MaxBatchBytes is the aggregate size cap across all files in one submission.
	MaxBatchBytes int64

	// PromptCharLimit is the maximum number of source-text characters embedded
	// in a generation prompt. A safety clamp, not chunking.
	PromptCharLimit int

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// LogMode selects the log encoder: "dev" or "prod".
	LogMode string
}

// Load reads configuration from environment variables, applying defaults.
// The size caps are policy constants, not technical limits; they default to
// the historical 25MB/100MB values.
func Load() Config {
	return Config{
		Port:            envOr("PORT", "8080"),
		DBPath:          envOr("DB_PATH", "briefstack.db"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     envOr("OPENAI_MODEL", "gpt-4-turbo"),
		OpenAIBaseURL:   envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		HTTPTimeout:     envDuration("HTTP_TIMEOUT", 60*time.Second),
		MaxPDFBytes:     envInt64("MAX_PDF_BYTES", 25*1024*1024),
		MaxBatchBytes:   envInt64("MAX_BATCH_BYTES", 100*1024*1024),
		PromptCharLimit: envInt("PROMPT_CHAR_LIMIT", 150000),
		CORSOrigin:      envOr("CORS_ORIGIN", "*"),
		LogMode:         envOr("LOG_MODE", "dev"),
	}
}

// UseStubs returns true when no API key is configured, so the server can run
// with stubbed collaborators for local development.
func (c Config) UseStubs() bool {
	return c.OpenAIKey == ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
