package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Make sure ambient env doesn't leak into the test.
	for _, key := range []string{"PORT", "DB_PATH", "OPENAI_API_KEY", "OPENAI_MODEL", "HTTP_TIMEOUT", "MAX_PDF_BYTES", "MAX_BATCH_BYTES", "PROMPT_CHAR_LIMIT", "LOG_MODE"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "briefstack.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.OpenAIModel != "gpt-4-turbo" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.MaxPDFBytes != 25*1024*1024 {
		t.Errorf("MaxPDFBytes = %d", cfg.MaxPDFBytes)
	}
	if cfg.MaxBatchBytes != 100*1024*1024 {
		t.Errorf("MaxBatchBytes = %d", cfg.MaxBatchBytes)
	}
	if cfg.PromptCharLimit != 150000 {
		t.Errorf("PromptCharLimit = %d", cfg.PromptCharLimit)
	}
	if !cfg.UseStubs() {
		t.Error("UseStubs() = false without an API key")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_MODEL", "gpt-5-mini")
	t.Setenv("HTTP_TIMEOUT", "90s")
	t.Setenv("MAX_PDF_BYTES", "1048576")

	cfg := Load()

	if cfg.Port != "9999" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-5-mini" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.HTTPTimeout != 90*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.MaxPDFBytes != 1048576 {
		t.Errorf("MaxPDFBytes = %d", cfg.MaxPDFBytes)
	}
	if cfg.UseStubs() {
		t.Error("UseStubs() = true with an API key set")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "not-a-duration")
	t.Setenv("MAX_PDF_BYTES", "lots")

	cfg := Load()

	if cfg.HTTPTimeout != 60*time.Second {
		t.Errorf("HTTPTimeout = %v, want fallback", cfg.HTTPTimeout)
	}
	if cfg.MaxPDFBytes != 25*1024*1024 {
		t.Errorf("MaxPDFBytes = %d, want fallback", cfg.MaxPDFBytes)
	}
}
