package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should be valid: %v", err)
	}
	if cfg.Port != 8000 {
		t.Errorf("Expected port 8000, got %d", cfg.Port)
	}
	if cfg.Region != "us-west-2" {
		t.Errorf("Expected region us-west-2, got %s", cfg.Region)
	}
	if cfg.LanguageCode != "en-US" {
		t.Errorf("Expected language en-US, got %s", cfg.LanguageCode)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.SampleRate)
	}

	stream := cfg.StreamConfig()
	if stream.Encoding != "pcm" || stream.SampleRateHz != 16000 || stream.LanguageCode != "en-US" {
		t.Errorf("Unexpected stream config: %+v", stream)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"PORT":             "9090",
		"AWS_REGION":       "eu-west-1",
		"LANGUAGE_CODE":    "de-DE",
		"SAMPLE_RATE":      "8000",
		"STT_PROVIDER":     "MOCK",
		"RECORD_RETENTION": "1h",
	}))
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Port)
	}
	if cfg.Region != "eu-west-1" {
		t.Errorf("Expected region eu-west-1, got %s", cfg.Region)
	}
	if cfg.LanguageCode != "de-DE" {
		t.Errorf("Expected language de-DE, got %s", cfg.LanguageCode)
	}
	if cfg.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", cfg.SampleRate)
	}
	if cfg.Provider != ProviderMock {
		t.Errorf("Expected provider mock, got %s", cfg.Provider)
	}
	if cfg.RecordRetention != time.Hour {
		t.Errorf("Expected retention 1h, got %s", cfg.RecordRetention)
	}
	if cfg.Address() != ":9090" {
		t.Errorf("Expected address :9090, got %s", cfg.Address())
	}
}

func TestApplyEnv_InvalidNumbers(t *testing.T) {
	tests := map[string]string{
		"PORT":             "eighty",
		"SAMPLE_RATE":      "16k",
		"SHUTDOWN_TIMEOUT": "soon",
	}

	for key, value := range tests {
		cfg := Default()
		err := cfg.applyEnv(envMap(map[string]string{key: value}))
		if err == nil {
			t.Errorf("Expected error for %s=%s", key, value)
			continue
		}
		if !strings.Contains(err.Error(), key) {
			t.Errorf("Error should name %s, got %v", key, err)
		}
	}
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
port: 8100
language_code: fr-FR
stt_provider: google
record_retention: 30m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg := Default()
	if err := cfg.applyFile(path); err != nil {
		t.Fatalf("applyFile failed: %v", err)
	}

	if cfg.Port != 8100 {
		t.Errorf("Expected port 8100, got %d", cfg.Port)
	}
	if cfg.LanguageCode != "fr-FR" {
		t.Errorf("Expected language fr-FR, got %s", cfg.LanguageCode)
	}
	if cfg.Provider != ProviderGoogle {
		t.Errorf("Expected provider google, got %s", cfg.Provider)
	}
	if cfg.RecordRetention != 30*time.Minute {
		t.Errorf("Expected retention 30m, got %s", cfg.RecordRetention)
	}
	// untouched fields keep their previous value
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", cfg.SampleRate)
	}
}

func TestApplyFile_Missing(t *testing.T) {
	cfg := Default()
	if err := cfg.applyFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Port = 0 }},
		{"sample rate", func(c *Config) { c.SampleRate = -1 }},
		{"language", func(c *Config) { c.LanguageCode = "" }},
		{"provider", func(c *Config) { c.Provider = "azure" }},
		{"region", func(c *Config) { c.Region = "" }},
		{"ws path", func(c *Config) { c.WSPath = "ws" }},
		{"log level", func(c *Config) { c.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "8123")
	t.Setenv("STT_PROVIDER", "mock")
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 8123 {
		t.Errorf("Expected port 8123, got %d", cfg.Port)
	}
	if cfg.Provider != ProviderMock {
		t.Errorf("Expected provider mock, got %s", cfg.Provider)
	}
}
