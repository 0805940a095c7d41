package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

const (
	defaultPort            = 8000
	defaultRegion          = "us-west-2"
	defaultLanguageCode    = "en-US"
	defaultSampleRate      = 16000
	defaultEncoding        = "pcm"
	defaultProvider        = ProviderAWS
	defaultStaticDir       = "static"
	defaultWSPath          = "/ws"
	defaultMongoDatabase   = "transcribe_relay"
	defaultRecordRetention = 24 * time.Hour
	defaultShutdownTimeout = 10 * time.Second
	defaultLogLevel        = "info"
)

// Supported transcription providers
const (
	ProviderAWS    = "aws"
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

// Config is the process configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Config struct {
	Port            int           `yaml:"port"`
	Region          string        `yaml:"region"`
	LanguageCode    string        `yaml:"language_code"`
	SampleRate      int           `yaml:"sample_rate"`
	Encoding        string        `yaml:"encoding"`
	Provider        string        `yaml:"stt_provider"`
	StaticDir       string        `yaml:"static_dir"`
	WSPath          string        `yaml:"ws_path"`
	MongoURI        string        `yaml:"mongodb_uri"`
	MongoDatabase   string        `yaml:"mongodb_database"`
	RecordRetention time.Duration `yaml:"record_retention"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	return Config{
		Port:            defaultPort,
		Region:          defaultRegion,
		LanguageCode:    defaultLanguageCode,
		SampleRate:      defaultSampleRate,
		Encoding:        defaultEncoding,
		Provider:        defaultProvider,
		StaticDir:       defaultStaticDir,
		WSPath:          defaultWSPath,
		MongoDatabase:   defaultMongoDatabase,
		RecordRetention: defaultRecordRetention,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
	}
}

// Load builds the configuration from defaults, a .env file if present, the
// environment and finally the YAML file named by CONFIG_FILE.
func Load() (Config, error) {
	// A missing .env is normal outside development
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(&c.Region, getenv("AWS_REGION"))
	setString(&c.LanguageCode, getenv("LANGUAGE_CODE"))
	setString(&c.Encoding, getenv("MEDIA_ENCODING"))
	setString(&c.Provider, strings.ToLower(getenv("STT_PROVIDER")))
	setString(&c.StaticDir, getenv("STATIC_DIR"))
	setString(&c.WSPath, getenv("WS_PATH"))
	setString(&c.MongoURI, getenv("MONGODB_URI"))
	setString(&c.MongoDatabase, getenv("MONGODB_DATABASE"))
	setString(&c.LogLevel, strings.ToLower(getenv("LOG_LEVEL")))

	if err := setInt(&c.Port, "PORT", getenv("PORT")); err != nil {
		return err
	}
	if err := setInt(&c.SampleRate, "SAMPLE_RATE", getenv("SAMPLE_RATE")); err != nil {
		return err
	}
	if err := setDuration(&c.RecordRetention, "RECORD_RETENTION", getenv("RECORD_RETENTION")); err != nil {
		return err
	}
	return setDuration(&c.ShutdownTimeout, "SHUTDOWN_TIMEOUT", getenv("SHUTDOWN_TIMEOUT"))
}

// applyFile overrides fields with the non-zero values of a YAML file
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var file Config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.Port != 0 {
		c.Port = file.Port
	}
	if file.SampleRate != 0 {
		c.SampleRate = file.SampleRate
	}
	if file.RecordRetention != 0 {
		c.RecordRetention = file.RecordRetention
	}
	if file.ShutdownTimeout != 0 {
		c.ShutdownTimeout = file.ShutdownTimeout
	}
	setString(&c.Region, file.Region)
	setString(&c.LanguageCode, file.LanguageCode)
	setString(&c.Encoding, file.Encoding)
	setString(&c.Provider, strings.ToLower(file.Provider))
	setString(&c.StaticDir, file.StaticDir)
	setString(&c.WSPath, file.WSPath)
	setString(&c.MongoURI, file.MongoURI)
	setString(&c.MongoDatabase, file.MongoDatabase)
	setString(&c.LogLevel, strings.ToLower(file.LogLevel))
	return nil
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.LanguageCode == "" {
		return fmt.Errorf("language_code cannot be empty")
	}
	if c.Encoding == "" {
		return fmt.Errorf("encoding cannot be empty")
	}
	switch c.Provider {
	case ProviderAWS, ProviderGoogle, ProviderMock:
	default:
		return fmt.Errorf("stt_provider must be one of aws, google, mock, got %q", c.Provider)
	}
	if c.Provider == ProviderAWS && c.Region == "" {
		return fmt.Errorf("region is required for the aws provider")
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("ws_path must start with '/', got %q", c.WSPath)
	}
	if c.RecordRetention <= 0 {
		return fmt.Errorf("record_retention must be positive, got %s", c.RecordRetention)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}
	switch c.LogLevel {
	case "debug", "info":
	default:
		return fmt.Errorf("log_level must be debug or info, got %q", c.LogLevel)
	}
	return nil
}

// Address returns the listen address for the HTTP server
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// StreamConfig returns the transcription settings applied to every session
func (c Config) StreamConfig() repositories.StreamConfig {
	return repositories.StreamConfig{
		LanguageCode: c.LanguageCode,
		SampleRateHz: c.SampleRate,
		Encoding:     c.Encoding,
	}
}

func setString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func setInt(dst *int, key, value string) error {
	if value == "" {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	*dst = d
	return nil
}
