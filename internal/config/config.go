package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendREST = "rest"
	BackendSDK  = "sdk"
	BackendNone = "none"
)

type Config struct {
	Port      string
	PublicURL string

	GeminiBaseURL    string
	GeminiTextModel  string
	GeminiImageModel string
	GeminiAPIKey     string
	// GeminiAPIKeyParam is an SSM parameter path; it takes precedence over GeminiAPIKey.
	GeminiAPIKeyParam string
	EnhancerBackend   string
	RequestTimeout    time.Duration

	ExportDir          string
	ExportBucket       string
	ExportDistribution string
	ExportStagger      time.Duration

	SessionIdleTimeout time.Duration
	// SamplePromptsParam is an SSM parameter path whose children are sample
	// prompts. When unset, SAMPLE_PROMPTS is read from the environment.
	SamplePromptsParam string

	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment, after merging a .env file
// if one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		GeminiBaseURL:      strings.TrimRight(getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"), "/"),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash-preview-09-2025"),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "imagen-3.0-generate-002"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiAPIKeyParam:  os.Getenv("GEMINI_API_KEY_PARAM"),
		SamplePromptsParam: os.Getenv("SAMPLE_PROMPTS_PARAM"),
		EnhancerBackend:    strings.ToLower(getEnv("ENHANCER_BACKEND", BackendREST)),
		ExportDir:          getEnv("EXPORT_DIR", "exports"),
		ExportBucket:       os.Getenv("EXPORT_BUCKET"),
		ExportDistribution: os.Getenv("EXPORT_DISTRIBUTION"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	var err error
	if cfg.RequestTimeout, err = getDuration("REQUEST_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExportStagger, err = getDuration("EXPORT_STAGGER", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SessionIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour); err != nil {
		return nil, err
	}
	cfg.PublicURL = strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+cfg.Port), "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.GeminiAPIKey == "" && c.GeminiAPIKeyParam == "" {
		return fmt.Errorf("GEMINI_API_KEY or GEMINI_API_KEY_PARAM is required")
	}
	switch c.EnhancerBackend {
	case BackendREST, BackendSDK, BackendNone:
	default:
		return fmt.Errorf("ENHANCER_BACKEND must be one of %q, %q, %q, got %q", BackendREST, BackendSDK, BackendNone, c.EnhancerBackend)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive")
	}
	if c.ExportStagger < 0 {
		return fmt.Errorf("EXPORT_STAGGER must not be negative")
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
