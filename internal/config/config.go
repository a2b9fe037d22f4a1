package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix          = "PPTGEN"
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultDatabase    = "pptgen.db"
	defaultLogLevel    = "info"

	defaultPrimaryModel  = "gemini-3-pro-preview"
	defaultFallbackModel = "gemini-3-flash-preview"
	defaultImageModel    = "gemini-3-pro-image-preview"

	defaultSessionTTLMinutes = 720
	defaultBatchPacingMillis = 1500
	defaultRetryDelayMillis  = 2000
	defaultModelTimeoutSecs  = 180
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	SessionTTL    time.Duration

	ModelBaseURL  string
	PrimaryModel  string
	FallbackModel string
	ImageModel    string
	ModelTimeout  time.Duration

	BatchPacing    time.Duration
	RetryBaseDelay time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabase)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("session.ttl_minutes", defaultSessionTTLMinutes)

	configViper.SetDefault("model.base_url", "")
	configViper.SetDefault("model.primary", defaultPrimaryModel)
	configViper.SetDefault("model.fallback", defaultFallbackModel)
	configViper.SetDefault("model.image", defaultImageModel)
	configViper.SetDefault("model.timeout_seconds", defaultModelTimeoutSecs)

	configViper.SetDefault("batch.pacing_ms", defaultBatchPacingMillis)
	configViper.SetDefault("batch.retry_delay_ms", defaultRetryDelayMillis)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		SigningSecret:  configViper.GetString("session.signing_secret"),
		SessionTTL:     time.Duration(configViper.GetInt("session.ttl_minutes")) * time.Minute,
		ModelBaseURL:   configViper.GetString("model.base_url"),
		PrimaryModel:   configViper.GetString("model.primary"),
		FallbackModel:  configViper.GetString("model.fallback"),
		ImageModel:     configViper.GetString("model.image"),
		ModelTimeout:   time.Duration(configViper.GetInt("model.timeout_seconds")) * time.Second,
		BatchPacing:    time.Duration(configViper.GetInt("batch.pacing_ms")) * time.Millisecond,
		RetryBaseDelay: time.Duration(configViper.GetInt("batch.retry_delay_ms")) * time.Millisecond,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.PrimaryModel) == "" {
		return fmt.Errorf("model.primary is required")
	}
	if strings.TrimSpace(c.FallbackModel) == "" {
		return fmt.Errorf("model.fallback is required")
	}
	if strings.TrimSpace(c.ImageModel) == "" {
		return fmt.Errorf("model.image is required")
	}
	if c.BatchPacing < 0 || c.RetryBaseDelay < 0 {
		return fmt.Errorf("batch delays must not be negative")
	}
	return nil
}
