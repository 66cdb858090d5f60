package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/kiranshivaraju/textbrief/pkg/models"
)

// Config holds all configuration for the textbrief server.
type Config struct {
	Server ServerConfig
	AI     AIConfig
}

type ServerConfig struct {
	Port         int    `env:"PORT"           envDefault:"8080"`
	Env          string `env:"APP_ENV"        envDefault:"development"`
	LogLevel     string `env:"LOG_LEVEL"      envDefault:"info"`
	MaxBodyBytes int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`
}

type AIConfig struct {
	Policy               string        `env:"AI_SELECTION_POLICY"       envDefault:"strict"`
	CallTimeout          time.Duration `env:"AI_CALL_TIMEOUT"           envDefault:"25s"`
	CascadeTimeout       time.Duration `env:"AI_CASCADE_TIMEOUT"        envDefault:"55s"`
	RetryMax             int           `env:"AI_RETRY_MAX"              envDefault:"0"`
	RetryInitialInterval time.Duration `env:"AI_RETRY_INITIAL_INTERVAL" envDefault:"500ms"`
	Language             string        `env:"ANALYSIS_LANGUAGE"         envDefault:"Spanish"`

	Google    ProviderConfig `envPrefix:"GEMINI_"`
	Groq      ProviderConfig `envPrefix:"GROQ_"`
	SambaNova ProviderConfig `envPrefix:"SAMBANOVA_"`
	Cohere    ProviderConfig `envPrefix:"COHERE_"`
}

// ProviderConfig is the per-backend section. An empty APIKey leaves the provider unavailable.
type ProviderConfig struct {
	APIKey  string   `env:"API_KEY"`
	Models  []string `env:"MODELS"`
	BaseURL string   `env:"BASE_URL"`
}

const (
	PolicyStrict   = "strict"
	PolicyFallback = "fallback"
)

const (
	DefaultGoogleBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultGroqBaseURL      = "https://api.groq.com"
	DefaultSambaNovaBaseURL = "https://api.sambanova.ai"
	DefaultCohereBaseURL    = "https://api.cohere.com"
)

var (
	DefaultGoogleModels    = []string{"gemini-2.0-flash", "gemini-2.0-pro-exp-02-05", "gemini-1.5-pro"}
	DefaultGroqModels      = []string{"llama-3.3-70b-versatile"}
	DefaultSambaNovaModels = []string{"Qwen2.5-72B-Instruct"}
	DefaultCohereModels    = []string{"command-r-plus"}
)

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any value is invalid. Missing
// provider credentials are not an error.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, describeParseError(err)
	}

	cfg.AI.Policy = strings.ToLower(strings.TrimSpace(cfg.AI.Policy))
	cfg.AI.Google.applyDefaults(DefaultGoogleBaseURL, DefaultGoogleModels)
	cfg.AI.Groq.applyDefaults(DefaultGroqBaseURL, DefaultGroqModels)
	cfg.AI.SambaNova.applyDefaults(DefaultSambaNovaBaseURL, DefaultSambaNovaModels)
	cfg.AI.Cohere.applyDefaults(DefaultCohereBaseURL, DefaultCohereModels)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Credentials returns the credential snapshot keyed by provider.
func (c AIConfig) Credentials() map[models.ProviderID]string {
	return map[models.ProviderID]string{
		models.ProviderGoogle:    c.Google.APIKey,
		models.ProviderGroq:      c.Groq.APIKey,
		models.ProviderSambaNova: c.SambaNova.APIKey,
		models.ProviderCohere:    c.Cohere.APIKey,
	}
}

// Level parses LogLevel.
func (s ServerConfig) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s.LogLevel)))
	return l, err
}

// envKeys maps the Go field names env reports in parse errors to their variables.
// Only non-string fields can fail to parse.
var envKeys = map[string]string{
	"Port":                 "PORT",
	"MaxBodyBytes":         "MAX_BODY_BYTES",
	"CallTimeout":          "AI_CALL_TIMEOUT",
	"CascadeTimeout":       "AI_CASCADE_TIMEOUT",
	"RetryMax":             "AI_RETRY_MAX",
	"RetryInitialInterval": "AI_RETRY_INITIAL_INTERVAL",
}

// describeParseError rewrites env parse errors to name the variable instead of the field.
func describeParseError(err error) error {
	var agg env.AggregateError
	if !errors.As(err, &agg) {
		return fmt.Errorf("parsing environment: %w", err)
	}

	msgs := make([]string, 0, len(agg.Errors))
	for _, e := range agg.Errors {
		var pe env.ParseError
		if errors.As(e, &pe) {
			if key, ok := envKeys[pe.Name]; ok {
				msgs = append(msgs, fmt.Sprintf("%s has an invalid value: %v", key, pe.Err))
				continue
			}
		}
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("parsing environment: %s: %w", strings.Join(msgs, "; "), err)
}

func (p *ProviderConfig) applyDefaults(baseURL string, defaultModels []string) {
	p.APIKey = strings.TrimSpace(p.APIKey)
	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}

	var ms []string
	for _, m := range p.Models {
		if m = strings.TrimSpace(m); m != "" {
			ms = append(ms, m)
		}
	}
	if len(ms) == 0 {
		ms = append([]string(nil), defaultModels...)
	}
	p.Models = ms
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if _, err := c.Server.Level(); err != nil {
		return fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if c.AI.Policy != PolicyStrict && c.AI.Policy != PolicyFallback {
		return fmt.Errorf("AI_SELECTION_POLICY must be one of strict, fallback; got %q", c.AI.Policy)
	}
	if c.AI.CallTimeout <= 0 {
		return fmt.Errorf("AI_CALL_TIMEOUT must be positive, got %s", c.AI.CallTimeout)
	}
	if c.AI.CascadeTimeout < c.AI.CallTimeout {
		return fmt.Errorf("AI_CASCADE_TIMEOUT (%s) must not be shorter than AI_CALL_TIMEOUT (%s)",
			c.AI.CascadeTimeout, c.AI.CallTimeout)
	}
	if c.AI.RetryMax < 0 {
		return fmt.Errorf("AI_RETRY_MAX must not be negative, got %d", c.AI.RetryMax)
	}
	if c.AI.RetryMax > 0 && c.AI.RetryInitialInterval <= 0 {
		return fmt.Errorf("AI_RETRY_INITIAL_INTERVAL must be positive when retries are enabled")
	}
	if strings.TrimSpace(c.AI.Language) == "" {
		return fmt.Errorf("ANALYSIS_LANGUAGE must not be empty")
	}

	sections := []struct {
		prefix string
		cfg    ProviderConfig
	}{
		{"GEMINI", c.AI.Google},
		{"GROQ", c.AI.Groq},
		{"SAMBANOVA", c.AI.SambaNova},
		{"COHERE", c.AI.Cohere},
	}
	for _, s := range sections {
		if !strings.HasPrefix(s.cfg.BaseURL, "http://") && !strings.HasPrefix(s.cfg.BaseURL, "https://") {
			return fmt.Errorf("%s_BASE_URL must start with http:// or https://, got %q", s.prefix, s.cfg.BaseURL)
		}
		if len(s.cfg.Models) == 0 {
			return fmt.Errorf("%s_MODELS must list at least one model", s.prefix)
		}
	}

	return nil
}
