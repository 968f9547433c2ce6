package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Repository backends selectable with REPOSITORY_BACKEND.
const (
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port              string `mapstructure:"PORT"`
	Env               string `mapstructure:"ENV"`
	RepositoryBackend string `mapstructure:"REPOSITORY_BACKEND"`

	FHIRBaseURL             string        `mapstructure:"FHIR_BASE_URL"`
	FHIRTokenURL            string        `mapstructure:"FHIR_TOKEN_URL"`
	FHIRClientID            string        `mapstructure:"FHIR_CLIENT_ID"`
	FHIRClientSecret        string        `mapstructure:"FHIR_CLIENT_SECRET"`
	FHIRScope               string        `mapstructure:"FHIR_SCOPE"`
	FHIRAccessToken         string        `mapstructure:"FHIR_ACCESS_TOKEN"`
	FHIRTimeout             time.Duration `mapstructure:"FHIR_TIMEOUT"`
	BreakerFailureThreshold uint32        `mapstructure:"BREAKER_FAILURE_THRESHOLD"`
	BreakerOpenTimeout      time.Duration `mapstructure:"BREAKER_OPEN_TIMEOUT"`

	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`

	RedisURL       string        `mapstructure:"REDIS_URL"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	ChartStrict       bool          `mapstructure:"CHART_STRICT"`
	ChartQueryTimeout time.Duration `mapstructure:"CHART_QUERY_TIMEOUT"`
	ChartSearchLimit  int           `mapstructure:"CHART_SEARCH_LIMIT"`
	ConsoleBaseURL    string        `mapstructure:"CONSOLE_BASE_URL"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
}

var keys = []string{
	"PORT", "ENV", "REPOSITORY_BACKEND",
	"FHIR_BASE_URL", "FHIR_TOKEN_URL", "FHIR_CLIENT_ID", "FHIR_CLIENT_SECRET", "FHIR_SCOPE", "FHIR_ACCESS_TOKEN",
	"FHIR_TIMEOUT", "BREAKER_FAILURE_THRESHOLD", "BREAKER_OPEN_TIMEOUT",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"REDIS_URL", "IDEMPOTENCY_TTL",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"CHART_STRICT", "CHART_QUERY_TIMEOUT", "CHART_SEARCH_LIMIT", "CONSOLE_BASE_URL",
	"TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration from .env (when present) and the environment.
// It does not validate; call Validate before starting the server.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("REPOSITORY_BACKEND", BackendHTTP)
	v.SetDefault("FHIR_TIMEOUT", "30s")
	v.SetDefault("BREAKER_FAILURE_THRESHOLD", 5)
	v.SetDefault("BREAKER_OPEN_TIMEOUT", "30s")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("CHART_QUERY_TIMEOUT", "10s")
	v.SetDefault("CHART_SEARCH_LIMIT", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		if origins := v.GetString("CORS_ORIGINS"); origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.RepositoryBackend = strings.ToLower(strings.TrimSpace(cfg.RepositoryBackend))

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is complete for the selected
// repository backend.
func (c *Config) Validate() error {
	switch c.RepositoryBackend {
	case BackendHTTP:
		if c.FHIRBaseURL == "" {
			return fmt.Errorf("FHIR_BASE_URL is required when REPOSITORY_BACKEND is %q", BackendHTTP)
		}
		if _, err := url.ParseRequestURI(c.FHIRBaseURL); err != nil {
			return fmt.Errorf("FHIR_BASE_URL is not a valid URL: %w", err)
		}
		if c.FHIRTokenURL != "" && (c.FHIRClientID == "" || c.FHIRClientSecret == "") {
			return fmt.Errorf("FHIR_CLIENT_ID and FHIR_CLIENT_SECRET are required when FHIR_TOKEN_URL is set")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when REPOSITORY_BACKEND is %q", BackendPostgres)
		}
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("REPOSITORY_BACKEND %q is not allowed in production", BackendMemory)
		}
	default:
		return fmt.Errorf("REPOSITORY_BACKEND must be %q, %q or %q, got %q",
			BackendHTTP, BackendPostgres, BackendMemory, c.RepositoryBackend)
	}

	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.ChartSearchLimit <= 0 {
		return fmt.Errorf("CHART_SEARCH_LIMIT must be positive, got %d", c.ChartSearchLimit)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
