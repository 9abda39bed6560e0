// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot settings (Discord,
// image-board credentials, storage, browser sessions) alongside the ops HTTP
// server, logging, rate limiting and observability.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const minOpsTokenLen = 16

// Storage drivers.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool          `env:"ENABLE_HSTS"  envDefault:"false"`
	HSTSMaxAge time.Duration `env:"HSTS_MAX_AGE" envDefault:"4320h"`
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    `env:"OTEL_ENABLED"                envDefault:"false"`
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME"           envDefault:"claimbot"`
	SampleRatio float64 `env:"OTEL_TRACES_SAMPLER_ARG"     envDefault:"1.0"`
}

// DanbooruConfig holds the image-board API settings.
type DanbooruConfig struct {
	BaseURL string        `env:"DANBOORU_BASE_URL" envDefault:"https://danbooru.donmai.us"`
	Login   string        `env:"DANBOORU_LOGIN"`
	APIKey  string        `env:"DANBOORU_API_KEY"`
	Timeout time.Duration `env:"DANBOORU_TIMEOUT"  envDefault:"10s"`
}

// Config holds all configuration values for the application.
type Config struct {
	// Discord
	DiscordToken  string  `env:"DISCORD_TOKEN"`
	CommandPrefix string  `env:"COMMAND_PREFIX" envDefault:"!"`
	CommandRPS    float64 `env:"COMMAND_RPS"    envDefault:"0.5"` // per-user command tokens per second
	CommandBurst  int     `env:"COMMAND_BURST"  envDefault:"3"`

	// Image board
	Danbooru DanbooruConfig

	// Storage
	StoreDriver     string `env:"STORE_DRIVER"     envDefault:"json"` // json|sqlite
	ClaimsFile      string `env:"CLAIMS_FILE"      envDefault:"claims.json"`
	CollectionsFile string `env:"COLLECTIONS_FILE" envDefault:"user_collections.json"`
	DBPath          string `env:"DB_PATH"          envDefault:"claimbot.db"`

	// Claims / browser
	BrowserIdleTimeout time.Duration `env:"BROWSER_IDLE_TIMEOUT" envDefault:"3m"`
	OfferCapacity      int           `env:"OFFER_CAPACITY"       envDefault:"1000"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"` // debug|info|warn|error|fatal|panic
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Ops HTTP server. Off by default; enabling it requires OPS_TOKEN.
	HTTPEnabled       bool          `env:"HTTP_ENABLED"        envDefault:"false"`
	HTTPHost          string        `env:"HTTP_HOST"           envDefault:"127.0.0.1"`
	Port              string        `env:"PORT"                envDefault:"8080"`
	OpsToken          string        `env:"OPS_TOKEN"` // bearer token for the API routes
	ReadTimeout       time.Duration `env:"READ_TIMEOUT"        envDefault:"15s"`
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT" envDefault:"10s"`
	WriteTimeout      time.Duration `env:"WRITE_TIMEOUT"       envDefault:"20s"`
	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        envDefault:"60s"`
	MaxHeaderBytes    int           `env:"MAX_HEADER_BYTES"    envDefault:"1048576"`
	GinMode           string        `env:"GIN_MODE"            envDefault:"release"` // debug|release|test
	APIBasePath       string        `env:"API_BASE_PATH"       envDefault:"/api/v1"`

	// Rate limiting (HTTP)
	RateRPS   float64 `env:"RATE_RPS"   envDefault:"5.0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	// --- normalization ---
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	cfg.GinMode = strings.ToLower(strings.TrimSpace(cfg.GinMode))
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.APIBasePath = normalizeBasePath(cfg.APIBasePath)
	cfg.CORS.AllowedOrigins = trimAll(cfg.CORS.AllowedOrigins)
	cfg.Danbooru.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Danbooru.BaseURL), "/")
	cfg.DiscordToken = strings.TrimSpace(cfg.DiscordToken)
	cfg.OpsToken = strings.TrimSpace(cfg.OpsToken)
	cfg.HTTPHost = strings.TrimSpace(cfg.HTTPHost)

	return cfg, cfg.Validate()
}

// Validate checks the invariants Load relies on. The Discord token is checked
// separately by ValidateBot because offline commands do not need it.
func (cfg Config) Validate() error {
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	switch cfg.StoreDriver {
	case StoreJSON:
		if strings.TrimSpace(cfg.ClaimsFile) == "" || strings.TrimSpace(cfg.CollectionsFile) == "" {
			return errors.New("CLAIMS_FILE and COLLECTIONS_FILE must not be empty")
		}
		if cfg.ClaimsFile == cfg.CollectionsFile {
			return errors.New("CLAIMS_FILE and COLLECTIONS_FILE must differ")
		}
	case StoreSQLite:
		if strings.TrimSpace(cfg.DBPath) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	default:
		return errors.New("STORE_DRIVER must be one of: json, sqlite")
	}
	if strings.TrimSpace(cfg.CommandPrefix) == "" {
		return errors.New("COMMAND_PREFIX must not be empty")
	}
	if cfg.CommandRPS <= 0 {
		return errors.New("COMMAND_RPS must be > 0")
	}
	if cfg.CommandBurst < 1 {
		return errors.New("COMMAND_BURST must be >= 1")
	}
	if u, err := url.Parse(cfg.Danbooru.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("DANBOORU_BASE_URL must be an absolute URL")
	}
	if cfg.Danbooru.Timeout <= 0 {
		return errors.New("DANBOORU_TIMEOUT must be > 0")
	}
	if cfg.BrowserIdleTimeout <= 0 {
		return errors.New("BROWSER_IDLE_TIMEOUT must be > 0")
	}
	if cfg.OfferCapacity < 1 {
		return errors.New("OFFER_CAPACITY must be >= 1")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.HTTPEnabled && len(cfg.OpsToken) < minOpsTokenLen {
		return fmt.Errorf("OPS_TOKEN of at least %d characters is required when HTTP_ENABLED", minOpsTokenLen)
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ValidateBot checks the settings required to connect to Discord.
func (cfg Config) ValidateBot() error {
	if cfg.DiscordToken == "" {
		return errors.New("DISCORD_TOKEN must be set")
	}
	return nil
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, p := range in {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
