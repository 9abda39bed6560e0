package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// --- Load defaults ---

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.CommandPrefix != "!" || cfg.StoreDriver != StoreJSON {
		t.Fatalf("bot defaults unexpected: %+v", cfg)
	}
	if cfg.ClaimsFile != "claims.json" || cfg.CollectionsFile != "user_collections.json" {
		t.Fatalf("file defaults unexpected: %q %q", cfg.ClaimsFile, cfg.CollectionsFile)
	}
	if cfg.Danbooru.BaseURL != "https://danbooru.donmai.us" || cfg.Danbooru.Timeout != 10*time.Second {
		t.Fatalf("danbooru defaults unexpected: %+v", cfg.Danbooru)
	}
	if cfg.BrowserIdleTimeout != 3*time.Minute || cfg.OfferCapacity != 1000 {
		t.Fatalf("browser defaults unexpected: %+v", cfg)
	}
	if cfg.APIBasePath != "/api/v1" || cfg.Port != "8080" || cfg.HTTPEnabled || cfg.HTTPHost != "127.0.0.1" {
		t.Fatalf("http defaults unexpected: %+v", cfg)
	}
	if cfg.Security.HSTSMaxAge != 180*24*time.Hour {
		t.Fatalf("HSTS default = %v", cfg.Security.HSTSMaxAge)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "claimbot" {
		t.Fatalf("otel defaults unexpected: %+v", cfg.OTEL)
	}
}

// --- Load overrides + normalization ---

func TestLoad_OverridesAndNormalization(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "  tok  ")
	t.Setenv("COMMAND_PREFIX", "?")
	t.Setenv("DANBOORU_BASE_URL", "https://testbooru.donmai.us/")
	t.Setenv("DANBOORU_LOGIN", "me")
	t.Setenv("DANBOORU_API_KEY", "key")
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DB_PATH", "data/bot.db")
	t.Setenv("BROWSER_IDLE_TIMEOUT", "90s")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("API_BASE_PATH", "api/v2/")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("HTTP_ENABLED", "true")
	t.Setenv("HTTP_HOST", " 0.0.0.0 ")
	t.Setenv("OPS_TOKEN", "  0123456789abcdef  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DiscordToken != "tok" || cfg.CommandPrefix != "?" {
		t.Fatalf("discord fields unexpected: %+v", cfg)
	}
	if cfg.Danbooru.BaseURL != "https://testbooru.donmai.us" || cfg.Danbooru.Login != "me" || cfg.Danbooru.APIKey != "key" {
		t.Fatalf("danbooru fields unexpected: %+v", cfg.Danbooru)
	}
	if cfg.StoreDriver != StoreSQLite || cfg.DBPath != "data/bot.db" {
		t.Fatalf("storage fields unexpected: %+v", cfg)
	}
	if cfg.BrowserIdleTimeout != 90*time.Second {
		t.Fatalf("idle timeout = %v", cfg.BrowserIdleTimeout)
	}
	if cfg.LogLevel != "warn" || cfg.GinMode != "release" || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("normalization failed: %+v", cfg)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("CORS origins = %#v; want %#v", cfg.CORS.AllowedOrigins, want)
	}
	if !cfg.HTTPEnabled || cfg.HTTPHost != "0.0.0.0" || cfg.OpsToken != "0123456789abcdef" {
		t.Fatalf("http fields unexpected: %+v", cfg)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.SampleRatio != 0.25 {
		t.Fatalf("otel fields unexpected: %+v", cfg.OTEL)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Fatalf("ValidateBot: %v", err)
	}
}

func TestLoad_MalformedValueIsError(t *testing.T) {
	t.Setenv("RATE_RPS", "x")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse env") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

// --- Validation ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"driver", map[string]string{"STORE_DRIVER": "redis"}, "STORE_DRIVER"},
		{"same files", map[string]string{"CLAIMS_FILE": "a.json", "COLLECTIONS_FILE": "a.json"}, "must differ"},
		{"command rps", map[string]string{"COMMAND_RPS": "0"}, "COMMAND_RPS"},
		{"command burst", map[string]string{"COMMAND_BURST": "0"}, "COMMAND_BURST"},
		{"base url", map[string]string{"DANBOORU_BASE_URL": "not a url"}, "DANBOORU_BASE_URL"},
		{"fetch timeout", map[string]string{"DANBOORU_TIMEOUT": "0s"}, "DANBOORU_TIMEOUT"},
		{"idle timeout", map[string]string{"BROWSER_IDLE_TIMEOUT": "-1s"}, "BROWSER_IDLE_TIMEOUT"},
		{"offer capacity", map[string]string{"OFFER_CAPACITY": "0"}, "OFFER_CAPACITY"},
		{"timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts", map[string]string{"HSTS_MAX_AGE": "-1h"}, "HSTS_MAX_AGE"},
		{"sampler", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
		{"http without ops token", map[string]string{"HTTP_ENABLED": "true"}, "OPS_TOKEN"},
		{"short ops token", map[string]string{"HTTP_ENABLED": "true", "OPS_TOKEN": "short"}, "OPS_TOKEN"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateBot_RequiresToken(t *testing.T) {
	if err := (Config{}).ValidateBot(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

// --- helpers ---

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"  ":       "/",
		"/":        "/",
		"api":      "/api",
		"/api/":    "/api",
		"api/v1//": "/api/v1",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
