// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults for the settings that are numbers.
const (
	DefaultServerPort     = 8080
	DefaultMaxRequestSize = 1 << 20

	DefaultClientRetryMaxAttempts     = 3
	DefaultClientRetryMultiplier      = 2.0
	DefaultClientRetryJitterFactor    = 0.25
	DefaultClientCircuitMaxFailures   = 5
	DefaultClientCircuitHalfOpenLimit = 3

	// Per source. The public catalogs throttle aggressive clients.
	DefaultClientRateLimitRPS   = 5.0
	DefaultClientRateLimitBurst = 2

	DefaultTransportMaxIdleConns        = 100
	DefaultTransportMaxIdleConnsPerHost = 10
	DefaultTransportIdleConnTimeout     = 90 * time.Second

	DefaultLogFileMaxSizeMB  = 100
	DefaultLogFileMaxBackups = 3
	DefaultLogFileMaxAgeDays = 28

	// DefaultBatchLimit is how many batch identifiers resolve at once.
	DefaultBatchLimit   = 4
	DefaultMaxBatchSize = 50

	// DefaultMaxPageBytes caps how much of an article page is read.
	DefaultMaxPageBytes = 4 << 20

	DefaultDateFormat = "%Y-%m-%d"
)

// ConfigDirEnv names the variable that overrides the configs directory.
const ConfigDirEnv = "APP_CONFIG_DIR"

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Client    ClientConfig    `koanf:"client"    validate:"required"`
	Services  ServicesConfig  `koanf:"services"  validate:"required"`
	Resolver  ResolverConfig  `koanf:"resolver"  validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"       validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"   validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"    validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,hostname_port"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// ClientConfig contains HTTP client settings for downstream services.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	Retry          RetryConfig          `koanf:"retry"           validate:"required"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
	RateLimit      RateLimitConfig      `koanf:"rate_limit"`
}

// RetryConfig contains retry settings for HTTP clients.
type RetryConfig struct {
	MaxAttempts     int           `koanf:"max_attempts"     validate:"required,min=1,max=10"`
	InitialInterval time.Duration `koanf:"initial_interval" validate:"required,min=10ms"`
	MaxInterval     time.Duration `koanf:"max_interval"     validate:"required,min=100ms"`
	Multiplier      float64       `koanf:"multiplier"       validate:"required,min=1.1,max=10"`
	JitterFactor    float64       `koanf:"jitter_factor"    validate:"min=0,max=1"`
}

// CircuitBreakerConfig contains circuit breaker settings for HTTP clients.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"         validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"      validate:"required,min=1s"`
}

// RateLimitConfig throttles outgoing requests per source. A zero rate
// disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`
	Burst             int     `koanf:"burst"               validate:"min=0"`
}

// ServicesConfig contains configuration for the bibliographic sources.
type ServicesConfig struct {
	MetaCatalog ServiceEndpointConfig `koanf:"metacatalog" validate:"required"`
	BibFormat   ServiceEndpointConfig `koanf:"bibformat"   validate:"required"`
	Citoid      ServiceEndpointConfig `koanf:"citoid"      validate:"required"`
	WorldCat    ServiceEndpointConfig `koanf:"worldcat"    validate:"required"`
	DOI         ServiceEndpointConfig `koanf:"doi"         validate:"required"`
	Web         WebConfig             `koanf:"web"         validate:"required"`
}

// Names returns the configured source names in lookup order.
func (s ServicesConfig) Names() []string {
	return []string{s.MetaCatalog.Name, s.BibFormat.Name, s.Citoid.Name, s.WorldCat.Name, s.DOI.Name, s.Web.Name}
}

// ServiceEndpointConfig contains configuration for a downstream service endpoint.
type ServiceEndpointConfig struct {
	BaseURL string `koanf:"base_url" validate:"required,url"`
	Name    string `koanf:"name"     validate:"required"`
}

// WebConfig configures fetching of arbitrary article pages.
type WebConfig struct {
	Name         string `koanf:"name"           validate:"required"`
	MaxPageBytes int64  `koanf:"max_page_bytes" validate:"required,min=1024"`
}

// ResolverConfig contains resolution engine settings.
type ResolverConfig struct {
	DefaultDateFormat string `koanf:"default_date_format" validate:"required"`
	BatchLimit        int    `koanf:"batch_limit"         validate:"required,min=1,max=64"`
	MaxBatchSize      int    `koanf:"max_batch_size"      validate:"required,min=1,max=50"`
	UserAgent         string `koanf:"user_agent"          validate:"required"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "bibresolve",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/app.log",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.insecure":      true,
		"telemetry.service_name":  "bibresolve",
		"telemetry.sampling_rate": 1.0,

		"client.timeout":                           "10s",
		"client.retry.max_attempts":                DefaultClientRetryMaxAttempts,
		"client.retry.initial_interval":            "100ms",
		"client.retry.max_interval":                "5s",
		"client.retry.multiplier":                  DefaultClientRetryMultiplier,
		"client.retry.jitter_factor":               DefaultClientRetryJitterFactor,
		"client.circuit_breaker.max_failures":      DefaultClientCircuitMaxFailures,
		"client.circuit_breaker.timeout":           "30s",
		"client.circuit_breaker.half_open_limit":   DefaultClientCircuitHalfOpenLimit,
		"client.transport.max_idle_conns":          DefaultTransportMaxIdleConns,
		"client.transport.max_idle_conns_per_host": DefaultTransportMaxIdleConnsPerHost,
		"client.transport.idle_conn_timeout":       "90s",
		"client.rate_limit.requests_per_second":    DefaultClientRateLimitRPS,
		"client.rate_limit.burst":                  DefaultClientRateLimitBurst,

		"services.metacatalog.base_url": "https://www.adinebook.com",
		"services.metacatalog.name":     "metacatalog",
		"services.bibformat.base_url":   "http://www.ottobib.com",
		"services.bibformat.name":       "bibformat",
		"services.citoid.base_url":      "https://en.wikipedia.org",
		"services.citoid.name":          "citoid",
		"services.worldcat.base_url":    "https://www.worldcat.org",
		"services.worldcat.name":        "worldcat",
		"services.doi.base_url":         "https://doi.org",
		"services.doi.name":             "doi",
		"services.web.name":             "web",
		"services.web.max_page_bytes":   DefaultMaxPageBytes,

		"resolver.default_date_format": DefaultDateFormat,
		"resolver.batch_limit":         DefaultBatchLimit,
		"resolver.max_batch_size":      DefaultMaxBatchSize,
		"resolver.user_agent":          "bibresolve/dev (+https://github.com/jsamuelsen/bibresolve)",
	}
}

// Load layers, lowest first: built-in defaults, <dir>/base.yaml,
// <dir>/<profile>.yaml, then APP_* environment variables. dir is "configs"
// unless APP_CONFIG_DIR is set. Missing files are skipped.
func Load(profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	dir := os.Getenv(ConfigDirEnv)
	if dir == "" {
		dir = "configs"
	}

	layers := []string{"base"}
	if profile != "" {
		layers = append(layers, profile)
	}

	for _, layer := range layers {
		if err := loadFileIfExists(k, filepath.Join(dir, layer+".yaml")); err != nil {
			return nil, fmt.Errorf("loading %s config: %w", layer, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", envKeyMapper(defaults())), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// envKeyMapper maps APP_SERVICES_CITOID_BASE_URL to services.citoid.base_url.
// Keys known from defaults keep their underscores; anything else has every
// underscore turned into a level separator.
func envKeyMapper(known map[string]any) func(string) string {
	flat := make(map[string]string, len(known))
	for key := range known {
		flat[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "APP_"))
		if mapped, ok := flat[key]; ok {
			return mapped
		}

		return strings.ReplaceAll(key, "_", ".")
	}
}
