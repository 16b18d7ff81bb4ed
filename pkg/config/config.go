package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/intellium/patentguard/pkg/middleware"
	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
)

// Environment names
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// minProductionSecretBytes is the shortest signing key accepted in production
const minProductionSecretBytes = 32

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Auth configuration
	Auth AuthConfig `yaml:"auth"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// CORS configuration
	CORS CORSConfig `yaml:"cors"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// GeneratedSecret is set when a development signing key was generated
	GeneratedSecret bool `yaml:"-"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// AuthConfig holds credential and token settings
type AuthConfig struct {
	SecretKey       string        `yaml:"secret_key"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	TokenLeeway     time.Duration `yaml:"token_leeway"`
	BcryptCost      int           `yaml:"bcrypt_cost"`

	// Both must be set to bootstrap a superuser at startup
	FirstSuperuserEmail    string `yaml:"first_superuser_email"`
	FirstSuperuserPassword string `yaml:"first_superuser_password"`
}

// BootstrapEnabled reports whether a superuser should be ensured at startup
func (a AuthConfig) BootstrapEnabled() bool {
	return a.FirstSuperuserEmail != "" && a.FirstSuperuserPassword != ""
}

// RateLimitConfig holds rate limiter settings
type RateLimitConfig struct {
	Enabled           bool              `yaml:"enabled"`
	Backend           string            `yaml:"backend"` // "memory" or "redis"
	TrustProxyHeaders bool              `yaml:"trust_proxy_headers"`
	MaxKeys           int               `yaml:"max_keys"`
	Profiles          map[string]string `yaml:"profiles"`
}

// CORSConfig holds cross-origin settings
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	JSONLogs bool   `yaml:"json_logs"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Auth: AuthConfig{
			AccessTokenTTL:  30 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
			BcryptCost:      bcrypt.DefaultCost,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  "memory",
			MaxKeys:  100000,
			Profiles: middleware.DefaultProfiles(),
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:8080"},
			AllowCredentials: true,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			JSONLogs:           true,
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "patentguard-api",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, an optional .env file,
// an optional YAML file and finally PATENTGUARD_* environment variables.
func LoadConfig() (*Config, error) {
	if err := loadDotEnv(getEnv("PATENTGUARD_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := Default()

	if path := os.Getenv("PATENTGUARD_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if cfg.Auth.SecretKey == "" && cfg.Environment == EnvDevelopment {
		key, err := generateSecret()
		if err != nil {
			return nil, err
		}
		cfg.Auth.SecretKey = key
		cfg.GeneratedSecret = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding the real environment
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays PATENTGUARD_* variables onto the current values
func (c *Config) applyEnv() {
	c.Environment = strings.ToLower(getEnv("PATENTGUARD_ENVIRONMENT", c.Environment))

	// Server
	s := &c.Server
	s.Host = getEnv("PATENTGUARD_HOST", s.Host)
	s.Port = getEnv("PATENTGUARD_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("PATENTGUARD_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("PATENTGUARD_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("PATENTGUARD_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("PATENTGUARD_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("PATENTGUARD_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.HealthPort = getEnv("PATENTGUARD_HEALTH_PORT", s.HealthPort)

	// Storage
	st := &c.Storage
	st.Type = getEnv("PATENTGUARD_STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("PATENTGUARD_DATABASE_URL", st.PostgresURL)
	st.SQLitePath = getEnv("PATENTGUARD_SQLITE_PATH", st.SQLitePath)
	st.MaxOpenConns = getEnvInt("PATENTGUARD_DB_MAX_OPEN_CONNS", st.MaxOpenConns)
	st.MaxIdleConns = getEnvInt("PATENTGUARD_DB_MAX_IDLE_CONNS", st.MaxIdleConns)
	st.ConnMaxLifetime = getEnvDuration("PATENTGUARD_DB_CONN_MAX_LIFETIME", st.ConnMaxLifetime)
	st.ConnMaxIdleTime = getEnvDuration("PATENTGUARD_DB_CONN_MAX_IDLE_TIME", st.ConnMaxIdleTime)
	st.ConnectTimeout = getEnvDuration("PATENTGUARD_DB_CONNECT_TIMEOUT", st.ConnectTimeout)
	st.QueryTimeout = getEnvDuration("PATENTGUARD_DB_QUERY_TIMEOUT", st.QueryTimeout)
	st.AutoMigrate = getEnvBool("PATENTGUARD_DB_AUTO_MIGRATE", st.AutoMigrate)
	st.RedisURL = getEnv("PATENTGUARD_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("PATENTGUARD_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("PATENTGUARD_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("PATENTGUARD_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("PATENTGUARD_REDIS_POOL_SIZE", st.RedisPoolSize)

	// Auth
	a := &c.Auth
	a.SecretKey = getEnv("PATENTGUARD_SECRET_KEY", a.SecretKey)
	a.AccessTokenTTL = getEnvDuration("PATENTGUARD_ACCESS_TOKEN_TTL", a.AccessTokenTTL)
	if minutes := getEnvInt("PATENTGUARD_ACCESS_TOKEN_EXPIRE_MINUTES", 0); minutes > 0 {
		a.AccessTokenTTL = time.Duration(minutes) * time.Minute
	}
	a.RefreshTokenTTL = getEnvDuration("PATENTGUARD_REFRESH_TOKEN_TTL", a.RefreshTokenTTL)
	a.TokenLeeway = getEnvDuration("PATENTGUARD_TOKEN_LEEWAY", a.TokenLeeway)
	a.BcryptCost = getEnvInt("PATENTGUARD_BCRYPT_COST", a.BcryptCost)
	a.FirstSuperuserEmail = getEnv("PATENTGUARD_FIRST_SUPERUSER_EMAIL", a.FirstSuperuserEmail)
	a.FirstSuperuserPassword = getEnv("PATENTGUARD_FIRST_SUPERUSER_PASSWORD", a.FirstSuperuserPassword)

	// Rate limiting
	r := &c.RateLimit
	r.Enabled = getEnvBool("PATENTGUARD_RATE_LIMIT_ENABLED", r.Enabled)
	r.Backend = getEnv("PATENTGUARD_RATE_LIMIT_BACKEND", r.Backend)
	r.TrustProxyHeaders = getEnvBool("PATENTGUARD_RATE_LIMIT_TRUST_PROXY", r.TrustProxyHeaders)
	r.MaxKeys = getEnvInt("PATENTGUARD_RATE_LIMIT_MAX_KEYS", r.MaxKeys)
	if r.Profiles == nil {
		r.Profiles = make(map[string]string)
	}
	for _, profile := range []string{middleware.ProfileRegister, middleware.ProfileLogin, middleware.ProfileDefault} {
		key := "PATENTGUARD_RATE_LIMIT_" + strings.ToUpper(profile)
		r.Profiles[profile] = getEnv(key, r.Profiles[profile])
	}

	// CORS
	if origins := getEnv("PATENTGUARD_CORS_ORIGINS", ""); origins != "" {
		c.CORS.AllowedOrigins = splitList(origins)
	}
	c.CORS.AllowCredentials = getEnvBool("PATENTGUARD_CORS_ALLOW_CREDENTIALS", c.CORS.AllowCredentials)

	// Observability
	o := &c.Observability
	o.LogLevel = getEnv("PATENTGUARD_LOG_LEVEL", o.LogLevel)
	o.JSONLogs = getEnvBool("PATENTGUARD_JSON_LOGS", o.JSONLogs)
	o.MetricsEnabled = getEnvBool("PATENTGUARD_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("PATENTGUARD_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PATENTGUARD_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PATENTGUARD_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PATENTGUARD_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PATENTGUARD_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("PATENTGUARD_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.Environment)
	}

	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	// Validate auth config
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("secret key is required outside development")
	}
	if c.Environment == EnvProduction && len(c.Auth.SecretKey) < minProductionSecretBytes {
		return fmt.Errorf("secret key must be at least %d bytes in production", minProductionSecretBytes)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost %d out of range [%d, %d]", c.Auth.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token lifetimes must be positive")
	}
	if c.Auth.TokenLeeway < 0 {
		return fmt.Errorf("token leeway must not be negative")
	}
	if (c.Auth.FirstSuperuserEmail == "") != (c.Auth.FirstSuperuserPassword == "") {
		return fmt.Errorf("first superuser email and password must be set together")
	}

	// Validate rate limit config
	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.RateLimit.Enabled && c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxKeys <= 0 {
		return fmt.Errorf("rate limit max keys must be positive")
	}
	if _, err := middleware.ParseProfiles(c.RateLimit.Profiles); err != nil {
		return err
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
	}

	return nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate development secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
