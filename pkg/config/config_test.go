package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intellium/patentguard/pkg/observability"
	"github.com/intellium/patentguard/pkg/storage"
)

// isolate points the loader away from any .env in the package directory
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("PATENTGUARD_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("PATENTGUARD_CONFIG_FILE", "")
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("PG_TEST_STR", "custom")
	t.Setenv("PG_TEST_BOOL", "1")
	t.Setenv("PG_TEST_INT", "42")
	t.Setenv("PG_TEST_BAD_INT", "forty-two")
	t.Setenv("PG_TEST_DURATION", "90s")
	t.Setenv("PG_TEST_FLOAT", "0.25")

	assert.Equal(t, "custom", getEnv("PG_TEST_STR", "default"))
	assert.Equal(t, "default", getEnv("PG_TEST_UNSET", "default"))
	assert.True(t, getEnvBool("PG_TEST_BOOL", false))
	assert.True(t, getEnvBool("PG_TEST_UNSET", true))
	assert.Equal(t, 42, getEnvInt("PG_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("PG_TEST_BAD_INT", 7))
	assert.Equal(t, int64(42), getEnvInt64("PG_TEST_INT", 0))
	assert.Equal(t, 90*time.Second, getEnvDuration("PG_TEST_DURATION", time.Second))
	assert.Equal(t, 0.25, getEnvFloat("PG_TEST_FLOAT", 1))
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, int64(1<<20), cfg.Server.MaxBodyBytes)
	assert.Equal(t, storage.TypeMemory, cfg.Storage.Type)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL)
	assert.Zero(t, cfg.Auth.TokenLeeway)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, "5/minute", cfg.RateLimit.Profiles["register"])
	assert.Equal(t, "100/minute,1000/hour", cfg.RateLimit.Profiles["default"])
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, observability.InfoLevel, cfg.Observability.Level())

	// development without a key gets a generated one
	assert.True(t, cfg.GeneratedSecret)
	assert.Len(t, cfg.Auth.SecretKey, 64)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("PATENTGUARD_ENVIRONMENT", "Production")
	t.Setenv("PATENTGUARD_SECRET_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("PATENTGUARD_PORT", "9000")
	t.Setenv("PATENTGUARD_STORAGE_TYPE", "postgres")
	t.Setenv("PATENTGUARD_DATABASE_URL", "postgres://u:p@db/app")
	t.Setenv("PATENTGUARD_ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("PATENTGUARD_TOKEN_LEEWAY", "5s")
	t.Setenv("PATENTGUARD_BCRYPT_COST", "11")
	t.Setenv("PATENTGUARD_RATE_LIMIT_LOGIN", "3/minute")
	t.Setenv("PATENTGUARD_RATE_LIMIT_ENABLED", "false")
	t.Setenv("PATENTGUARD_CORS_ORIGINS", "https://app.example.com, https://admin.example.com")
	t.Setenv("PATENTGUARD_LOG_LEVEL", "debug")
	t.Setenv("PATENTGUARD_JSON_LOGS", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.False(t, cfg.GeneratedSecret)
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, storage.TypePostgres, cfg.Storage.Type)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Auth.TokenLeeway)
	assert.Equal(t, 11, cfg.Auth.BcryptCost)
	assert.Equal(t, "3/minute", cfg.RateLimit.Profiles["login"])
	assert.Equal(t, "5/minute", cfg.RateLimit.Profiles["register"])
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"https://app.example.com", "https://admin.example.com"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.Level())
	assert.False(t, cfg.Observability.JSONLogs)
}

func TestLoadConfig_YAMLFileThenEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "patentguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
server:
  port: "7000"
  read_timeout: 5s
auth:
  secret_key: from-file
  bcrypt_cost: 6
storage:
  type: sqlite
  sqlite_path: /tmp/pg.db
rate_limit:
  profiles:
    default: "50/minute"
`), 0o600))
	t.Setenv("PATENTGUARD_CONFIG_FILE", path)
	t.Setenv("PATENTGUARD_PORT", "7100")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "7100", cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "from-file", cfg.Auth.SecretKey)
	assert.Equal(t, 6, cfg.Auth.BcryptCost)
	assert.Equal(t, storage.TypeSQLite, cfg.Storage.Type)
	assert.Equal(t, "50/minute", cfg.RateLimit.Profiles["default"])
	assert.Equal(t, "5/minute", cfg.RateLimit.Profiles["register"])
}

func TestLoadConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PATENTGUARD_PORT=7200\nPATENTGUARD_HEALTH_PORT=7201\n"), 0o600))

	t.Setenv("PATENTGUARD_ENV_FILE", envFile)
	t.Setenv("PATENTGUARD_CONFIG_FILE", "")
	t.Setenv("PATENTGUARD_PORT", "7300")
	// godotenv sets variables that are not already present; register cleanup for them
	t.Setenv("PATENTGUARD_HEALTH_PORT", "")
	os.Unsetenv("PATENTGUARD_HEALTH_PORT")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7300", cfg.Server.Port)
	assert.Equal(t, "7201", cfg.Server.HealthPort)
}

func TestLoadConfig_BadYAML(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	t.Setenv("PATENTGUARD_CONFIG_FILE", path)

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_MissingSecretOutsideDevelopment(t *testing.T) {
	isolate(t)
	t.Setenv("PATENTGUARD_ENVIRONMENT", "staging")

	_, err := LoadConfig()
	assert.ErrorContains(t, err, "secret key")
}

func validConfig() *Config {
	cfg := Default()
	cfg.Auth.SecretKey = "0123456789abcdef0123456789abcdef"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"unknown environment", func(c *Config) { c.Environment = "qa" }, "invalid environment"},
		{"same ports", func(c *Config) { c.Server.HealthPort = c.Server.Port }, "must be different"},
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server port is required"},
		{"unknown store", func(c *Config) { c.Storage.Type = "mongo" }, "invalid storage type"},
		{"postgres without url", func(c *Config) { c.Storage.Type = storage.TypePostgres }, "postgres URL"},
		{"empty secret", func(c *Config) { c.Auth.SecretKey = "" }, "secret key is required"},
		{"short production secret", func(c *Config) {
			c.Environment = EnvProduction
			c.Auth.SecretKey = "short"
		}, "at least 32 bytes"},
		{"bcrypt cost too low", func(c *Config) { c.Auth.BcryptCost = 2 }, "bcrypt cost"},
		{"bcrypt cost too high", func(c *Config) { c.Auth.BcryptCost = 40 }, "bcrypt cost"},
		{"negative leeway", func(c *Config) { c.Auth.TokenLeeway = -time.Second }, "leeway"},
		{"half superuser", func(c *Config) { c.Auth.FirstSuperuserEmail = "admin@example.com" }, "set together"},
		{"bad rate limit", func(c *Config) { c.RateLimit.Profiles["login"] = "ten/minute" }, "profile login"},
		{"unknown rate limit backend", func(c *Config) { c.RateLimit.Backend = "memcached" }, "rate limit backend"},
		{"redis backend without url", func(c *Config) { c.RateLimit.Backend = "redis" }, "redis URL"},
		{"otel without endpoint", func(c *Config) {
			c.Observability.OTelEnabled = true
			c.Observability.OTelEndpoint = ""
		}, "endpoint is required"},
		{"bad sample ratio", func(c *Config) { c.Observability.OTelSampleRatio = 2 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestAuthConfig_BootstrapEnabled(t *testing.T) {
	assert.False(t, AuthConfig{}.BootstrapEnabled())
	assert.False(t, AuthConfig{FirstSuperuserEmail: "a@example.com"}.BootstrapEnabled())
	assert.True(t, AuthConfig{FirstSuperuserEmail: "a@example.com", FirstSuperuserPassword: "pw"}.BootstrapEnabled())
}

func TestObservabilityConfig_OTel(t *testing.T) {
	o := Default().Observability
	o.OTelEnabled = true

	otel := o.OTel()
	assert.True(t, otel.Enabled)
	assert.Equal(t, "patentguard-api", otel.ServiceName)
	assert.Equal(t, 1.0, otel.SampleRatio)
}
