// Package config loads PatentGuard settings.
//
// Values are layered: built-in defaults, then an optional YAML file named by
// PATENTGUARD_CONFIG_FILE, then PATENTGUARD_* environment variables. A .env
// file (PATENTGUARD_ENV_FILE, default ".env") is read first but never
// overrides variables that are already set.
//
// Common settings:
//
//	PATENTGUARD_ENVIRONMENT="production"   # development, staging, production
//	PATENTGUARD_SECRET_KEY="..."           # token signing key, >= 32 bytes in production
//	PATENTGUARD_PORT="8000"
//	PATENTGUARD_HEALTH_PORT="9090"
//	PATENTGUARD_STORAGE_TYPE="postgres"    # memory, sqlite, postgres
//	PATENTGUARD_DATABASE_URL="postgres://localhost/patentguard"
//	PATENTGUARD_REDIS_URL="redis://localhost:6379/0"
//	PATENTGUARD_RATE_LIMIT_DEFAULT="100/minute,1000/hour"
//	PATENTGUARD_CORS_ORIGINS="https://app.example.com"
//	PATENTGUARD_LOG_LEVEL="info"
//	PATENTGUARD_JSON_LOGS="true"
//
// In development an empty secret key is replaced by a random one and
// GeneratedSecret is set so the caller can warn about it.
package config
