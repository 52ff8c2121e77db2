package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names (spec §6: "Environment configuration
// (names stable, purposes)"). Stable once released; do not rename.
const (
	envAuthEnabled         = "CODELOOP_AUTH_ENABLED"
	envAuthSharedKey       = "CODELOOP_AUTH_SHARED_KEY"
	envJWTSigningKey       = "CODELOOP_JWT_SIGNING_KEY"
	envJWTExpiry           = "CODELOOP_JWT_EXPIRY"
	envAllowedOrigins      = "CODELOOP_ALLOWED_ORIGINS"
	envMetricsPort         = "CODELOOP_METRICS_PORT"
	envRateLimitWindow     = "CODELOOP_RATE_LIMIT_WINDOW"
	envRateLimitMax        = "CODELOOP_RATE_LIMIT_MAX"
	envCacheTTL            = "CODELOOP_CACHE_TTL"
	envCacheCapacity       = "CODELOOP_CACHE_CAPACITY"
	envDatabaseURL         = "CODELOOP_DATABASE_URL"
	envQualityThreshold    = "CODELOOP_QUALITY_THRESHOLD"
	envMaxIterations       = "CODELOOP_MAX_ITERATIONS"
	envTaskTimeoutMinutes  = "CODELOOP_TASK_TIMEOUT_MINUTES"
	envSessionRetentionDay = "CODELOOP_SESSION_RETENTION_DAYS"
	envPolicyDir           = "CODELOOP_POLICY_DIR"
)

// Load reads configuration from the process environment, per spec §6's
// stable environment-configuration list. envFile, if non-empty, is
// loaded into the process environment first via godotenv (local dev
// convenience); missing envFile is not an error, matching the teacher's
// "file absence falls through to defaults" loading idiom.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, NewLoadError(envFile, err)
		}
	}

	cfg := &Config{
		Auth: AuthConfig{
			Enabled:        getBool(envAuthEnabled, false),
			SharedKey:      expandSecret(os.Getenv(envAuthSharedKey)),
			JWTSigningKey:  expandSecret(os.Getenv(envJWTSigningKey)),
			JWTExpiry:      getDuration(envJWTExpiry, time.Hour),
			AllowedOrigins: getList(envAllowedOrigins, []string{"*"}),
		},
		RateLimit: RateLimitConfig{
			Window: getDuration(envRateLimitWindow, time.Minute),
			Max:    getInt(envRateLimitMax, 60),
		},
		Cache: CacheConfig{
			TTL:      getDuration(envCacheTTL, 5*time.Minute),
			Capacity: getInt(envCacheCapacity, 1000),
		},
		Database: DatabaseConfig{
			URL: expandSecret(os.Getenv(envDatabaseURL)),
		},
		Orchestrator: OrchestratorDefaults{
			QualityThreshold:   getInt(envQualityThreshold, 85),
			MaxIterations:      getInt(envMaxIterations, 5),
			TaskTimeoutMinutes: getInt(envTaskTimeoutMinutes, 30),
		},
		Metrics: MetricsConfig{
			Port: getInt(envMetricsPort, 9090),
		},
		Retention: DefaultRetentionConfig(),
		PolicyDir: os.Getenv(envPolicyDir),
	}
	cfg.Retention.SessionRetentionDays = getInt(envSessionRetentionDay, cfg.Retention.SessionRetentionDays)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	slog.Info("configuration loaded",
		"auth_enabled", cfg.Auth.Enabled,
		"database_url_set", cfg.Database.URL != "",
		"quality_threshold", cfg.Orchestrator.QualityThreshold,
		"max_iterations", cfg.Orchestrator.MaxIterations)

	return cfg, nil
}

// validateConfig checks the invariants the loader can enforce without
// reaching out to the database or network.
func validateConfig(cfg *Config) error {
	if cfg.Auth.Enabled && cfg.Auth.SharedKey == "" && cfg.Auth.JWTSigningKey == "" {
		return NewValidationError("auth", fmt.Errorf("%w: auth enabled but no shared key or JWT signing key configured", ErrMissingRequiredField))
	}
	if cfg.Database.URL == "" {
		return NewValidationError("database_url", ErrMissingRequiredField)
	}
	if cfg.Orchestrator.QualityThreshold < 0 || cfg.Orchestrator.QualityThreshold > 100 {
		return NewValidationError("quality_threshold", fmt.Errorf("%w: must be 0-100", ErrInvalidValue))
	}
	if cfg.Orchestrator.MaxIterations < 1 {
		return NewValidationError("max_iterations", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	if cfg.RateLimit.Max < 1 {
		return NewValidationError("rate_limit_max", fmt.Errorf("%w: must be >= 1", ErrInvalidValue))
	}
	return nil
}

// expandSecret applies {{.VAR}} expansion to a single scalar value so
// secrets can be composed from other environment variables (e.g. a
// signing key assembled at deploy time), reusing the same mechanism
// the policy/config YAML loaders use for file content.
func expandSecret(raw string) string {
	if raw == "" || !strings.Contains(raw, "{{") {
		return raw
	}
	return string(ExpandEnv([]byte(raw)))
}

func getBool(name string, def bool) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env var, using default", "name", name, "value", v)
		return def
	}
	return b
}

func getInt(name string, def int) int {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "name", name, "value", v)
		return def
	}
	return n
}

func getDuration(name string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(name)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "name", name, "value", v)
		return def
	}
	return d
}

func getList(name string, def []string) []string {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
