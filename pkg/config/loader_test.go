package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv(envDatabaseURL, "postgres://localhost:5432/coderloop")
}

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, []string{"*"}, cfg.Auth.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 60, cfg.RateLimit.Max)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, 85, cfg.Orchestrator.QualityThreshold)
	assert.Equal(t, 5, cfg.Orchestrator.MaxIterations)
	assert.Equal(t, 30, cfg.Orchestrator.TaskTimeoutMinutes)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, 30, cfg.Retention.SessionRetentionDays)
}

func TestLoad_ReadsOverridesFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(envAuthEnabled, "true")
	t.Setenv(envAuthSharedKey, "topsecret")
	t.Setenv(envAllowedOrigins, "https://a.example, https://b.example")
	t.Setenv(envRateLimitMax, "120")
	t.Setenv(envQualityThreshold, "90")
	t.Setenv(envSessionRetentionDay, "7")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, "topsecret", cfg.Auth.SharedKey)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Auth.AllowedOrigins)
	assert.Equal(t, 120, cfg.RateLimit.Max)
	assert.Equal(t, 90, cfg.Orchestrator.QualityThreshold)
	assert.Equal(t, 7, cfg.Retention.SessionRetentionDays)
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "database_url", verr.Field)
}

func TestLoad_RejectsAuthEnabledWithoutCredentials(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(envAuthEnabled, "true")

	_, err := Load("")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "auth", verr.Field)
}

func TestLoad_RejectsOutOfRangeQualityThreshold(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(envQualityThreshold, "150")

	_, err := Load("")
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quality_threshold", verr.Field)
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv(envCacheTTL, "not-a-duration")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
}

func TestLoad_ExpandsTemplatedSecrets(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_KEY_MATERIAL", "super-signing-key")
	t.Setenv(envJWTSigningKey, "{{.JWT_KEY_MATERIAL}}")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "super-signing-key", cfg.Auth.JWTSigningKey)
}

func TestLoad_MissingEnvFileIsNotAnError(t *testing.T) {
	setRequiredEnv(t)
	_, err := Load("/nonexistent/path/to/.env")
	require.NoError(t, err)
}
