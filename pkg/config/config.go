package config

import "time"

// AuthConfig controls the authentication scheme enforced by
// pkg/transport (spec §7 Unauthorized/Forbidden).
type AuthConfig struct {
	Enabled         bool
	SharedKey       string
	JWTSigningKey   string
	JWTExpiry       time.Duration
	AllowedOrigins  []string
}

// RateLimitConfig configures the per-identifier token bucket
// (pkg/ratelimit).
type RateLimitConfig struct {
	Window time.Duration
	Max    int
}

// CacheConfig configures the TTL cache (pkg/cache).
type CacheConfig struct {
	TTL      time.Duration
	Capacity int
}

// DatabaseConfig configures the durable session store (pkg/database).
type DatabaseConfig struct {
	URL string
}

// OrchestratorDefaults configures the per-call defaults the
// orchestrator falls back to when a caller doesn't override them
// (spec §4.6 Options).
type OrchestratorDefaults struct {
	QualityThreshold   int
	MaxIterations      int
	TaskTimeoutMinutes int
}

// MetricsConfig configures the Prometheus exposition endpoint
// (pkg/metrics).
type MetricsConfig struct {
	Port int
}

// Config is the umbrella configuration object assembled by Load. It is
// the single object threaded through cmd/coderloopd's wiring.
type Config struct {
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Cache        CacheConfig
	Database     DatabaseConfig
	Orchestrator OrchestratorDefaults
	Metrics      MetricsConfig
	Retention    *RetentionConfig
	PolicyDir    string
}
