package config

import "time"

// RetentionConfig controls the background sweep that evicts terminal
// sessions once they age past SessionRetentionDays.
type RetentionConfig struct {
	// SessionRetentionDays is how many days to keep a terminal session
	// (CONVERGED, ESCALATED, FAILED) or IDLE before evicting it.
	SessionRetentionDays int `yaml:"session_retention_days"`

	// CleanupInterval is how often the sweep loop runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the spec-mandated retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		SessionRetentionDays: 30,
		CleanupInterval:      12 * time.Hour,
	}
}
