// Package ids generates the stable, lowercase-alphanumeric-hyphen
// identifiers used for sessions and artifacts (spec §3).
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// NewSessionID returns an id of the form "session-<uuid>" (10-100 chars,
// lowercase alphanumeric + hyphens, per spec §3).
func NewSessionID() string {
	return "session-" + strings.ToLower(uuid.NewString())
}

// NewArtifactID returns an id of the form "artifact-<uuid>".
func NewArtifactID() string {
	return "artifact-" + strings.ToLower(uuid.NewString())
}

// NewRequestID returns a bare uuid used for request/log correlation.
func NewRequestID() string {
	return uuid.NewString()
}

// NewArchiveID returns an id of the form "archive-<uuid>", used by
// final_handoff_archive (spec §6).
func NewArchiveID() string {
	return "archive-" + strings.ToLower(uuid.NewString())
}

// NewReviewID returns an id of the form "review-<uuid>", used by
// run_critic_review (spec §6).
func NewReviewID() string {
	return "review-" + strings.ToLower(uuid.NewString())
}
