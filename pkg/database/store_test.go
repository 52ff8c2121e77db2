package database

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/coderloop/coderloop/pkg/session"
)

func TestContentHashList_ReflectsSessionContentHashes(t *testing.T) {
	s := session.New("session-1", 5, 85, 30, 0)
	s.AppendArtifact(session.Artifact{Kind: session.ArtifactCode, Content: "package main"})
	s.AppendArtifact(session.Artifact{Kind: session.ArtifactLog, Content: "not hashed"})
	// content_hashes is populated by the Loop Guard / Orchestrator, not
	// by AppendArtifact itself (see session.AppendArtifact).
	s.ContentHashes[session.ContentDigest("package main")] = struct{}{}

	hashes := contentHashList(s)
	assert.Len(t, hashes, 1)
	assert.Equal(t, session.ContentDigest("package main"), hashes[0])
}

func TestIsUniqueViolation_DetectsPgErrorCode(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	assert.True(t, isUniqueViolation(err))
}

func TestIsUniqueViolation_FalseForOtherErrors(t *testing.T) {
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
