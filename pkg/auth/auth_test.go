package auth

import (
	"testing"
	"time"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_DisabledAcceptsAnyHeader(t *testing.T) {
	a := &Authenticator{Enabled: false}

	ctx, err := a.Authenticate("")
	require.NoError(t, err)
	assert.Equal(t, "none", ctx.Scheme)
}

func TestAuthenticator_RejectsMissingHeaderWhenEnabled(t *testing.T) {
	a := &Authenticator{Enabled: true, SharedKey: "topsecret"}

	_, err := a.Authenticate("")
	require.Error(t, err)
	assert.Equal(t, coderrors.KindUnauthorized, coderrors.KindOf(err))
}

func TestAuthenticator_RejectsMalformedHeader(t *testing.T) {
	a := &Authenticator{Enabled: true, SharedKey: "topsecret"}

	_, err := a.Authenticate("garbage-no-space")
	require.Error(t, err)
	assert.Equal(t, coderrors.KindUnauthorized, coderrors.KindOf(err))
}

func TestAuthenticator_SharedKeyAcceptsMatchingKey(t *testing.T) {
	a := &Authenticator{Enabled: true, SharedKey: "topsecret"}

	ctx, err := a.Authenticate("SharedKey topsecret")
	require.NoError(t, err)
	assert.Equal(t, "shared_key", ctx.Scheme)
}

func TestAuthenticator_SharedKeyRejectsWrongKey(t *testing.T) {
	a := &Authenticator{Enabled: true, SharedKey: "topsecret"}

	_, err := a.Authenticate("SharedKey wrongkey")
	require.Error(t, err)
	assert.Equal(t, coderrors.KindUnauthorized, coderrors.KindOf(err))
}

func TestAuthenticator_RejectsUnsupportedScheme(t *testing.T) {
	a := &Authenticator{Enabled: true, SharedKey: "topsecret"}

	_, err := a.Authenticate("Basic dXNlcjpwYXNz")
	require.Error(t, err)
}

func TestIssueAndVerifyJWT_RoundTrips(t *testing.T) {
	a := &Authenticator{Enabled: true, JWTSigningKey: "signing-key"}
	now := time.Now()

	token, err := IssueJWT("session-123", "signing-key", time.Hour, now)
	require.NoError(t, err)

	ctx, err := a.Authenticate("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "jwt", ctx.Scheme)
	assert.Equal(t, "session-123", ctx.Subject)
}

func TestAuthenticator_JWTRejectsExpiredToken(t *testing.T) {
	a := &Authenticator{Enabled: true, JWTSigningKey: "signing-key"}
	past := time.Now().Add(-2 * time.Hour)

	token, err := IssueJWT("session-123", "signing-key", time.Hour, past)
	require.NoError(t, err)

	_, err = a.Authenticate("Bearer " + token)
	require.Error(t, err)
	assert.Equal(t, coderrors.KindUnauthorized, coderrors.KindOf(err))
}

func TestAuthenticator_JWTRejectsTamperedSignature(t *testing.T) {
	a := &Authenticator{Enabled: true, JWTSigningKey: "signing-key"}
	token, err := IssueJWT("session-123", "signing-key", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = a.Authenticate("Bearer " + token + "tampered")
	require.Error(t, err)
}

func TestAuthenticator_JWTRejectsWrongSigningKey(t *testing.T) {
	a := &Authenticator{Enabled: true, JWTSigningKey: "correct-key"}
	token, err := IssueJWT("session-123", "wrong-key", time.Hour, time.Now())
	require.NoError(t, err)

	_, err = a.Authenticate("Bearer " + token)
	require.Error(t, err)
}

func TestAuthenticator_JWTRejectsMalformedToken(t *testing.T) {
	a := &Authenticator{Enabled: true, JWTSigningKey: "signing-key"}

	_, err := a.Authenticate("Bearer not-a-jwt")
	require.Error(t, err)
}
