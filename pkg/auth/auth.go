// Package auth implements the Transport Front-End's credential checks
// (spec §7 Unauthorized/Forbidden): a static shared key and an HMAC-
// signed JWT, either of which may authenticate a tool call.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
)

// Context describes the caller a request was authenticated as.
type Context struct {
	Subject string
	Scheme  string // shared_key | jwt
}

// Authenticator validates the Authorization header value presented
// with a tool call against the configured shared key and/or JWT
// signing key. When Enabled is false every call is treated as
// authenticated (spec's auth on/off environment toggle).
type Authenticator struct {
	Enabled       bool
	SharedKey     string
	JWTSigningKey string
}

// Authenticate validates an "Authorization" header value of the form
// "Bearer <token>" or "SharedKey <key>". It returns a KindUnauthorized
// *errors.Error when the credential is missing or invalid.
func (a *Authenticator) Authenticate(header string) (Context, error) {
	if !a.Enabled {
		return Context{Subject: "anonymous", Scheme: "none"}, nil
	}
	if header == "" {
		return Context{}, coderrors.New(coderrors.KindUnauthorized, "missing Authorization header")
	}

	scheme, credential, ok := strings.Cut(header, " ")
	if !ok {
		return Context{}, coderrors.New(coderrors.KindUnauthorized, "malformed Authorization header")
	}

	switch scheme {
	case "SharedKey":
		if a.SharedKey == "" || !constantTimeEqual(credential, a.SharedKey) {
			return Context{}, coderrors.New(coderrors.KindUnauthorized, "invalid shared key")
		}
		return Context{Subject: "shared-key", Scheme: "shared_key"}, nil
	case "Bearer":
		claims, err := verifyJWT(credential, a.JWTSigningKey)
		if err != nil {
			return Context{}, coderrors.Wrap(coderrors.KindUnauthorized, "invalid token", err)
		}
		return Context{Subject: claims.Subject, Scheme: "jwt"}, nil
	default:
		return Context{}, coderrors.New(coderrors.KindUnauthorized, "unsupported auth scheme")
	}
}

func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// claims is the minimal JWT payload this service issues and verifies.
type claims struct {
	Subject   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

// IssueJWT mints an HS256 JWT for subject, expiring after ttl.
func IssueJWT(subject, signingKey string, ttl time.Duration, now time.Time) (string, error) {
	header := base64URL([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims{Subject: subject, ExpiresAt: now.Add(ttl).Unix()})
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := base64URL(body)
	signature := sign(header+"."+payload, signingKey)
	return header + "." + payload + "." + signature, nil
}

func verifyJWT(token, signingKey string) (claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return claims{}, fmt.Errorf("malformed token")
	}
	expected := sign(parts[0]+"."+parts[1], signingKey)
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return claims{}, fmt.Errorf("signature mismatch")
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return claims{}, fmt.Errorf("decode payload: %w", err)
	}
	var c claims
	if err := json.Unmarshal(body, &c); err != nil {
		return claims{}, fmt.Errorf("unmarshal claims: %w", err)
	}
	if time.Now().Unix() > c.ExpiresAt {
		return claims{}, fmt.Errorf("token expired")
	}
	return c, nil
}

func sign(signingInput, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(signingInput))
	return base64URL(mac.Sum(nil))
}

func base64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
