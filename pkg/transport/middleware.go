package transport

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	echo "github.com/labstack/echo/v5"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
)

// securityHeaders sets the fixed defensive header set the teacher's
// reference MCP server applies to every response.
func securityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			return next(c)
		}
	}
}

// authenticated wraps an echo handler so it is rejected per spec §4.1
// step 2 unless the Authorization header authenticates.
func (s *Server) authenticated(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if _, err := s.auth.Authenticate(c.Request().Header.Get("Authorization")); err != nil {
			c.Response().Header().Set("WWW-Authenticate", "Bearer")
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": err.Error()})
		}
		return next(c)
	}
}

// rateLimitIdentifier derives the rate-limit identifier per spec §4.1
// step 3's preference order: authenticated user id, else a hash of the
// authorization header, else client ip.
func rateLimitIdentifier(authSubject, authorizationHeader, clientIP string) string {
	if authSubject != "" && authSubject != "anonymous" {
		return authSubject
	}
	if authorizationHeader != "" {
		sum := sha256.Sum256([]byte(authorizationHeader))
		return hex.EncodeToString(sum[:])
	}
	return clientIP
}

// toolErrorKind returns err's coderrors.Kind as the classification
// string used in diagnostic payloads (spec §7: "no stack traces to
// clients").
func toolErrorKind(err error) string {
	return string(coderrors.KindOf(err))
}
