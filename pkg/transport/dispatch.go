package transport

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	coderrors "github.com/coderloop/coderloop/pkg/errors"
	"github.com/coderloop/coderloop/pkg/validate"
)

// toolHandler is the shape every one of the twelve tool implementations
// satisfies, once the dispatch pipeline has authenticated, rate-limited,
// and validated the call (spec §4.1 steps 2-4).
type toolHandler func(ctx context.Context, args map[string]any) (any, error)

// dispatch wraps handler with the five common steps of spec §4.1's
// tool-call surface: in-flight tracking, auth, rate limiting,
// validation, and metrics — so every tool registration in register.go
// reduces to supplying its name and its toolHandler.
func (s *Server) dispatch(name string, handler toolHandler) func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		succeeded := false
		defer func() {
			s.metrics.RecordToolCall(name, succeeded, float64(time.Since(start).Milliseconds()))
		}()

		done, err := s.beginRequest()
		if err != nil {
			return errorResult(name, coderrors.New(coderrors.KindInternal, "server shutting down")), nil
		}
		defer done()

		authCtx, authErr := s.auth.Authenticate(authHeaderFromContext(ctx))
		if authErr != nil {
			return errorResult(name, authErr), nil
		}

		identifier := rateLimitIdentifier(authCtx.Subject, authHeaderFromContext(ctx), clientIPFromContext(ctx))
		if result := s.limiter.Allow(identifier); !result.Allowed {
			rlErr := coderrors.New(coderrors.KindRateLimited, "rate limit exceeded").
				WithField("retry_after_seconds", strconv.Itoa(result.RetryAfterSeconds))
			return errorResult(name, rlErr), nil
		}

		args := req.GetArguments()
		validation := validate.Validate(schemaFor(name), args)
		if !validation.Valid {
			valErr := coderrors.New(coderrors.KindValidation, "argument validation failed")
			for _, fe := range validation.Errors {
				valErr = valErr.WithField(fe.Field, fe.Message)
			}
			return errorResult(name, valErr), nil
		}

		out, err := handler(ctx, validation.Sanitized)
		if err != nil {
			return errorResult(name, err), nil
		}
		succeeded = true
		return textResult(out)
	}
}

func textResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult("", coderrors.Wrap(coderrors.KindInternal, "serialize result", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult implements spec §7's propagation policy: the client sees
// the tool name and a short error string, never a stack trace.
func errorResult(tool string, err error) *mcp.CallToolResult {
	payload := map[string]string{
		"tool":  tool,
		"error": err.Error(),
		"kind":  toolErrorKind(err),
	}
	data, _ := json.Marshal(payload)
	result := mcp.NewToolResultText(string(data))
	result.IsError = true
	return result
}
