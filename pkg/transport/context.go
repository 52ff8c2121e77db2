package transport

import (
	"context"
	"net/http"
)

type contextKey string

const (
	ctxKeyAuthHeader contextKey = "coderloop.auth_header"
	ctxKeyClientIP   contextKey = "coderloop.client_ip"
)

// httpContextFunc copies the Authorization header and remote address
// from the inbound HTTP request into the MCP call context, so tool
// handlers can run the same authenticate/rate-limit steps the
// metrics/health surface runs (spec §4.1 steps 2-3).
func httpContextFunc(ctx context.Context, r *http.Request) context.Context {
	ctx = context.WithValue(ctx, ctxKeyAuthHeader, r.Header.Get("Authorization"))
	ctx = context.WithValue(ctx, ctxKeyClientIP, r.RemoteAddr)
	return ctx
}

func authHeaderFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyAuthHeader).(string)
	return v
}

func clientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyClientIP).(string)
	return v
}
