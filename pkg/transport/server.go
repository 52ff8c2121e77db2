// Package transport is the Transport Front-End (spec §4.1): the
// tool-call dispatch surface (twelve MCP tools, §6) plus the
// metrics/health HTTP surface, wired together from every other
// package. It owns the in-flight counter and graceful shutdown.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/mark3labs/mcp-go/server"

	"github.com/coderloop/coderloop/pkg/auth"
	"github.com/coderloop/coderloop/pkg/cache"
	"github.com/coderloop/coderloop/pkg/clock"
	"github.com/coderloop/coderloop/pkg/config"
	"github.com/coderloop/coderloop/pkg/loopguard"
	"github.com/coderloop/coderloop/pkg/metrics"
	"github.com/coderloop/coderloop/pkg/orchestrator"
	"github.com/coderloop/coderloop/pkg/policy"
	"github.com/coderloop/coderloop/pkg/ratelimit"
	"github.com/coderloop/coderloop/pkg/session"
	"github.com/coderloop/coderloop/pkg/staticanalysis"
	"github.com/coderloop/coderloop/pkg/testexec"
)

// shutdownSpinWait is the maximum time spec §4.1 allows the in-flight
// counter to drain before the process force-exits.
const shutdownSpinWait = 30 * time.Second

// Server wires every supporting package into the tool-call and
// metrics/health surfaces described in spec §4.1, grounded on the
// teacher's pkg/api.Server.
type Server struct {
	cfg *config.Config

	echo       *echo.Echo
	httpServer *http.Server
	mcp        *server.MCPServer
	mcpHTTP    *server.StreamableHTTPServer

	auth    *auth.Authenticator
	limiter *ratelimit.Limiter
	cache   *cache.Cache
	metrics *metrics.Sink

	store        session.Store
	clients      *ClientRegistry
	tests        testexec.Executor
	analysis     staticanalysis.Analyzer
	policies     *policy.Registry
	orchestrator *orchestrator.Orchestrator
	archiver     *ArchiveBuilder
	clock        clock.Clock
	guard        loopguard.Config
	logger       *slog.Logger

	inFlight     int64
	shuttingDown int32
}

// Deps bundles the constructed supporting services NewServer wires
// together. Every field is required except Logger, which defaults to
// slog.Default().
type Deps struct {
	Config   *config.Config
	Store    session.Store
	Clients  *ClientRegistry
	Tests    testexec.Executor
	Analysis staticanalysis.Analyzer
	Clock    clock.Clock
	Metrics  *metrics.Sink
	Policies *policy.Registry
	Logger   *slog.Logger
}

// NewServer constructs a fully wired Server, including the
// Orchestrator and its Archiver.
func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	guard := loopguard.DefaultConfig()

	archiver := &ArchiveBuilder{Store: d.Store, Clock: d.Clock}

	orch := &orchestrator.Orchestrator{
		Store:    d.Store,
		Coder:    d.Clients,
		Critic:   d.Clients,
		Tests:    d.Tests,
		Analysis: d.Analysis,
		Archiver: archiver,
		Clock:    d.Clock,
		Guard:    guard,
		Logger:   logger,
	}

	s := &Server{
		cfg:          d.Config,
		auth:         &auth.Authenticator{Enabled: d.Config.Auth.Enabled, SharedKey: d.Config.Auth.SharedKey, JWTSigningKey: d.Config.Auth.JWTSigningKey},
		limiter:      ratelimit.New(d.Config.RateLimit.Window, d.Config.RateLimit.Max, 60*time.Second),
		cache:        cache.New(d.Config.Cache.Capacity, 60*time.Second),
		metrics:      d.Metrics,
		store:        d.Store,
		clients:      d.Clients,
		tests:        d.Tests,
		analysis:     d.Analysis,
		policies:     d.Policies,
		orchestrator: orch,
		archiver:     archiver,
		clock:        d.Clock,
		guard:        guard,
		logger:       logger,
	}

	s.setupMCP()
	s.setupHTTP()
	return s
}

func (s *Server) isShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

func (s *Server) beginRequest() (func(), error) {
	if s.isShuttingDown() {
		return nil, fmt.Errorf("server is shutting down")
	}
	atomic.AddInt64(&s.inFlight, 1)
	return func() { atomic.AddInt64(&s.inFlight, -1) }, nil
}

// setupHTTP registers the metrics/health surface (spec §4.1: "/metrics
// public, /health and /ready authenticated"). The MCP streamable-HTTP
// handler is not mounted here; Start serves it on its own address.
func (s *Server) setupHTTP() {
	e := echo.New()
	e.HideBanner = true
	e.Use(securityHeaders())
	e.Use(middleware.BodyLimit(2 * 1024 * 1024))

	e.GET("/metrics", s.metricsHandler)
	e.GET("/health", s.authenticated(s.healthHandler))
	e.GET("/ready", s.authenticated(s.readyHandler))

	s.echo = e
}

// setupMCP registers the twelve tools (spec §6) against an MCP server
// served over streamable HTTP, grounded on the tool-registration idiom
// of the pack's MCP server reference file, adapted to mark3labs/mcp-go's
// real current API.
func (s *Server) setupMCP() {
	s.mcp = server.NewMCPServer("coderloop", "1.0.0")
	s.registerTools()
	s.mcpHTTP = server.NewStreamableHTTPServer(s.mcp, server.WithHTTPContextFunc(httpContextFunc))
}

// Start runs both the MCP streamable-HTTP surface (addr) and the
// metrics/health surface (httpAddr), blocking until either fails.
func (s *Server) Start(addr, httpAddr string) error {
	errCh := make(chan error, 2)
	go func() { errCh <- s.mcpHTTP.Start(addr) }()
	go func() {
		s.httpServer = &http.Server{Addr: httpAddr, Handler: s.echo}
		errCh <- s.httpServer.ListenAndServe()
	}()
	return <-errCh
}

// StartWithListener serves the metrics/health surface on a
// pre-created listener, used by tests wanting a random OS-assigned
// port. The MCP surface is not started by this path.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown implements spec §4.1's graceful-shutdown routine: set
// shutting_down, refuse new work, spin-wait up to 30s for the
// in-flight counter to drain (logging every second), then close
// transports. Idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.shuttingDown, 0, 1) {
		return nil
	}

	deadline := time.Now().Add(shutdownSpinWait)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for atomic.LoadInt64(&s.inFlight) > 0 && time.Now().Before(deadline) {
		select {
		case <-ticker.C:
			s.logger.Info("waiting for in-flight requests to drain", "in_flight", atomic.LoadInt64(&s.inFlight))
		case <-ctx.Done():
			break
		}
	}

	s.limiter.Stop()
	s.cache.Stop()

	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mcpHTTP != nil {
		if err := s.mcpHTTP.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
