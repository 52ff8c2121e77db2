package transport

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricsHandler serves the Prometheus text exposition (spec §4.1:
// "/metrics public"). The otel Prometheus exporter registers against
// the default Prometheus registry, so promhttp.Handler needs no wiring
// back to s.metrics.
func (s *Server) metricsHandler(c *echo.Context) error {
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

type healthStatus struct {
	Status           string `json:"status"`
	PersistenceOK    bool   `json:"persistence_ok"`
	CachedAt         int64  `json:"cached_at_unix_ms"`
}

// healthHandler reports liveness, caching its persistence probe for 30s
// (spec §4.1: "/health authenticated, cached 30s").
func (s *Server) healthHandler(c *echo.Context) error {
	v, err := s.cache.GetOrSet("health", 30*time.Second, func() (any, error) {
		_, listErr := s.store.List()
		status := healthStatus{
			Status:        "ok",
			PersistenceOK: listErr == nil,
			CachedAt:      time.Now().UnixMilli(),
		}
		if listErr != nil {
			status.Status = "degraded"
		}
		return status, nil
	})
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "error"})
	}
	return c.JSON(http.StatusOK, v)
}

// readyHandler reports readiness: success iff the session store is
// reachable right now (spec §4.1: "/ready authenticated, persistence
// reachability"), never served from cache.
func (s *Server) readyHandler(c *echo.Context) error {
	if _, err := s.store.List(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
