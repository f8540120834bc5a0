// Package debugapi serves the agent's loopback-only diagnostics surface:
// /healthz, /metrics and /debug/components. A single gin.Engine wrapped in
// an http.Server, stripped down to what belongs on a device-local,
// unauthenticated diagnostics port.
package debugapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgecore/edgeagentd/internal/config"
	"github.com/edgecore/edgeagentd/internal/health"
	"github.com/edgecore/edgeagentd/internal/lifecycle"
	"github.com/edgecore/edgeagentd/internal/metrics"
	"github.com/edgecore/edgeagentd/internal/middleware/logging"
	"github.com/edgecore/edgeagentd/internal/middleware/recovery"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// Server is the loopback HTTP server exposing health, metrics and
// component-status endpoints for operators and local tooling.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	log        logger.Logger
}

// NewServer builds a Server bound to cfg.Listen. cfg.Listen is expected
// to be a loopback address (e.g. "127.0.0.1:8443"); the caller is
// responsible for keeping it off any externally reachable interface.
func NewServer(cfg config.DebugConfig, registry *lifecycle.Registry, collector metrics.Collector, version, buildTime string, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(recovery.Handler(log, recovery.Config{}))
	router.Use(logging.RequestLogger(log, logging.Config{SkipPaths: []string{"/healthz", "/metrics"}}))
	router.Use(requestMetrics(collector))

	checker := health.NewChecker(version, buildTime)
	checker.AddCheck(componentsHealthCheck(registry))

	router.GET("/healthz", healthzHandler(checker))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/debug/components", componentsHandler(registry))

	return &Server{
		router: router,
		httpServer: &http.Server{
			Addr:              cfg.Listen,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start blocks, serving until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.log.Info("starting debug API", logger.String("address", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug API listen: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server is bound to.
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func requestMetrics(collector metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if collector != nil {
			collector.RecordRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
		}
	}
}

func healthzHandler(checker *health.Checker) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := checker.RunChecks()
		status := http.StatusOK
		if result.Status == health.StatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status": statusJSON(result.Status),
			"checks": result.Checks,
			"uptime": result.Uptime,
			"goos":   result.GOOS,
			"goarch": result.GOARCH,
		})
	}
}

func statusJSON(s health.Status) string {
	if s == health.StatusUp {
		return "up"
	}
	return "down"
}

// componentsHealthCheck reports DOWN if any registered component has
// settled into the Broken lifecycle state.
func componentsHealthCheck(registry *lifecycle.Registry) health.CheckFunction {
	return func() health.Check {
		for _, name := range registry.Names() {
			if registry.RetrieveComponentStatus(name) == lifecycle.ReportBroken {
				return health.Check{Name: "components", Status: health.StatusDown, Details: map[string]string{"broken": name}}
			}
		}
		return health.Check{Name: "components", Status: health.StatusUp}
	}
}

type componentStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func componentsHandler(registry *lifecycle.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := registry.Names()
		statuses := make([]componentStatus, 0, len(names))
		for _, name := range names {
			statuses = append(statuses, componentStatus{
				Name:  name,
				State: string(registry.RetrieveComponentStatus(name)),
			})
		}
		c.JSON(http.StatusOK, gin.H{"components": statuses})
	}
}
