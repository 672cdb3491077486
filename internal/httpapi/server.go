// Package httpapi implements Lerim's read-mostly HTTP surface (§6 "HTTP
// API"): health/status, run listing and search, memory listing/search,
// platform/project connection management, synchronous chat, and
// background-worker kickoff for sync/maintain. Grounded on the teacher's
// pkg/api package — gin-gonic/gin routing and DI-constructed Server
// (pkg/api/handlers.go), generalized from one alert-session resource to
// this package's resource set, with pkg/api/errors.go's mapServiceError
// adapted to gin's JSON-response idiom.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lerim-dev/lerim/internal/runtime"
	"github.com/lerim-dev/lerim/internal/version"
)

// Version is the API's reported build version (§6 "GET /api/health").
var Version = version.Full()

// Server wires a gin.Engine over a *runtime.Runtime. One Server is built
// per process; it never mutates the memory tree directly (§5 "the HTTP
// API and dashboard are read-only with respect to memory").
type Server struct {
	rt     *runtime.Runtime
	jobs   *jobRegistry
	engine *gin.Engine
	http   *http.Server
}

// NewServer builds a Server with every route group registered.
func NewServer(rt *runtime.Runtime) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger())

	s := &Server{rt: rt, jobs: newJobRegistry(), engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin.Engine, e.g. for tests using
// httptest.NewServer or net/http/httptest.
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)

	api.GET("/runs", s.handleListRuns)
	api.GET("/runs/stats", s.handleRunStats)
	api.GET("/runs/:id/messages", s.handleRunMessages)

	api.GET("/search", s.handleSearch)

	api.GET("/memories", s.handleListMemories)
	api.GET("/memories/:id", s.handleGetMemory)

	api.GET("/connect", s.handleListConnections)
	api.POST("/connect", s.handleConnect)

	api.POST("/project/add", s.handleProjectAdd)
	api.POST("/project/remove", s.handleProjectRemove)

	api.POST("/chat", s.handleChat)

	api.POST("/sync", s.handleSync)
	api.POST("/maintain", s.handleMaintain)
	api.GET("/jobs/:id", s.handleJobStatus)

	api.GET("/config", s.handleGetConfig)
	api.PATCH("/config", s.handlePatchConfig)

	// §6 "PUT/DELETE and a few explicit reflect endpoints return 403
	// read-only": the memory tree and catalog are written only by the
	// sync/maintain cycles, never by this process's HTTP handlers.
	api.PUT("/*path", readOnly)
	api.DELETE("/*path", readOnly)
}

// requestLogger mirrors the teacher's gin.Logger default middleware but
// routes through log/slog to match the rest of the codebase's structured
// logging.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.InfoContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Start runs the server on host:port until the context is cancelled, then
// shuts it down gracefully (§6 "serve", §5 "SIGTERM ... calls HTTP
// shutdown").
func (s *Server) Start(ctx context.Context, host string, port int) error {
	s.http = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
