// Package httpapi is the HTTP front-end: it translates network
// requests into Manager calls and renders the {success, data, error}
// JSON envelope (§6). It holds only a shared reference to the Manager
// injected at construction time — no package-level state.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/plughost/plughost/internal/manager"
)

// Server wraps a gin engine and the shared Manager it dispatches to.
type Server struct {
	engine *gin.Engine
	http   *http.Server
	mgr    *manager.Manager
	log    *slog.Logger
}

// New builds the router and binds it to addr. promHandler may be nil,
// in which case /metrics is not mounted.
func New(mgr *manager.Manager, log *slog.Logger, addr string, promHandler http.Handler) *Server {
	if log == nil {
		log = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestIDMiddleware(), slogLogger(log))

	s := &Server{mgr: mgr, log: log, engine: engine}
	s.routes(promHandler)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes(promHandler http.Handler) {
	s.engine.GET("/health", health)
	v1 := s.engine.Group("/api/v1")
	v1.GET("/health", health)
	v1.GET("/plugins", s.listPlugins)
	v1.POST("/plugins/:name/execute", s.executePlugin)
	v1.PUT("/plugins/:name/enable", s.setEnabled(true))
	v1.PUT("/plugins/:name/disable", s.setEnabled(false))
	v1.POST("/rescan", s.rescan)
	v1.GET("/history", s.history)
	v1.GET("/events", s.events)

	if promHandler != nil {
		s.engine.GET("/metrics", gin.WrapH(promHandler))
	}
}

// ListenAndServe starts the HTTP server; it returns http.ErrServerClosed
// on a graceful Shutdown, matching the standard library convention.
func (s *Server) ListenAndServe() error {
	s.log.Info("http server starting", "addr", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func health(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"status": "ok"})
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// requestIDMiddleware stamps every request with a correlation ID,
// grounded in the teacher's direct dependency on google/uuid.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func slogLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString("request_id"),
		)
	}
}
