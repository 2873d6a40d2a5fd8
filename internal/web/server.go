package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/service"
)

const templatesGlob = "web/templates/*.html"

// Server exposes the status page, the published uploads, and a health
// endpoint.
type Server struct {
	logger       *slog.Logger
	presence     *service.Presence
	httpServer   *http.Server
	startedAt    time.Time
	hasTemplates bool
}

func NewServer(cfg config.Config, logger *slog.Logger, presence *service.Presence) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	if cfg.WebAllowCORS {
		engine.Use(cors.Default())
	}

	server := &Server{
		logger:    logger,
		presence:  presence,
		startedAt: time.Now(),
	}

	// The template directory is optional; a bare deployment still gets a
	// plain-text status line.
	if _, err := os.Stat("web/templates"); err == nil {
		engine.LoadHTMLGlob(templatesGlob)
		server.hasTemplates = true
	}

	engine.GET("/", server.indexHandler)
	engine.GET("/healthz", server.healthHandler)
	engine.Static("/uploads", cfg.UploadsDir)
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

func (s *Server) indexHandler(c *gin.Context) {
	state := string(s.presence.State())
	uptime := time.Since(s.startedAt).Round(time.Second).String()
	if !s.hasTemplates {
		c.String(http.StatusOK, "direct url uploader bot: %s (uptime %s)\n", state, uptime)
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"State":  state,
		"Online": s.presence.Online(),
		"Uptime": uptime,
	})
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"state":         string(s.presence.State()),
		"uptimeSeconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
