// Package api exposes the aggregator over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ThetaSpace/swap-quote-aggregator/internal/aggregator"
)

// Aggregator is the service behind the quote endpoint
type Aggregator interface {
	Aggregate(ctx context.Context, req aggregator.Request) *aggregator.Response
	Adapters() []string
}

// Server holds the HTTP handlers
type Server struct {
	svc    Aggregator
	logger *slog.Logger
}

// New creates the HTTP server
func New(svc Aggregator, logger *slog.Logger) *Server {
	return &Server{
		svc:    svc,
		logger: logger.With("component", "API"),
	}
}

// Router builds the gin engine
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/quote", s.handleQuote)
	api.GET("/sources", s.handleSources)

	return r
}

// handleQuote answers 200 for both success and error responses; only a
// malformed query string is rejected with 400.
func (s *Server) handleQuote(c *gin.Context) {
	var req aggregator.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, aggregator.ErrorResponse(req, fmt.Errorf("invalid query: %w", err)))
		return
	}

	resp := s.svc.Aggregate(c.Request.Context(), req)
	if resp.RequestID != "" {
		c.Header("X-Request-Id", resp.RequestID)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSources(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sources": s.svc.Adapters()})
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request served",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
