// Package server exposes generation over HTTP and streams steps over WebSocket.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lawnchairsociety/wfcgen/internal/config"
	"github.com/lawnchairsociety/wfcgen/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "wfc_http_requests_total",
	Help: "HTTP requests served, by route and status code.",
}, []string{"route", "code"})

// Server serves the generation API.
type Server struct {
	cfg         *config.Config
	store       *store.Store // nil when persistence is disabled
	logger      *slog.Logger
	router      *gin.Engine
	rateLimiter *RequestRateLimiter
	connLimiter *ConnLimiter
}

// New creates a server. st may be nil, in which case run endpoints answer 503.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:         cfg,
		store:       st,
		logger:      logger,
		rateLimiter: NewRequestRateLimiter(cfg.Server.RequestsPerMinute),
		connLimiter: NewConnLimiter(cfg.Server.MaxStreamsPerIP, cfg.Server.MaxStreams),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/generate", s.rateLimit(), s.handleGenerate)
		v1.GET("/stream", s.rateLimit(), s.handleStream)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}
	return r
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "address", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	return err
}

// Close releases background resources.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		s.logger.Debug("request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"client_ip", getRealIP(c.Request),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := getRealIP(c.Request)
		if !s.rateLimiter.Allow(ip) {
			s.logger.Warn("request rejected - rate limit exceeded", "client_ip", ip)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "too many requests, slow down",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "store": s.store != nil})
}
