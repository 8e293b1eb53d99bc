// Package server exposes the executor over HTTP with gin.
//
//	POST /v1/execute    run one function, always answers with a result envelope
//	GET  /v1/functions  tool definitions in model function-calling format
//	GET  /healthz       liveness
//	GET  /metrics       Prometheus metrics (when a gatherer is configured)
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/storefn/core"
	"github.com/hupe1980/storefn/executor"
	"github.com/hupe1980/storefn/logging"
	"github.com/hupe1980/storefn/metrics"
)

const rateLimitedMessage = "too many requests for this store, please try again shortly"

// Options configures a Server.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// Gatherer backs GET /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
	// CORSOrigins lists allowed origins; "*" allows all.
	CORSOrigins []string
	// RateLimit is requests per second per store; zero disables limiting.
	RateLimit float64
	RateBurst int
	// ShutdownTimeout bounds graceful shutdown in Run.
	ShutdownTimeout time.Duration
}

// Server is the HTTP transport for an Executor.
type Server struct {
	exec    *executor.Executor
	opts    Options
	logger  logging.Logger
	limiter *storeLimiter
	engine  *gin.Engine
}

// New builds the router. The engine is created eagerly so Handler can be
// used directly in tests.
func New(exec *executor.Executor, optFns ...func(o *Options)) *Server {
	opts := Options{
		CORSOrigins:     []string{"*"},
		ShutdownTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		exec:    exec,
		opts:    opts,
		logger:  logging.OrNoOp(opts.Logger),
		limiter: newStoreLimiter(opts.RateLimit, opts.RateBurst),
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(corsConfig(s.opts.CORSOrigins)))
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	v1 := r.Group("/v1")
	{
		v1.POST("/execute", s.handleExecute)
		v1.GET("/functions", s.handleFunctions)
	}
	r.GET("/healthz", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.opts.Gatherer)))
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

func (s *Server) handleExecute(c *gin.Context) {
	var req executor.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, core.Result{Success: false, Error: "invalid request body: " + err.Error()})
		return
	}
	if token := bearerToken(c.GetHeader("Authorization")); token != "" {
		req.AuthToken = token
	}

	if !s.limiter.Allow(req.StoreID) {
		s.opts.Metrics.ObserveRateLimited()
		s.logger.Warn("server.rate_limited", "store_id", req.StoreID, "function", req.FunctionName)
		c.JSON(http.StatusTooManyRequests, core.Result{Success: false, Error: rateLimitedMessage})
		return
	}

	c.JSON(http.StatusOK, s.exec.Handle(c.Request.Context(), req))
}

func (s *Server) handleFunctions(c *gin.Context) {
	reg := s.exec.Registry()
	c.JSON(http.StatusOK, gin.H{
		"version":   reg.Version(),
		"functions": reg.ToolDefinitions(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.exec.Registry().Version()})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("server.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.start", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	s.logger.Info("server.stop", "addr", addr)
	return srv.Shutdown(shutdownCtx)
}
