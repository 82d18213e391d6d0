// Package api serves the strategy intelligence operations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tunogya/spi/pkg/intel"
	"github.com/tunogya/spi/pkg/logging"
	"github.com/tunogya/spi/pkg/model"
)

// HeaderRequestID carries the per-request trace id
const HeaderRequestID = "X-Request-ID"

// RegimeRecorder persists regime history. Optional.
type RegimeRecorder interface {
	SaveBatch(ctx context.Context, snapshots []model.RegimeSnapshot) error
}

// Server represents the HTTP API server
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	svc        *intel.Service
	lister     intel.StrategyLister
	recorder   RegimeRecorder
	logger     zerolog.Logger
}

// Option customises a Server
type Option func(*Server)

// WithLister enables the full re-index endpoint
func WithLister(l intel.StrategyLister) Option {
	return func(s *Server) { s.lister = l }
}

// WithRecorder persists regimes posted to the API
func WithRecorder(r RegimeRecorder) Option {
	return func(s *Server) { s.recorder = r }
}

// NewServer creates the server and registers every route
func NewServer(addr string, svc *intel.Service, logger zerolog.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router: gin.New(),
		svc:    svc,
		logger: logging.Component(logger, "api"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/recommendations", s.handleRecommend)
		v1.POST("/recommendations/candles", s.handleRecommendForCandles)
		v1.GET("/strategies/:id/similar", s.handleSimilar)
		v1.GET("/strategies/:id/explanation", s.handleExplain)
		v1.POST("/strategies/:id/ingest", s.handleIngestStrategy)
		v1.POST("/strategies/reindex", s.handleReindex)
		v1.POST("/regimes", s.handleIngestRegimes)
		v1.POST("/regimes/match", s.handleMatch)
		v1.POST("/regimes/analogues", s.handleAnalogues)
	}
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// requestLogger tags each request with an id and logs its outcome
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(HeaderRequestID, requestID)

		c.Next()

		s.logger.Debug().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// errorResponse sends an error payload
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse sends a success payload
func successResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// failure maps an operation error to a status code
func (s *Server) failure(c *gin.Context, err error) {
	if model.IsNotFound(err) {
		errorResponse(c, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	errorResponse(c, http.StatusInternalServerError, err.Error())
}
