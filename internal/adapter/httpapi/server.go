// Package httpapi serves search, stats and reindex over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"vsearch/internal/adapter/metrics"
	"vsearch/internal/domain"
	"vsearch/internal/engine"
	"vsearch/internal/usecase"
)

// Searcher ranks documents for a query.
type Searcher interface {
	Retrieve(query string, topN int) ([]domain.ScoredDocument, error)
}

// IndexSource describes the corpus currently served.
type IndexSource interface {
	Stats() domain.Stats
	Explain(text string) []domain.TermInfo
	Weights(docID string) (map[string]float64, bool)
}

// Indexer rebuilds and publishes the corpus.
type Indexer interface {
	Index(ctx context.Context, root string, progress engine.ProgressFunc) (*usecase.IndexResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host        string
	Port        int
	Root        string // directory rebuilt by POST /api/v1/reindex
	DefaultTopN int
}

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	searcher Searcher
	index    IndexSource
	indexer  Indexer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	config   *Config
}

// NewServer creates a new HTTP server. m may be nil.
func NewServer(searcher Searcher, index IndexSource, indexer Indexer, m *metrics.Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if searcher == nil || index == nil {
		return nil, fmt.Errorf("searcher and index source are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.DefaultTopN <= 0 {
		cfg.DefaultTopN = 10
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return nil
		}
	})

	s := &Server{
		echo:     e,
		searcher: searcher,
		index:    index,
		indexer:  indexer,
		metrics:  m,
		logger:   logger,
		config:   cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/search", s.handleSearch)
	v1.GET("/stats", s.handleStats)
	v1.POST("/reindex", s.handleReindex)
	v1.GET("/terms", s.handleTerms)
	v1.GET("/documents/weights", s.handleWeights)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// SearchResponse is the response body for GET /api/v1/search.
type SearchResponse struct {
	Query     string                  `json:"query"`
	Results   []domain.ScoredDocument `json:"results"`
	TotalDocs int                     `json:"total_docs"`
}

// WeightsResponse is the response body for GET /api/v1/documents/weights.
type WeightsResponse struct {
	DocID   string             `json:"doc_id"`
	Weights map[string]float64 `json:"weights"`
}

// ReindexResponse is the response body for POST /api/v1/reindex.
type ReindexResponse struct {
	FilesFound   int      `json:"files_found"`
	FilesIndexed int      `json:"files_indexed"`
	FilesSkipped int      `json:"files_skipped"`
	Terms        int      `json:"terms"`
	Generation   uint64   `json:"generation"`
	DurationMS   int64    `json:"duration_ms"`
	Errors       []string `json:"errors,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}

	topN := s.config.DefaultTopN
	if raw := c.QueryParam("n"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be an integer")
		}
		topN = n
	}

	totalDocs := s.index.Stats().TotalDocs

	results, err := s.searcher.Retrieve(query, topN)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidTopN) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		s.logger.Error("search failed", zap.String("query", query), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, SearchResponse{
		Query:     query,
		Results:   results,
		TotalDocs: totalDocs,
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.index.Stats())
}

// handleTerms shows the df, idf and postings behind each term of q.
func (s *Server) handleTerms(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}
	return c.JSON(http.StatusOK, s.index.Explain(q))
}

func (s *Server) handleWeights(c echo.Context) error {
	id := c.QueryParam("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id parameter is required")
	}
	weights, ok := s.index.Weights(id)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "document is not indexed")
	}
	return c.JSON(http.StatusOK, WeightsResponse{DocID: id, Weights: weights})
}

func (s *Server) handleReindex(c echo.Context) error {
	if s.indexer == nil || s.config.Root == "" {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "reindex is not configured")
	}

	result, err := s.indexer.Index(c.Request().Context(), s.config.Root, nil)
	if err != nil {
		s.logger.Error("reindex failed", zap.String("root", s.config.Root), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "reindex failed")
	}

	return c.JSON(http.StatusOK, ReindexResponse{
		FilesFound:   result.FilesFound,
		FilesIndexed: result.FilesIndexed,
		FilesSkipped: result.FilesSkipped,
		Terms:        result.Terms,
		Generation:   result.Generation,
		DurationMS:   result.Duration.Milliseconds(),
		Errors:       result.Errors,
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after
// Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
