// Package server exposes expression evaluation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/types"
)

// EvalRequest is the body of POST /v1/eval.
type EvalRequest struct {
	Query    string                 `json:"query"`
	Bindings map[string]interface{} `json:"bindings,omitempty"`
	// Limit stops pulling after this many records; 0 means no limit.
	Limit int `json:"limit,omitempty"`
	// Stream writes one JSON record per line instead of a single document.
	Stream bool `json:"stream,omitempty"`
}

// EvalResponse is the body of a successful non-streaming evaluation.
type EvalResponse struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Records []*types.Record `json:"records"`
}

// ErrorResponse describes a failed request.
type ErrorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Position int    `json:"position,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Server serves the evaluation API.
type Server struct {
	eval     *evaluator.Evaluator
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics records request metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New builds the router.
func New(ev *evaluator.Evaluator, opts ...Option) *Server {
	s := &Server{
		eval:     ev,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID())
	router.Use(metricsMiddleware(s.metrics))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/v1")
	api.POST("/eval", s.handleEval)
	api.GET("/evaluators", s.handleEvaluators)

	s.engine = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleEval(c *gin.Context) {
	var req EvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "query is required"})
		return
	}

	log := s.logger.With("request_id", c.GetString(requestIDKey), "query", req.Query)

	node, err := s.eval.Compile(req.Query)
	if err != nil {
		s.fail(c, log, err)
		return
	}
	ctx := c.Request.Context()
	seq, err := s.eval.ExecuteWithBindings(ctx, node, req.Bindings)
	if err != nil {
		s.fail(c, log, err)
		return
	}

	if req.Stream {
		s.stream(c, log, seq, req.Limit)
		return
	}

	records := make([]*types.Record, 0)
	for r, err := range seq.Records() {
		if err != nil {
			s.fail(c, log, err)
			return
		}
		records = append(records, r)
		if req.Limit > 0 && len(records) >= req.Limit {
			break
		}
	}
	log.Debug("evaluated", "count", len(records))
	c.JSON(http.StatusOK, EvalResponse{Query: req.Query, Count: len(records), Records: records})
}

// stream writes NDJSON records. Once the first line is out the status is
// fixed, so a late error is written as a final error line.
func (s *Server) stream(c *gin.Context, log *slog.Logger, seq types.Sequence, limit int) {
	next, stop := pullRecords(seq)
	defer stop()

	c.Header("Content-Type", "application/x-ndjson")
	c.Status(http.StatusOK)
	sent := 0
	c.Stream(func(w io.Writer) bool {
		r, err, ok := next()
		if !ok {
			return false
		}
		enc := json.NewEncoder(w)
		if err != nil {
			log.Warn("stream failed", "error", err)
			_ = enc.Encode(errorBody(err))
			return false
		}
		if err := enc.Encode(r); err != nil {
			return false
		}
		sent++
		return limit <= 0 || sent < limit
	})
}

func (s *Server) handleEvaluators(c *gin.Context) {
	c.JSON(http.StatusOK, s.eval.Evaluators())
}

func (s *Server) fail(c *gin.Context, log *slog.Logger, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("evaluation failed", "error", err)
	} else {
		log.Debug("evaluation rejected", "error", err)
	}
	c.JSON(status, errorBody(err))
}

func statusOf(err error) int {
	var xe *types.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &xe):
		if strings.HasPrefix(string(xe.Code), "E") {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func errorBody(err error) ErrorResponse {
	body := ErrorResponse{Error: err.Error()}
	var xe *types.Error
	if errors.As(err, &xe) {
		body.Code = string(xe.Code)
		body.Position = xe.Position
		body.Token = xe.Token
	}
	return body
}
