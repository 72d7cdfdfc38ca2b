package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowmetrics/flowmetrics/internal/handler"
	"github.com/flowmetrics/flowmetrics/internal/live"
	"github.com/flowmetrics/flowmetrics/internal/logger"
	"github.com/flowmetrics/flowmetrics/internal/metrics"
)

// Server wraps an http.Server with graceful shutdown
type Server struct {
	httpServer *http.Server
}

// IngestDeps holds everything the ingestion API needs
type IngestDeps struct {
	Queue               handler.Queue
	MaxEventsPerRequest int
}

// AnalyticsDeps holds everything the analytics API needs
type AnalyticsDeps struct {
	Stats      handler.StatsReader
	Rules      handler.RuleCreator
	Registry   *live.Registry
	Updater    *live.Updater
	HealthDeps map[string]handler.Pinger
}

// NewIngestServer builds the ingestion API router
func NewIngestServer(port int, deps IngestDeps) *Server {
	r := baseRouter()

	r.Get("/healthz", handler.HandleHealthz())
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/ingest", handler.HandleIngest(deps.Queue, deps.MaxEventsPerRequest))

	return newServer(port, r)
}

// NewAnalyticsServer builds the analytics API router
func NewAnalyticsServer(port int, deps AnalyticsDeps) *Server {
	r := baseRouter()

	r.Get("/healthz", handler.HandleHealthz())
	r.Get("/readyz", handler.HandleReadyz(deps.HealthDeps))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/stats", handler.HandleGetStats(deps.Stats))
	r.Post("/aggregation-rule", handler.HandleCreateRule(deps.Rules))
	r.Get("/live-stats", live.Handler(deps.Registry, deps.Updater))

	return newServer(port, r)
}

func baseRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware)
	return r
}

func newServer(port int, r chi.Router) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	logger.Info(LogMsgServerStarting, "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Hijack passes through so websocket upgrades work behind this wrapper
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, errors.New("response writer does not support hijacking")
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Health and metrics endpoints are scraped constantly; logging
		// them drowns out everything else
		if strings.HasPrefix(r.URL.Path, "/healthz") ||
			strings.HasPrefix(r.URL.Path, "/readyz") ||
			strings.HasPrefix(r.URL.Path, "/metrics") {
			next.ServeHTTP(w, r)
			return
		}

		requestID := logger.GenerateRequestID()
		ctx := logger.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		log := logger.FromContext(ctx)
		log.Info(LogMsgRequestStarted,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"content_length", r.ContentLength)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		log.Info(LogMsgRequestCompleted,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}
