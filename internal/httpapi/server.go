// Package httpapi exposes the administrative HTTP surface: session
// creation, prompt updates, operator-initiated sends, pairing artifact
// downloads and a health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/amadou/relais/pkg/session"
)

// ServerOptions configures the admin HTTP server.
type ServerOptions struct {
	Host        string
	Port        int
	ArtifactDir string // directory served under /qr/
}

// Server is the admin HTTP server
type Server struct {
	options        ServerOptions
	server         *http.Server
	controller     *session.Controller
	registry       *session.Registry
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new admin server
func NewServer(options ServerOptions, controller *session.Controller, registry *session.Registry, logger zerolog.Logger) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	return &Server{
		options:    options,
		controller: controller,
		registry:   registry,
		logger:     logger.With().Str("component", "httpapi").Logger(),
		startTime:  time.Now(),
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/generate-session", s.handleGenerateSession)
	mux.HandleFunc("/update-context", s.handleUpdateContext)
	mux.HandleFunc("/send-message", s.handleSendMessage)

	if s.options.ArtifactDir != "" {
		mux.Handle("/qr/", http.StripPrefix("/qr/", http.FileServer(http.Dir(s.options.ArtifactDir))))
	}

	return s.withMiddleware(mux)
}

// Start starts the admin server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler: s.Handler(),
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting admin server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start admin server: %w", err)
	}

	return nil
}

// Stop gracefully stops the admin server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down admin server")

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown admin server: %w", err)
		}
	}

	s.logger.Info().Msg("Admin server stopped")
	return nil
}

// withMiddleware tags each request with an ID, rejects traffic during
// shutdown, and writes an access log entry.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		requestID, err := gonanoid.New()
		if err != nil {
			requestID = "unknown"
		}
		w.Header().Set("X-Request-Id", requestID)

		startTime := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", clientIP(r)).
			Int("status", recorder.status).
			Int64("duration", time.Since(startTime).Milliseconds()).
			Msg("Request completed")
	})
}

// statusRecorder captures the response status for access logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
