// Package bridge serves the host commands and the event stream over a local
// HTTP listener, for UI shells that are not linked into the Go process.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/ZebulonRouseFrantzich/pandock/internal/binary"
	"github.com/ZebulonRouseFrantzich/pandock/internal/events"
	"github.com/ZebulonRouseFrantzich/pandock/internal/logging"
	"github.com/ZebulonRouseFrantzich/pandock/internal/pandoc"
	"github.com/ZebulonRouseFrantzich/pandock/internal/service"
)

const (
	writeWait       = 10 * time.Second
	maxRequestBytes = 64 * 1024
	shutdownTimeout = 15 * time.Second
)

// Commands is the host command surface the bridge exposes.
type Commands interface {
	ResolveOrInstallBinary(ctx context.Context) (*binary.State, error)
	GetInstalledBinaryPathIfAny() (string, bool)
	ConvertDocument(ctx context.Context, binaryPath, inputPath, outputFormat string) (*pandoc.ConversionResult, error)
	CheckBinaryUsable(ctx context.Context, binaryPath string) (bool, error)
	FetchVersionString(ctx context.Context, binaryPath string) (string, error)
	OutputFormats() []pandoc.Format
}

// Server routes bridge requests to Commands and streams bus events to
// WebSocket clients.
type Server struct {
	router   *chi.Mux
	commands Commands
	bus      *events.Bus
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a bridge. Events published on bus are forwarded to every
// /v1/events client.
func NewServer(commands Commands, bus *events.Bus, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &Server{
		router:   chi.NewRouter(),
		commands: commands,
		bus:      bus,
		logger:   logger,
		upgrader: websocket.Upgrader{CheckOrigin: checkLocalOrigin},
	}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requestLogger)

	s.router.Get("/healthz", s.health)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(s.localOriginOnly)
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/binary/resolve", s.resolveBinary)
		r.Get("/binary/installed", s.installedBinary)
		r.Post("/binary/check", s.checkBinary)
		r.Post("/binary/version", s.binaryVersion)
		r.Post("/convert", s.convert)
		r.Get("/formats", s.formats)
		r.Get("/events", s.eventsWS)
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("bridge listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	s.logger.Info("bridge stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
}

type binaryRequest struct {
	BinaryPath string `json:"binary_path"`
}

type installedResponse struct {
	Installed  bool   `json:"installed"`
	BinaryPath string `json:"binary_path,omitempty"`
}

func (s *Server) resolveBinary(w http.ResponseWriter, r *http.Request) {
	state, err := s.commands.ResolveOrInstallBinary(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, state)
}

func (s *Server) installedBinary(w http.ResponseWriter, r *http.Request) {
	path, ok := s.commands.GetInstalledBinaryPathIfAny()
	s.respondJSON(w, http.StatusOK, installedResponse{Installed: ok, BinaryPath: path})
}

func (s *Server) checkBinary(w http.ResponseWriter, r *http.Request) {
	var req binaryRequest
	if !s.decode(w, r, &req) {
		return
	}
	usable, err := s.commands.CheckBinaryUsable(r.Context(), req.BinaryPath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"usable": usable})
}

func (s *Server) binaryVersion(w http.ResponseWriter, r *http.Request) {
	var req binaryRequest
	if !s.decode(w, r, &req) {
		return
	}
	version, err := s.commands.FetchVersionString(r.Context(), req.BinaryPath)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"version": version})
}

func (s *Server) convert(w http.ResponseWriter, r *http.Request) {
	var req pandoc.ConversionRequest
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.commands.ConvertDocument(r.Context(), req.BinaryPath, req.InputPath, req.OutputFormat)
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) formats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.commands.OutputFormats())
}

// eventsWS streams every bus event as one JSON text message until the client
// goes away or the bus closes.
func (s *Server) eventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := s.bus.Subscribe()
	defer sub.Close()

	// Client messages are ignored; reading detects disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-gone:
			if n := sub.Dropped(); n > 0 {
				s.logger.Warn("websocket client missed events", "dropped", n)
			}
			return
		}
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.respondJSON(w, code, errorResponse{Error: err.Error()})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var probeErr *pandoc.ProbeError
	switch {
	case errors.Is(err, pandoc.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNoBinary):
		return http.StatusNotFound
	case errors.Is(err, binary.ErrNoPlatformBinary), errors.As(err, &probeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, binary.ErrNetwork), errors.Is(err, binary.ErrVerification):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode json", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// localOriginOnly rejects requests whose Origin header names a non-local
// page. Requests without an Origin header pass.
func (s *Server) localOriginOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !checkLocalOrigin(r) {
			s.logger.Warn("rejected foreign origin", "origin", r.Header.Get("Origin"), "path", r.URL.Path)
			s.respondJSON(w, http.StatusForbidden, errorResponse{Error: "origin not allowed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkLocalOrigin accepts clients without an Origin header (native shells)
// and pages served from a loopback host.
func checkLocalOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	switch u.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	case "tauri.localhost":
		return true
	}
	return false
}
