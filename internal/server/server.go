package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"photokiosk/internal/acquire"
	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/logging"
	"photokiosk/internal/mediacache"
	"photokiosk/internal/picker"
)

// Kiosk is the service surface the handlers use. kiosk.Service satisfies it.
type Kiosk interface {
	Status(ctx context.Context) (kiosk.Status, error)
	Entries(ctx context.Context) ([]mediacache.Entry, error)
	OpenMedia(ctx context.Context, ordinal int, kind mediacache.Kind) (*os.File, mediacache.Entry, error)
	EnsureSession(ctx context.Context) (picker.Session, picker.EnsureResult, error)
	Poll(ctx context.Context) (picker.PollResult, error)
	FetchAndCache(ctx context.Context) (acquire.Result, error)
	ClearCache(ctx context.Context) error
	AuthorizeURL() (string, string)
	VerifyState(state string) error
	CompleteAuthorization(ctx context.Context, code string) (auth.Credential, error)
}

var _ Kiosk = (*kiosk.Service)(nil)

// Server serves the kiosk API.
type Server struct {
	bind   string
	token  string
	kiosk  Kiosk
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

// New builds a Server bound to cfg.Server.Bind.
func New(cfg *config.Config, svc Kiosk, logger *slog.Logger) (*Server, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("server requires config and kiosk service")
	}
	s := &Server{
		bind:   strings.TrimSpace(cfg.Server.Bind),
		token:  cfg.Server.AdminToken,
		kiosk:  svc,
		logger: logging.NewComponentLogger(logger, "server"),
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Fetch runs inside the request; downloads can take minutes.
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /auth/start", s.handleAuthStart)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/session", s.handleSession)
	mux.HandleFunc("GET /api/poll", s.handlePoll)
	mux.HandleFunc("POST /api/fetch", adminOnly(s.token, s.handleFetch))
	mux.HandleFunc("GET /api/cache", s.handleCacheList)
	mux.HandleFunc("DELETE /api/cache", adminOnly(s.token, s.handleCacheClear))
	mux.HandleFunc("GET /content/{index}", s.handleContent)
	return mux
}

// Start listens and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "server_failed", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

// writeFailure maps a service error onto a status code and logs server-side faults.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.logger, "request failed", "request_failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			logging.String("path", r.URL.Path), logging.Int("status", status), logging.Error(err))
	}
	s.writeJSON(w, status, resp)
}
