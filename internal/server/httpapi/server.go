// Package httpapi exposes the control plane over HTTP/JSON.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/dmitrijs2005/wayne/internal/server/models"
	"github.com/dmitrijs2005/wayne/internal/server/services"
	"github.com/gorilla/mux"
)

// AuthGateway is the subset of services.UserService the handlers call.
type AuthGateway interface {
	Register(ctx context.Context, email, password string, remember bool) (*services.AuthResult, error)
	Login(ctx context.Context, email, password string, remember bool) (*services.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, time.Duration, error)
	Logout(ctx context.Context, refreshToken string) error
	ChangePassword(ctx context.Context, userID string, change services.PasswordChange) error
}

type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Identity, error)
}

type EnvelopeStore interface {
	Upsert(ctx context.Context, userID string, env services.Envelope) (string, error)
	GetForUser(ctx context.Context, userID string) (*models.KeyEnvelope, error)
	GetByID(ctx context.Context, callerID, envelopeID string) (*models.KeyEnvelope, error)
}

type CredentialVault interface {
	CreateForUser(ctx context.Context, userID string) (*models.Bucket, error)
	GetForUser(ctx context.Context, userID string) (*models.BucketCredentials, error)
}

// Pinger reports backing store health for /healthz.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server owns the HTTP listener and the route table.
type Server struct {
	address   string
	auth      AuthGateway
	tokens    TokenVerifier
	envelopes EnvelopeStore
	vault     CredentialVault
	db        Pinger
	logger    logging.Logger

	srv *http.Server
}

func NewServer(address string, l logging.Logger, a AuthGateway, t TokenVerifier, e EnvelopeStore, v CredentialVault, db Pinger) *Server {
	s := &Server{
		address:   address,
		auth:      a,
		tokens:    t,
		envelopes: e,
		vault:     v,
		db:        db,
		logger:    l.With("module", "http_server"),
	}
	s.srv = &http.Server{
		Addr:              address,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

// Routes builds the route table. Routes under the protected subrouter
// require a bearer access token.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.recoverer, s.accessLog)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(RequireAccessToken(s.tokens, s.logger))

	protected.HandleFunc("/auth/change-password", s.handleChangePassword).Methods(http.MethodPost)
	protected.HandleFunc("/key-envelopes", s.handleUpsertEnvelope).Methods(http.MethodPost)
	protected.HandleFunc("/key-envelopes/me", s.handleGetMyEnvelope).Methods(http.MethodGet)
	protected.HandleFunc("/key-envelopes/{id}", s.handleGetEnvelope).Methods(http.MethodGet)
	protected.HandleFunc("/storj-config/create", s.handleCreateBucket).Methods(http.MethodPost)
	protected.HandleFunc("/storj-config/me", s.handleGetBucket).Methods(http.MethodGet)

	return r
}

// Run serves until ctx is cancelled, then drains in-flight requests for at
// most shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := s.srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
