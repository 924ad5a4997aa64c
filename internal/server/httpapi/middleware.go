package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/logging"
	"github.com/dmitrijs2005/wayne/internal/server/auth"
	"github.com/gorilla/mux"
)

type ctxKey string

const identityKey ctxKey = "identity"

// IdentityFrom returns the principal stored by RequireAccessToken.
func IdentityFrom(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

// WithIdentity stores id in ctx the way RequireAccessToken does.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// RequireAccessToken authenticates the bearer token and stores the identity
// in the request context. Only signature and expiry are checked; revoking
// refresh tokens does not cut off access tokens already issued.
func RequireAccessToken(v TokenVerifier, logger logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "missing bearer token")
				return
			}

			id, err := v.VerifyAccess(token)
			if err != nil {
				logger.Debug(r.Context(), "access token rejected", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, codeUnauthorized, "invalid or expired access token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get(common.AuthorizationHeaderName)
	if len(h) < len(common.BearerPrefix) || !strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(common.BearerPrefix):])
	return token, token != ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		id := r.Header.Get(common.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id, _ = common.MakeRandHexString(8)
		}
		w.Header().Set(common.RequestIDHeader, id)

		next.ServeHTTP(rec, r)

		s.logger.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"request_id", id,
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error(r.Context(), "panic in handler", "path", r.URL.Path, "panic", p)
				writeError(w, http.StatusInternalServerError, codeInternal, internalMessage)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
