package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/wayne/internal/common"
	"github.com/dmitrijs2005/wayne/internal/server/services"
	"github.com/gorilla/mux"
)

func toAuthResponse(res *services.AuthResult) authResponse {
	return authResponse{
		UserID:       res.UserID,
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    int64(res.ExpiresIn.Seconds()),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.auth.Register(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(res))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	res, err := s.auth.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(res))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	access, ttl, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: access, ExpiresIn: int64(ttl.Seconds())})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	change, err := req.toChange()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.auth.ChangePassword(r.Context(), id.UserID, change); err != nil {
		s.respondError(w, r, err)
		return
	}

	msg := "password changed"
	if req.PasswordType == passwordTypeMaster {
		msg = "master secret rotated"
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: msg})
}

func (s *Server) handleUpsertEnvelope(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	var req upsertEnvelopeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if req.Envelope == nil {
		s.respondError(w, r, fmt.Errorf("%w: envelope is required", common.ErrorValidation))
		return
	}

	envelopeID, err := s.envelopes.Upsert(r.Context(), id.UserID, req.Envelope.toService())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelopeIDResponse{EnvelopeID: envelopeID})
}

func (s *Server) handleGetMyEnvelope(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	e, err := s.envelopes.GetForUser(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, myEnvelopeResponse{Envelope: envelopeFromModel(e), EnvelopeID: e.ID})
}

func (s *Server) handleGetEnvelope(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	e, err := s.envelopes.GetByID(r.Context(), id.UserID, mux.Vars(r)["id"])
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, envelopeResponse{Envelope: envelopeFromModel(e)})
}

func (s *Server) handleCreateBucket(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	b, err := s.vault.CreateForUser(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, bucketCreatedResponse{
		BucketID:   b.ID,
		BucketName: b.BucketName,
		Endpoint:   b.Endpoint,
		Message:    "bucket created",
	})
}

func (s *Server) handleGetBucket(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())

	c, err := s.vault.GetForUser(r.Context(), id.UserID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, bucketCredentialsResponse{
		BucketID:        c.BucketID,
		BucketName:      c.BucketName,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		Endpoint:        c.Endpoint,
	})
}
