package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/infra/logging"
)

type sessionRequest struct {
	APIKey string `json:"api_key"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAdminSession exchanges the admin API key for a short-lived JWT.
func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Auth.Enabled() || s.deps.AdminAPIKey == "" {
		writeError(w, http.StatusForbidden, "admin api disabled")
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !keyMatches(req.APIKey, s.deps.AdminAPIKey) {
		log := logging.With(r.Context(), s.log)
		log.Warn().Str("remote", r.RemoteAddr).Msg("admin session rejected")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	token, exp, err := s.deps.Auth.Mint(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to mint session")
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, ExpiresAt: exp.UTC()})
}

func (s *Server) handleAdminEnrollment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	d, err := s.deps.Enrollments.Details(r.Context(), reference)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "enrollment not found")
			return
		}
		log := logging.With(r.Context(), s.log)
		log.Error().Err(err).Str("reference", reference).Msg("load enrollment failed")
		writeError(w, http.StatusInternalServerError, "failed to load enrollment")
		return
	}
	writeJSON(w, http.StatusOK, d)
}
