package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/infra/logging"
	"edtech-enrollment/internal/infra/metrics"
	"edtech-enrollment/internal/infra/redis"
	"edtech-enrollment/internal/usecase"
)

const (
	initializeRoute = "enrollments_initialize"
	maxIntakeBody   = 64 << 10
)

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.With(ctx, s.log)

	if err := s.limit(r, initializeRoute); err != nil {
		metrics.IncRateLimited(initializeRoute)
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}

	var in usecase.EnrollmentIntake
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIntakeBody))
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := s.deps.Enrollments.Initiate(ctx, in, r.Host)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Error(), Fields: verr.Fields})
		case errors.Is(err, domain.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, domain.ErrUpstream):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			log.Error().Err(err).Msg("initialize failed")
			writeError(w, http.StatusInternalServerError, "failed to initialize payment")
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// limit applies the per-IP limit and returns domain.ErrRateLimited once it is used up.
// A limiter error lets the request through.
func (s *Server) limit(r *http.Request, route string) error {
	if s.deps.Limiter == nil || s.deps.InitializeLimit <= 0 {
		return nil
	}
	ok, err := s.deps.Limiter.Allow(r.Context(), redis.ClientRouteKey(clientIP(r), route), s.deps.InitializeLimit, time.Minute)
	if err != nil {
		s.log.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		return nil
	}
	if !ok {
		return domain.ErrRateLimited
	}
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
