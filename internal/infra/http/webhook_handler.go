package http

import (
	"io"
	"net/http"

	"edtech-enrollment/internal/domain"
	"edtech-enrollment/internal/infra/logging"
	"edtech-enrollment/internal/infra/metrics"
	"edtech-enrollment/internal/infra/payment"
)

const maxWebhookBody = 1 << 20

// handlePaystackWebhook verifies the raw body before anything else is looked at.
// 200 tells the provider to stop retrying; 500 asks it to retry.
func (s *Server) handlePaystackWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.With(r.Context(), s.log)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		log.Warn().Err(err).Msg("webhook body unreadable")
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !payment.VerifySignature(s.deps.WebhookSecret, body, r.Header.Get(payment.SignatureHeader)) {
		metrics.IncWebhookSignatureFailure()
		log.Warn().Str("remote", r.RemoteAddr).Int("size", len(body)).Msg("webhook signature rejected")
		writeError(w, http.StatusBadRequest, domain.ErrInvalidSignature.Error())
		return
	}

	ev, err := payment.ClassifyEvent(body)
	if err != nil {
		// signed but not JSON: retrying cannot fix it
		metrics.IncWebhookEvent("malformed", "ignored")
		log.Warn().Err(err).Msg("signed webhook is not valid JSON")
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if err := s.deps.Reconciler.Apply(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to process event")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
