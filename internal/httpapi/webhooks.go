package httpapi

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/beholdhq/behold-agent/internal/reliability"
	"github.com/beholdhq/behold-agent/internal/tracking"
	"github.com/beholdhq/behold-agent/internal/webhook"
)

// maxWebhookBodyBytes caps inbound webhook bodies to prevent memory
// exhaustion from oversized payloads.
const maxWebhookBodyBytes = 1 << 20

// correlateTimeout bounds downstream persistence so a slow store cannot hang
// the delivery past the platform's webhook SLA.
const correlateTimeout = 5 * time.Second

// handleOrderWebhook processes orders/create deliveries. The body is read as
// raw bytes and verified before any parsing: a forged delivery must never
// reach the correlator.
func (s *Server) handleOrderWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "body_read", "could not read request body")
		return
	}
	defer r.Body.Close()
	if len(body) > maxWebhookBodyBytes {
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "webhook body exceeds limit")
		return
	}

	signature := r.Header.Get(webhook.SignatureHeader)
	if !s.verifier.Verify(body, signature) {
		// Lengths are enough to diagnose a secret mismatch; values never hit
		// the logs.
		log.Printf("rejected order webhook: bad signature (body %d bytes, signature %d chars, secret %d bytes)",
			len(body), len(signature), s.verifier.SecretLen())
		s.metrics.WebhookDeliveries.WithLabelValues("rejected").Inc()
		respondError(w, http.StatusUnauthorized, "bad_signature", "webhook signature verification failed")
		return
	}

	order, err := webhook.ParseOrder(body)
	if err != nil {
		log.Printf("malformed order webhook: %v", err)
		s.metrics.WebhookDeliveries.WithLabelValues("malformed").Inc()
		respondError(w, http.StatusBadRequest, "malformed_payload", "order payload could not be parsed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), correlateTimeout)
	defer cancel()

	outcome, err := s.correlator.Correlate(ctx, order)
	if err != nil {
		if reliability.IsRetryableDeliveryError(err) {
			log.Printf("order webhook %s failed, asking platform to retry: %v", order.OrderID(), err)
			s.metrics.WebhookDeliveries.WithLabelValues("store_error").Inc()
			respondError(w, http.StatusInternalServerError, "store_unavailable", "order could not be recorded, retry")
			return
		}
		log.Printf("order webhook %s failed: %v", order.OrderID(), err)
		s.metrics.WebhookDeliveries.WithLabelValues("error").Inc()
		respondError(w, http.StatusInternalServerError, "internal", "order processing failed")
		return
	}

	s.metrics.WebhookDeliveries.WithLabelValues(string(outcome.Kind)).Inc()
	if outcome.Kind == tracking.OutcomeRecorded {
		s.metrics.OrdersRecorded.Inc()
		currency := outcome.Currency
		if currency == "" {
			currency = "unknown"
		}
		s.metrics.AttributedRevenue.WithLabelValues(currency).Add(outcome.Revenue)
	}

	respondJSON(w, http.StatusOK, outcome)
}
