package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/gateway"
)

const maxWebhookBody = 1 << 20

var ErrMalformedEvent = errors.New("malformed webhook event")

type webhookEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// chargeData is the webhook's own view of the charge. Only the reference is
// trusted, and only to look up the gateway's record.
type chargeData struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

func parseWebhookEvent(body []byte) (*webhookEvent, *chargeData, error) {
	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if ev.Event != domain.EventChargeSuccess {
		return &ev, nil, nil
	}

	var charge chargeData
	if len(ev.Data) == 0 {
		return nil, nil, fmt.Errorf("%w: charge event without data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(ev.Data, &charge); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	if charge.Reference == "" {
		return nil, nil, fmt.Errorf("%w: charge event without reference", ErrMalformedEvent)
	}
	return &ev, &charge, nil
}

// PaymentWebhook receives gateway events. The signature over the raw body is
// the only authentication; nothing is parsed before it checks out.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/webhooks/payment"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	// 1. Authenticate
	signature := signatureFromHeader(r.Header)
	if signature == "" {
		webhookEventsTotal.WithLabelValues("unknown", "no_signature").Inc()
		h.respondError(w, http.StatusBadRequest, "No signature", method, endpoint)
		return
	}
	if h.webhookSecret == "" {
		h.logger.Error("webhook secret is not set; refusing delivery")
		webhookEventsTotal.WithLabelValues("unknown", "misconfigured").Inc()
		h.respondError(w, http.StatusBadRequest, "Webhook secret is not set", method, endpoint)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Warn("webhook body unreadable", "error", err)
		webhookEventsTotal.WithLabelValues("unknown", "unreadable").Inc()
		h.respondError(w, http.StatusBadRequest, "Unreadable body", method, endpoint)
		return
	}

	if err := VerifySignature(h.webhookSecret, body, signature); err != nil {
		h.logger.Warn("webhook signature verification failed",
			"remote_addr", r.RemoteAddr, "body_bytes", len(body), "error", err)
		webhookEventsTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		h.respondError(w, http.StatusBadRequest, "Invalid signature", method, endpoint)
		return
	}

	// 2. Parse
	ev, charge, err := parseWebhookEvent(body)
	if err != nil {
		h.logger.Warn("webhook body rejected", "error", err)
		webhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", method, endpoint)
		return
	}

	// 3. Dispatch
	if charge == nil {
		h.logger.Info("webhook event ignored", "event", ev.Event)
		webhookEventsTotal.WithLabelValues(ev.Event, "ignored").Inc()
		h.respondJSON(w, http.StatusOK, map[string]bool{"received": true}, method, endpoint)
		return
	}
	log := h.logger.With("event", ev.Event, "reference", charge.Reference)

	// 4. Re-verify with the gateway
	tx, err := h.verifier.VerifyTransaction(r.Context(), charge.Reference)
	if err != nil {
		if gateway.IsRejected(err) {
			log.Warn("gateway has no successful record for webhook reference", "error", err)
			webhookEventsTotal.WithLabelValues(ev.Event, "unverified").Inc()
			h.respondJSON(w, http.StatusOK, map[string]bool{"received": true}, method, endpoint)
			return
		}
		log.Error("webhook verification failed", "error", err)
		webhookEventsTotal.WithLabelValues(ev.Event, "verify_error").Inc()
		h.respondError(w, http.StatusInternalServerError, "Error verifying transaction", method, endpoint)
		return
	}
	if !tx.Succeeded() {
		log.Warn("webhook reference not successful at gateway", "status", tx.Status)
		webhookEventsTotal.WithLabelValues(ev.Event, "unverified").Inc()
		h.respondJSON(w, http.StatusOK, map[string]bool{"received": true}, method, endpoint)
		return
	}
	if tx.Amount != charge.Amount || domain.NormalizeCurrency(tx.Currency) != domain.NormalizeCurrency(charge.Currency) {
		log.Warn("webhook payload disagrees with gateway record; using gateway record",
			"webhook_amount", charge.Amount, "gateway_amount", tx.Amount,
			"webhook_currency", charge.Currency, "gateway_currency", tx.Currency)
	}

	// 5. Reconcile
	order, err := h.reconciler.Reconcile(r.Context(), tx)
	if err != nil {
		log.Error("error creating order", "error", err)
		webhookEventsTotal.WithLabelValues(ev.Event, "reconcile_error").Inc()
		h.respondError(w, http.StatusInternalServerError, "Error creating order", method, endpoint)
		return
	}

	log.Info("webhook reconciled", "order_number", order.OrderNumber, "order_id", order.ID)
	webhookEventsTotal.WithLabelValues(ev.Event, "reconciled").Inc()
	h.respondJSON(w, http.StatusOK, map[string]bool{"received": true}, method, endpoint)
}
