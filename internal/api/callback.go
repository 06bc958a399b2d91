package api

import (
	"net/http"
	"net/url"

	"github.com/punchamoorthee/storefront/internal/gateway"
)

// Redirect targets for the browser returning from the gateway.
const (
	basketNoReference        = "/basket?error=no_reference"
	basketPaymentFailed      = "/basket?error=payment_failed"
	basketVerificationFailed = "/basket?error=verification_failed"
)

// PaymentCallback turns the browser's return from the gateway into a page
// redirect. The reference is user-controlled, so this only ever reads: orders
// are created by the webhook alone.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/webhooks/callback"

	reference := r.URL.Query().Get("reference")
	if reference == "" {
		h.redirect(w, r, basketNoReference, endpoint)
		return
	}

	tx, err := h.verifier.VerifyTransaction(r.Context(), reference)
	switch {
	case err != nil && gateway.IsRejected(err):
		h.logger.Info("callback reference rejected by gateway", "reference", reference, "error", err)
		h.redirect(w, r, basketPaymentFailed, endpoint)
	case err != nil:
		h.logger.Error("error verifying transaction", "reference", reference, "error", err)
		h.redirect(w, r, basketVerificationFailed, endpoint)
	case !tx.Succeeded():
		h.logger.Info("callback payment not successful", "reference", reference, "status", tx.Status)
		h.redirect(w, r, basketPaymentFailed, endpoint)
	default:
		h.redirect(w, r, successURL(reference, tx.Metadata.OrderNumber), endpoint)
	}
}

// successURL keeps reference ahead of orderNumber; url.Values would sort them.
func successURL(reference, orderNumber string) string {
	return "/success?reference=" + url.QueryEscape(reference) + "&orderNumber=" + url.QueryEscape(orderNumber)
}
