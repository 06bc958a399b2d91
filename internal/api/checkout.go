package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/gateway"
	"github.com/punchamoorthee/storefront/internal/service"
)

type CheckoutRequest struct {
	Items       []domain.CartLine `json:"items"`
	OrderNumber string            `json:"order_number"`
	Customer    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
}

type CheckoutResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	OrderNumber      string `json:"order_number"`
}

// CreateCheckout opens a payment session for the caller's basket. Signed-in
// users are identified by UserIDHeader; everyone else checks out as a guest.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "POST", "/checkout"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid JSON", method, endpoint)
		return
	}

	orderNumber := strings.TrimSpace(req.OrderNumber)
	if orderNumber == "" {
		orderNumber = uuid.NewString()
	}
	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" {
		userID = domain.GuestUserID
	}

	session, err := h.checkout.CreateCheckoutSession(r.Context(), req.Items, domain.CheckoutMetadata{
		OrderNumber:   orderNumber,
		CustomerName:  strings.TrimSpace(req.Customer.Name),
		CustomerEmail: strings.TrimSpace(req.Customer.Email),
		UserID:        userID,
	})
	if err != nil {
		var gwErr *gateway.Error
		switch {
		case errors.Is(err, service.ErrInvalidCart), errors.Is(err, service.ErrInvalidCustomer):
			h.respondError(w, http.StatusUnprocessableEntity, err.Error(), method, endpoint)
		case errors.As(err, &gwErr):
			h.respondError(w, http.StatusBadGateway, "Failed to initiate checkout. Please try again.", method, endpoint)
		default:
			h.logger.Error("checkout failed", "order_number", orderNumber, "error", err)
			h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, CheckoutResponse{
		AuthorizationURL: session.AuthorizationURL,
		Reference:        session.Reference,
		OrderNumber:      orderNumber,
	}, method, endpoint)
}

// ListOrders returns the signed-in user's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	const method, endpoint = "GET", "/orders"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues(method, endpoint))
	defer timer.ObserveDuration()

	userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
	if userID == "" || userID == domain.GuestUserID {
		h.respondError(w, http.StatusUnauthorized, "User ID is required", method, endpoint)
		return
	}

	orders, err := h.orders.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("error fetching orders", "user_id", userID, "error", err)
		h.respondError(w, http.StatusInternalServerError, "Error fetching orders", method, endpoint)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	h.respondJSON(w, http.StatusOK, orders, method, endpoint)
}
