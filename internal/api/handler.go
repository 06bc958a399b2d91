package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/punchamoorthee/storefront/internal/domain"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
	}, []string{"method", "endpoint"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_webhook_events_total",
		Help: "Gateway webhook deliveries by event kind and outcome",
	}, []string{"event", "outcome"})
)

// UserIDHeader carries the identity-provider user id, set by the auth proxy in front of the API.
const UserIDHeader = "X-User-ID"

type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*domain.Transaction, error)
}

type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, lines []domain.CartLine, meta domain.CheckoutMetadata) (*domain.CheckoutSession, error)
}

type OrderReconciler interface {
	Reconcile(ctx context.Context, tx *domain.Transaction) (*domain.Order, error)
}

type OrderLister interface {
	ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	verifier      TransactionVerifier
	checkout      CheckoutCreator
	reconciler    OrderReconciler
	orders        OrderLister
	health        HealthChecker
	webhookSecret string
	logger        *slog.Logger
}

type Deps struct {
	Verifier      TransactionVerifier
	Checkout      CheckoutCreator
	Reconciler    OrderReconciler
	Orders        OrderLister
	Health        HealthChecker
	WebhookSecret string
	Logger        *slog.Logger
}

func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier:      d.Verifier,
		checkout:      d.Checkout,
		reconciler:    d.Reconciler,
		orders:        d.Orders,
		health:        d.Health,
		webhookSecret: d.WebhookSecret,
		logger:        logger,
	}
}

// Router wires every endpoint onto a new mux.Router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.Health).Methods("GET")

	r.HandleFunc("/webhooks/payment", h.PaymentWebhook).Methods("POST")
	r.HandleFunc("/webhooks/callback", h.PaymentCallback).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/checkout", h.CreateCheckout).Methods("POST")
	apiV1.HandleFunc("/orders", h.ListOrders).Methods("GET")
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.Ping(r.Context()); err != nil {
			h.logger.Error("health check failed", "error", err)
			h.respondError(w, http.StatusServiceUnavailable, "database unavailable", "GET", "/health")
			return
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, "GET", "/health")
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, target, endpoint string) {
	httpReqTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(http.StatusTemporaryRedirect)).Inc()
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}
