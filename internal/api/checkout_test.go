package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/gateway"
	"github.com/punchamoorthee/storefront/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckout struct {
	lines []domain.CartLine
	meta  domain.CheckoutMetadata
	calls int
	err   error
}

func (f *fakeCheckout) CreateCheckoutSession(ctx context.Context, lines []domain.CartLine, meta domain.CheckoutMetadata) (*domain.CheckoutSession, error) {
	f.calls++
	f.lines, f.meta = lines, meta
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CheckoutSession{
		AuthorizationURL: "https://checkout.example/abc",
		Reference:        "ref_1_abc",
		Amount:           4548,
		Currency:         "NGN",
	}, nil
}

type fakeLister struct {
	orders []*domain.Order
	err    error
	userID string
}

func (f *fakeLister) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	f.userID = userID
	return f.orders, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) Ping(ctx context.Context) error { return f.err }

const checkoutBody = `{"items":[{"product":{"id":"p1","name":"Mug","price":12.5},"quantity":2},{"product":{"id":"p2","price":20.48},"quantity":1}],"order_number":"ORD-1","customer":{"name":"Ada","email":"ada@example.com"}}`

func postCheckout(h *Handler, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	for k, v := range header {
		req.Header[http.CanonicalHeaderKey(k)] = v
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func TestCreateCheckout_Success(t *testing.T) {
	checkout := &fakeCheckout{}
	h := NewHandler(Deps{Checkout: checkout, Logger: discardLogger()})

	rec := postCheckout(h, checkoutBody, http.Header{UserIDHeader: {"user_42"}})

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp CheckoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, CheckoutResponse{
		AuthorizationURL: "https://checkout.example/abc",
		Reference:        "ref_1_abc",
		OrderNumber:      "ORD-1",
	}, resp)

	require.Len(t, checkout.lines, 2)
	assert.Equal(t, "p1", checkout.lines[0].Product.ID)
	assert.Equal(t, 2, checkout.lines[0].Quantity)
	require.NotNil(t, checkout.lines[1].Product.Price)
	assert.Equal(t, 20.48, *checkout.lines[1].Product.Price)
	assert.Equal(t, domain.CheckoutMetadata{
		OrderNumber:   "ORD-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		UserID:        "user_42",
	}, checkout.meta)
}

func TestCreateCheckout_GuestAndGeneratedOrderNumber(t *testing.T) {
	checkout := &fakeCheckout{}
	h := NewHandler(Deps{Checkout: checkout, Logger: discardLogger()})

	body := strings.Replace(checkoutBody, `"order_number":"ORD-1",`, "", 1)
	rec := postCheckout(h, body, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.GuestUserID, checkout.meta.UserID)
	assert.NotEmpty(t, checkout.meta.OrderNumber)

	var resp CheckoutResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, checkout.meta.OrderNumber, resp.OrderNumber)
}

func TestCreateCheckout_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		wantCode int
	}{
		{"invalid json", `{"items":`, nil, http.StatusBadRequest},
		{"invalid cart", checkoutBody, fmt.Errorf("%w: cart is empty", service.ErrInvalidCart), http.StatusUnprocessableEntity},
		{"invalid customer", checkoutBody, fmt.Errorf("%w: email is invalid", service.ErrInvalidCustomer), http.StatusUnprocessableEntity},
		{"gateway failure", checkoutBody, &gateway.Error{Op: "initialize", StatusCode: 401, Message: "Invalid key"}, http.StatusBadGateway},
		{"unexpected", checkoutBody, errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{Checkout: &fakeCheckout{err: tt.err}, Logger: discardLogger()})
			rec := postCheckout(h, tt.body, nil)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotEmpty(t, decodeBody(t, rec)["error"])
		})
	}
}

func TestCreateCheckout_ThroughCheckoutService(t *testing.T) {
	var got gateway.InitializeRequest
	gw := initializerFunc(func(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
		got = req
		return &gateway.InitializeResult{AuthorizationURL: "https://checkout.example/x", Reference: req.Reference}, nil
	})
	svc := service.NewCheckoutService(gw, "https://shop.example", "NGN", discardLogger())
	h := NewHandler(Deps{Checkout: svc, Logger: discardLogger()})

	rec := postCheckout(h, checkoutBody, nil)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(4548), got.Amount)
	assert.Equal(t, "ada@example.com", got.Email)
	assert.Equal(t, "https://shop.example/webhooks/callback", got.CallbackURL)
}

type initializerFunc func(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)

func (f initializerFunc) InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error) {
	return f(ctx, req)
}

func TestListOrders(t *testing.T) {
	userID := "user_42"
	lister := &fakeLister{orders: []*domain.Order{{
		ID:               7,
		OrderNumber:      "ORD-7",
		PaymentReference: "r7",
		UserID:           &userID,
		Currency:         "NGN",
		TotalPrice:       decimal.RequireFromString("50.00"),
		Status:           domain.OrderStatusPaid,
	}}}
	h := NewHandler(Deps{Orders: lister, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(UserIDHeader, userID)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, lister.userID)
	var got []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "ORD-7", got[0]["order_number"])
}

func TestListOrders_EmptyAndUnauthorized(t *testing.T) {
	h := NewHandler(Deps{Orders: &fakeLister{}, Logger: discardLogger()})

	for _, user := range []string{"", domain.GuestUserID} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		if user != "" {
			req.Header.Set(UserIDHeader, user)
		}
		rec := httptest.NewRecorder()
		h.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "user %q", user)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(UserIDHeader, "user_new")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestListOrders_StoreFailure(t *testing.T) {
	h := NewHandler(Deps{Orders: &fakeLister{err: errors.New("db down")}, Logger: discardLogger()})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set(UserIDHeader, "user_42")
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		name     string
		health   HealthChecker
		wantCode int
	}{
		{"no checker", nil, http.StatusOK},
		{"reachable", fakeHealth{}, http.StatusOK},
		{"unreachable", fakeHealth{err: errors.New("conn refused")}, http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(Deps{Health: tt.health, Logger: discardLogger()})
			rec := httptest.NewRecorder()
			h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
