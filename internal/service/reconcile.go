package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/store"
	"github.com/shopspring/decimal"
)

var ordersReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "storefront_orders_reconciled_total",
	Help: "Verified transactions reconciled into orders, by result",
}, []string{"result"})

// OrderStore persists orders. CreateOrder must return store.ErrDuplicateReference
// when an order with the same payment reference already exists.
type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByReference(ctx context.Context, reference string) (*domain.Order, error)
}

type Reconciler struct {
	store  OrderStore
	logger *slog.Logger
	now    func() time.Time
	newKey func() string
}

func NewReconciler(s OrderStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  s,
		logger: logger,
		now:    time.Now,
		newKey: uuid.NewString,
	}
}

// Reconcile turns a verified transaction into an order. Delivering the same
// reference again returns the order created the first time.
func (r *Reconciler) Reconcile(ctx context.Context, tx *domain.Transaction) (*domain.Order, error) {
	if !tx.Succeeded() {
		return nil, fmt.Errorf("%w: reference %s", ErrNotPaid, tx.Reference)
	}

	order := r.buildOrder(tx)
	err := r.store.CreateOrder(ctx, order)
	if err == nil {
		r.logger.Info("order created",
			"reference", order.PaymentReference,
			"order_number", order.OrderNumber,
			"order_id", order.ID,
			"total", order.TotalPrice.StringFixed(2),
			"currency", order.Currency,
		)
		ordersReconciled.WithLabelValues("created").Inc()
		return order, nil
	}

	if !errors.Is(err, store.ErrDuplicateReference) {
		ordersReconciled.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: reference %s: %w", ErrReconciliation, tx.Reference, err)
	}

	existing, getErr := r.store.GetOrderByReference(ctx, tx.Reference)
	if getErr != nil {
		ordersReconciled.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: load existing order for %s: %w", ErrReconciliation, tx.Reference, getErr)
	}
	ordersReconciled.WithLabelValues("duplicate").Inc()
	r.logger.Info("order already reconciled", "reference", tx.Reference, "order_number", existing.OrderNumber)
	return existing, nil
}

func (r *Reconciler) buildOrder(tx *domain.Transaction) *domain.Order {
	meta := tx.Metadata

	items := make([]domain.OrderItem, len(meta.CartItems))
	for i, item := range meta.CartItems {
		items[i] = domain.OrderItem{
			Key:       r.newKey(),
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	order := &domain.Order{
		OrderNumber:      meta.OrderNumber,
		PaymentReference: tx.Reference,
		CustomerName:     meta.CustomerName,
		Email:            meta.CustomerEmail,
		Currency:         domain.NormalizeCurrency(tx.Currency),
		AmountDiscount:   decimal.Zero,
		Items:            items,
		TotalPrice:       FromMinorUnits(tx.Amount),
		Status:           domain.OrderStatusPaid,
		OrderDate:        r.now().UTC(),
	}
	if tx.Customer != nil && tx.Customer.Code != "" {
		code := tx.Customer.Code
		order.GatewayCustomerID = &code
	}
	if meta.UserID != "" && meta.UserID != domain.GuestUserID {
		uid := meta.UserID
		order.UserID = &uid
	}
	return order
}
