package api

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeVerifier struct {
	mu    sync.Mutex
	tx    *domain.Transaction
	err   error
	calls []string
}

func (f *fakeVerifier) VerifyTransaction(ctx context.Context, reference string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, reference)
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []*domain.Transaction
	err   error
}

func (f *fakeReconciler) Reconcile(ctx context.Context, tx *domain.Transaction) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, tx)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{ID: 1, OrderNumber: tx.Metadata.OrderNumber, PaymentReference: tx.Reference}, nil
}

// memoryStore enforces the unique payment reference the way the postgres store does.
type memoryStore struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (m *memoryStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentReference == order.PaymentReference {
			return store.ErrDuplicateReference
		}
	}
	order.ID = int64(len(m.orders) + 1)
	m.orders = append(m.orders, order)
	return nil
}

func (m *memoryStore) GetOrderByReference(ctx context.Context, reference string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentReference == reference {
			return o, nil
		}
	}
	return nil, store.ErrOrderNotFound
}

func (m *memoryStore) all() []*domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Order(nil), m.orders...)
}
