package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/storefront/internal/domain"
)

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrDuplicateReference = errors.New("order for this payment reference already exists")
)

const uniqueViolation = "23505"

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(ctx context.Context, connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Db.Ping(ctx)
}

// CreateOrder inserts the order and its items in one transaction. The unique
// index on payment_reference turns a second insert into ErrDuplicateReference.
func (s *Store) CreateOrder(ctx context.Context, order *domain.Order) error {
	tx, err := s.Db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO orders (order_number, payment_reference, gateway_customer_id, customer_name, email,
		                     user_id, currency, amount_discount, total_price, status, order_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		order.OrderNumber,
		order.PaymentReference,
		order.GatewayCustomerID,
		order.CustomerName,
		order.Email,
		order.UserID,
		order.Currency,
		order.AmountDiscount.StringFixed(2),
		order.TotalPrice.StringFixed(2),
		string(order.Status),
		order.OrderDate,
	).Scan(&order.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateReference
		}
		return fmt.Errorf("order insert failed: %w", err)
	}

	if len(order.Items) > 0 {
		rows := make([][]any, len(order.Items))
		for i, item := range order.Items {
			rows[i] = []any{order.ID, item.Key, item.ProductID, item.Quantity, i}
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"order_items"},
			[]string{"order_id", "item_key", "product_id", "quantity", "position"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("order items insert failed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

const orderColumns = `id, order_number, payment_reference, gateway_customer_id, customer_name, email,
	user_id, currency, amount_discount, total_price, status, order_date`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.PaymentReference,
		&o.GatewayCustomerID,
		&o.CustomerName,
		&o.Email,
		&o.UserID,
		&o.Currency,
		&o.AmountDiscount,
		&o.TotalPrice,
		&status,
		&o.OrderDate,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.OrderDate = o.OrderDate.UTC()
	return &o, nil
}

// GetOrderByReference loads the order created for a payment reference.
func (s *Store) GetOrderByReference(ctx context.Context, reference string) (*domain.Order, error) {
	order, err := scanOrder(s.Db.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE payment_reference = $1", reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by reference: %w", err)
	}

	items, err := s.orderItems(ctx, []int64{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

// ListOrdersByUser returns a user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID string) ([]*domain.Order, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY order_date DESC, id DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("query orders by user: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	var ids []int64
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := s.orderItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, o := range orders {
		o.Items = items[o.ID]
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderIDs []int64) (map[int64][]domain.OrderItem, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT order_id, item_key, product_id, quantity FROM order_items
		 WHERE order_id = ANY($1) ORDER BY order_id, position`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	items := make(map[int64][]domain.OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID int64
		var item domain.OrderItem
		if err := rows.Scan(&orderID, &item.Key, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items[orderID] = append(items[orderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return items, nil
}
