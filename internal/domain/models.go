package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GuestUserID marks a checkout placed without a signed-in identity.
const GuestUserID = "guest"

// EventChargeSuccess is the only webhook event that triggers reconciliation.
const EventChargeSuccess = "charge.success"

// TransactionStatus is the gateway's verdict on a transaction.
type TransactionStatus string

const (
	TransactionSuccess   TransactionStatus = "success"
	TransactionFailed    TransactionStatus = "failed"
	TransactionAbandoned TransactionStatus = "abandoned"
)

type OrderStatus string

const OrderStatusPaid OrderStatus = "paid"

// ProductRef is the slice of a catalog product the checkout needs.
// Price is nil when the content store has no price for the product.
type ProductRef struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

// CartLine is one basket entry as submitted by the client.
type CartLine struct {
	Product  ProductRef `json:"product"`
	Quantity int        `json:"quantity"`
}

// CheckoutMetadata identifies the order and the customer placing it.
type CheckoutMetadata struct {
	OrderNumber   string `json:"orderNumber"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	UserID        string `json:"clerkUserId"`
}

// CheckoutSession is what the browser needs to continue at the gateway.
type CheckoutSession struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
}

// CartItemSnapshot is the cart line copy attached to the gateway session
// and echoed back verbatim on verification.
type CartItemSnapshot struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// TransactionMetadata is the opaque metadata round-tripped through the gateway.
type TransactionMetadata struct {
	OrderNumber   string             `json:"orderNumber"`
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	UserID        string             `json:"clerkUserId,omitempty"`
	CartItems     []CartItemSnapshot `json:"cart_items"`
}

type Customer struct {
	Code  string `json:"customer_code"`
	Email string `json:"email"`
}

// Transaction is a verification result from the gateway.
type Transaction struct {
	Reference string              `json:"reference"`
	Status    TransactionStatus   `json:"status"`
	Amount    int64               `json:"amount"`
	Currency  string              `json:"currency"`
	Metadata  TransactionMetadata `json:"metadata"`
	Customer  *Customer           `json:"customer,omitempty"`
	PaidAt    *time.Time          `json:"paid_at,omitempty"`
}

func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == TransactionSuccess
}

// OrderItem is one product line of a persisted order.
type OrderItem struct {
	Key       string `json:"key"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Order is the durable record created from a verified payment.
// PaymentReference is unique across all orders.
type Order struct {
	ID                int64           `json:"id"`
	OrderNumber       string          `json:"order_number"`
	PaymentReference  string          `json:"payment_reference"`
	GatewayCustomerID *string         `json:"gateway_customer_id"`
	CustomerName      string          `json:"customer_name"`
	Email             string          `json:"email"`
	UserID            *string         `json:"user_id"`
	Currency          string          `json:"currency"`
	AmountDiscount    decimal.Decimal `json:"amount_discount"`
	Items             []OrderItem     `json:"products"`
	TotalPrice        decimal.Decimal `json:"total_price"`
	Status            OrderStatus     `json:"status"`
	OrderDate         time.Time       `json:"order_date"`
}

// NormalizeCurrency returns the ISO code in the form orders store it.
func NormalizeCurrency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
