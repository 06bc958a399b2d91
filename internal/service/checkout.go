package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/storefront/internal/domain"
	"github.com/punchamoorthee/storefront/internal/gateway"
	"github.com/shopspring/decimal"
)

// CallbackPath is where the gateway sends the browser after payment.
const CallbackPath = "/webhooks/callback"

// TransactionInitializer is the part of the gateway client the checkout needs.
type TransactionInitializer interface {
	InitializeTransaction(ctx context.Context, req gateway.InitializeRequest) (*gateway.InitializeResult, error)
}

type CheckoutService struct {
	gateway       TransactionInitializer
	publicBaseURL string
	currency      string
	channels      []string
	logger        *slog.Logger
	now           func() time.Time
}

func NewCheckoutService(gw TransactionInitializer, publicBaseURL, currency string, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		gateway:       gw,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		currency:      currency,
		channels:      gateway.DefaultChannels,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateCheckoutSession validates the cart, prices it in minor units and opens
// a gateway session. Invalid carts fail before any network call.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, lines []domain.CartLine, meta domain.CheckoutMetadata) (*domain.CheckoutSession, error) {
	grouped, err := GroupCartLines(lines)
	if err != nil {
		return nil, err
	}
	if err := validateCustomer(meta); err != nil {
		return nil, err
	}

	total := CartTotal(grouped)
	amount, err := ToMinorUnits(total)
	if err != nil {
		return nil, err
	}

	reference := s.newReference()
	items := make([]domain.CartItemSnapshot, len(grouped))
	for i, l := range grouped {
		items[i] = domain.CartItemSnapshot{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			Price:       *l.Product.Price,
		}
	}

	userID := meta.UserID
	if userID == "" {
		userID = domain.GuestUserID
	}

	res, err := s.gateway.InitializeTransaction(ctx, gateway.InitializeRequest{
		Email:       meta.CustomerEmail,
		Amount:      amount,
		Reference:   reference,
		Currency:    s.currency,
		CallbackURL: s.publicBaseURL + CallbackPath,
		Metadata: domain.TransactionMetadata{
			OrderNumber:   meta.OrderNumber,
			CustomerName:  meta.CustomerName,
			CustomerEmail: meta.CustomerEmail,
			UserID:        userID,
			CartItems:     items,
		},
		Channels: s.channels,
	})
	if err != nil {
		s.logger.Error("checkout session failed", "reference", reference, "order_number", meta.OrderNumber, "error", err)
		return nil, err
	}

	s.logger.Info("checkout session created",
		"reference", res.Reference,
		"order_number", meta.OrderNumber,
		"amount", amount,
		"currency", s.currency,
	)
	return &domain.CheckoutSession{
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Reference,
		Amount:           amount,
		Currency:         s.currency,
	}, nil
}

// GroupCartLines merges lines for the same product and rejects lines that
// cannot be priced.
func GroupCartLines(lines []domain.CartLine) ([]domain.CartLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrInvalidCart)
	}

	index := make(map[string]int, len(lines))
	grouped := make([]domain.CartLine, 0, len(lines))
	for _, l := range lines {
		switch {
		case l.Product.ID == "":
			return nil, fmt.Errorf("%w: line without product id", ErrInvalidCart)
		case l.Product.Price == nil:
			return nil, fmt.Errorf("%w: product %s has no price", ErrInvalidCart, l.Product.ID)
		case *l.Product.Price < 0:
			return nil, fmt.Errorf("%w: product %s has a negative price", ErrInvalidCart, l.Product.ID)
		case l.Quantity <= 0:
			return nil, fmt.Errorf("%w: product %s has quantity %d", ErrInvalidCart, l.Product.ID, l.Quantity)
		}

		if i, ok := index[l.Product.ID]; ok {
			if grouped[i].Quantity > math.MaxInt-l.Quantity {
				return nil, fmt.Errorf("%w: product %s quantity overflows", ErrInvalidCart, l.Product.ID)
			}
			grouped[i].Quantity += l.Quantity
			continue
		}
		index[l.Product.ID] = len(grouped)
		grouped = append(grouped, l)
	}
	return grouped, nil
}

// CartTotal sums price x quantity in major currency units. Lines must be validated.
func CartTotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(decimal.NewFromFloat(*l.Product.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// ToMinorUnits converts a major-unit amount to the nearest minor unit. Amounts
// outside [0, MaxInt64] minor units are an invalid cart.
func ToMinorUnits(major decimal.Decimal) (int64, error) {
	minor := major.Shift(2).Round(0)
	if minor.IsNegative() || minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: total %s is out of range", ErrInvalidCart, major.String())
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

func validateCustomer(meta domain.CheckoutMetadata) error {
	if strings.TrimSpace(meta.OrderNumber) == "" {
		return fmt.Errorf("%w: order number is required", ErrInvalidCustomer)
	}
	if strings.TrimSpace(meta.CustomerName) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	email := strings.TrimSpace(meta.CustomerEmail)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidCustomer)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return fmt.Errorf("%w: %q is not a valid email", ErrInvalidCustomer, email)
	}
	return nil
}

// newReference returns a per-attempt reference: a millisecond timestamp plus a
// random suffix. The gateway remains the authority on which references are valid.
func (s *CheckoutService) newReference() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	return fmt.Sprintf("ref_%d_%s", s.now().UnixMilli(), suffix)
}
