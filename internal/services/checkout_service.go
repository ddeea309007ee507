package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("not enough stock for this quantity")
	ErrInvalidColor    = errors.New("choose one of the available colors")
	ErrNoGatewayURL    = errors.New("payment gateway did not return a redirect URL")
)

type Buyer struct {
	Name  string
	Email string
}

type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, intent models.PaymentIntent) (models.GatewayResponse, error)
}

type CheckoutService struct {
	logger zerolog.Logger
	now    func() time.Time
}

func NewCheckoutService(logger zerolog.Logger) *CheckoutService {
	return &CheckoutService{logger: logger, now: time.Now}
}

// Subtotal is unitPrice × quantity rounded to cents.
func Subtotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// Intent builds the pending payment intent for buying quantity units of p.
func (s *CheckoutService) Intent(p models.Product, buyer Buyer, quantity int, color string) (models.PaymentIntent, error) {
	if quantity < 1 {
		return models.PaymentIntent{}, ErrInvalidQuantity
	}
	if quantity > p.Quantity {
		return models.PaymentIntent{}, ErrOutOfStock
	}
	if len(p.Colors) > 0 && !slices.Contains(p.Colors, color) {
		return models.PaymentIntent{}, ErrInvalidColor
	}

	unit := p.UnitPrice()
	intent := models.PaymentIntent{
		UserName:        buyer.Name,
		Email:           buyer.Email,
		ProductID:       p.ID.Hex(),
		ProductName:     p.Name,
		ProductCategory: p.Category,
		UnitPrice:       unit,
		Quantity:        quantity,
		TotalAmount:     Subtotal(unit, quantity),
		Color:           color,
		Date:            s.now().UTC(),
		TransactionID:   "",
		Status:          string(models.OrderStatusPending),
	}
	if err := models.Validate(intent); err != nil {
		return models.PaymentIntent{}, err
	}
	return intent, nil
}

// Initiate opens a gateway session for intent and returns the URL the
// visitor must be redirected to.
func (s *CheckoutService) Initiate(ctx context.Context, api PaymentInitiator, intent models.PaymentIntent) (string, error) {
	if err := models.Validate(intent); err != nil {
		return "", err
	}
	resp, err := api.InitiatePayment(ctx, intent)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", intent.ProductID).Msg("Error initiating payment")
		return "", fmt.Errorf("failed to initiate payment: %w", err)
	}
	u, err := url.Parse(resp.GatewayURL)
	if err != nil || resp.GatewayURL == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return "", ErrNoGatewayURL
	}

	s.logger.Info().
		Str("product_id", intent.ProductID).
		Str("email", intent.Email).
		Str("amount", intent.TotalAmount.StringFixed(2)).
		Msg("Payment session opened")
	return resp.GatewayURL, nil
}
