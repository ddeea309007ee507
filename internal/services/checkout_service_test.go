package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func lamp() models.Product {
	return models.Product{
		ID:              primitive.NewObjectID(),
		Name:            "Desk Lamp",
		Category:        "Lighting",
		Price:           decimal.NewFromInt(100),
		DiscountedPrice: decimal.NewNullDecimal(decimal.NewFromInt(80)),
		Quantity:        5,
		Colors:          []string{"black", "white"},
	}
}

type fakeGateway struct {
	url    string
	err    error
	intent models.PaymentIntent
}

func (f *fakeGateway) InitiatePayment(_ context.Context, in models.PaymentIntent) (models.GatewayResponse, error) {
	f.intent = in
	return models.GatewayResponse{GatewayURL: f.url}, f.err
}

func TestIntentUsesDiscountedPrice(t *testing.T) {
	s := NewCheckoutService(zerolog.Nop())
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	in, err := s.Intent(lamp(), Buyer{Name: "Ada", Email: "ada@x.io"}, 3, "black")
	if err != nil {
		t.Fatalf("Intent: %v", err)
	}
	if !in.UnitPrice.Equal(decimal.NewFromInt(80)) {
		t.Errorf("unit price = %s, want 80", in.UnitPrice)
	}
	if got := in.TotalAmount.StringFixed(2); got != "240.00" {
		t.Errorf("subtotal = %s, want 240.00", got)
	}
	if in.Status != "pending" || in.TransactionID != "" || !in.Date.Equal(fixed) {
		t.Errorf("unexpected intent %+v", in)
	}
}

func TestIntentListPriceWithoutDiscount(t *testing.T) {
	p := lamp()
	p.DiscountedPrice = decimal.NullDecimal{}
	in, err := NewCheckoutService(zerolog.Nop()).Intent(p, Buyer{Name: "Ada", Email: "ada@x.io"}, 2, "white")
	if err != nil {
		t.Fatal(err)
	}
	if got := in.TotalAmount.StringFixed(2); got != "200.00" {
		t.Errorf("subtotal = %s, want 200.00", got)
	}
}

func TestIntentRejections(t *testing.T) {
	s := NewCheckoutService(zerolog.Nop())
	buyer := Buyer{Name: "Ada", Email: "ada@x.io"}
	tests := []struct {
		name  string
		qty   int
		color string
		want  error
	}{
		{"zero quantity", 0, "black", ErrInvalidQuantity},
		{"over stock", 6, "black", ErrOutOfStock},
		{"unknown color", 1, "red", ErrInvalidColor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Intent(lamp(), buyer, tt.qty, tt.color); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubtotalRounding(t *testing.T) {
	if got := Subtotal(decimal.RequireFromString("19.999"), 3).String(); got != "60" {
		t.Errorf("Subtotal = %s, want 60", got)
	}
	if got := Subtotal(decimal.RequireFromString("0.335"), 1).StringFixed(2); got != "0.34" {
		t.Errorf("Subtotal = %s, want 0.34", got)
	}
}

func TestInitiate(t *testing.T) {
	s := NewCheckoutService(zerolog.Nop())
	in, err := s.Intent(lamp(), Buyer{Name: "Ada", Email: "ada@x.io"}, 1, "black")
	if err != nil {
		t.Fatal(err)
	}

	gw := &fakeGateway{url: "https://sandbox.gateway.test/pay/abc"}
	url, err := s.Initiate(context.Background(), gw, in)
	if err != nil || url != gw.url {
		t.Fatalf("Initiate = %q, %v", url, err)
	}
	if gw.intent.ProductID != in.ProductID {
		t.Error("gateway did not receive the intent")
	}

	if _, err := s.Initiate(context.Background(), &fakeGateway{url: "javascript:alert(1)"}, in); !errors.Is(err, ErrNoGatewayURL) {
		t.Errorf("want ErrNoGatewayURL, got %v", err)
	}
	boom := errors.New("boom")
	if _, err := s.Initiate(context.Background(), &fakeGateway{err: boom}, in); !errors.Is(err, boom) {
		t.Errorf("want wrapped backend error, got %v", err)
	}
}
