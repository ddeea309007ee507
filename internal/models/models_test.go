package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProductUnitPrice(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		discounted *string
		want       string
	}{
		{"no discount", "100", nil, "100"},
		{"discount applied", "100", strPtr("80"), "80"},
		{"zero discount ignored", "100", strPtr("0"), "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Product{Price: decimal.RequireFromString(tt.price)}
			if tt.discounted != nil {
				p.DiscountedPrice = decimal.NewNullDecimal(decimal.RequireFromString(*tt.discounted))
			}
			if got := p.UnitPrice(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("UnitPrice() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestProductDiscountPercent(t *testing.T) {
	p := Product{
		Price:           decimal.NewFromInt(200),
		DiscountedPrice: decimal.NewNullDecimal(decimal.NewFromInt(150)),
	}
	if got := p.DiscountPercent(); got != 25 {
		t.Errorf("DiscountPercent() = %d, want 25", got)
	}
	p.DiscountedPrice = decimal.NullDecimal{}
	if got := p.DiscountPercent(); got != 0 {
		t.Errorf("DiscountPercent() without discount = %d, want 0", got)
	}
}

func TestProductDecodesBackendJSON(t *testing.T) {
	raw := `{"_id":"65f1a2b3c4d5e6f708192a3b","name":"Lamp","price":49.5,"discountedPrice":null,"quantity":0,"colors":["red"]}`
	var p Product
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.ID.Hex() != "65f1a2b3c4d5e6f708192a3b" {
		t.Errorf("ID = %s", p.ID.Hex())
	}
	if p.DiscountedPrice.Valid {
		t.Error("expected null discountedPrice")
	}
	if p.InStock() {
		t.Error("quantity 0 should not be in stock")
	}
}

func TestPaymentIntentEncodesNumbersAndOmitsID(t *testing.T) {
	in := PaymentIntent{
		UserName: "A", Email: "a@x.io", ProductID: "p1", ProductName: "Lamp",
		UnitPrice: decimal.NewFromInt(80), Quantity: 3, TotalAmount: decimal.NewFromInt(240),
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Status: "pending",
	}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"totalAmount":240`) {
		t.Errorf("totalAmount not encoded as number: %s", b)
	}
	o, _ := json.Marshal(Order{Status: OrderStatusPending})
	if strings.Contains(string(o), `"_id"`) {
		t.Errorf("zero _id should be omitted: %s", o)
	}
}

func TestValidate(t *testing.T) {
	err := Validate(Review{OrderID: "o1", Rating: 6, Review: "great"})
	var fe FieldErrors
	if !errors.As(err, &fe) {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, ok := fe["rating"]; !ok {
		t.Errorf("expected rating error, got %v", fe)
	}

	intent := PaymentIntent{UserName: "A", Email: "a@x.io", ProductID: "p", ProductName: "n",
		UnitPrice: decimal.Zero, Quantity: 1, TotalAmount: decimal.NewFromInt(1), Status: "pending"}
	err = Validate(intent)
	if !errors.As(err, &fe) || fe["unitPrice"] == "" {
		t.Errorf("expected unitPrice error, got %v", err)
	}

	if err := Validate(RoleUpdate{Role: RoleAdmin}); err != nil {
		t.Errorf("valid role update rejected: %v", err)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	if !OrderStatusSuccess.CanTransition(OrderStatusDelivered) {
		t.Error("success -> delivered should be allowed")
	}
	if OrderStatusDelivered.CanTransition(OrderStatusPending) {
		t.Error("delivered -> pending should be rejected")
	}
	if OrderStatus("bogus").CanTransition(OrderStatusDelivered) {
		t.Error("unknown status should not transition")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{"admin": RoleAdmin, " Admin ": RoleAdmin, "user": RoleUser, "": RoleUser, "root": RoleUser} {
		if got := ParseRole(in); got != want {
			t.Errorf("ParseRole(%q) = %q, want %q", in, got, want)
		}
	}
}

func strPtr(s string) *string { return &s }
