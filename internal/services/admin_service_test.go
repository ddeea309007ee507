package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

type fakeAdminAPI struct {
	modified int
	roles    map[string]models.Role
	created  []models.ProductInput
}

func (f *fakeAdminAPI) UpdateUserRole(_ context.Context, email string, role models.Role) (models.MutationResult, error) {
	if f.roles == nil {
		f.roles = map[string]models.Role{}
	}
	f.roles[email] = role
	return models.MutationResult{ModifiedCount: f.modified}, nil
}

func (f *fakeAdminAPI) CreateProduct(_ context.Context, in models.ProductInput) (models.MutationResult, error) {
	f.created = append(f.created, in)
	return models.MutationResult{InsertedID: "p1"}, nil
}

func (f *fakeAdminAPI) UpdateProduct(context.Context, string, models.ProductInput) (models.MutationResult, error) {
	return models.MutationResult{ModifiedCount: f.modified}, nil
}

func (f *fakeAdminAPI) DeleteProduct(context.Context, string) (models.MutationResult, error) {
	return models.MutationResult{DeletedCount: f.modified}, nil
}

func validInput() models.ProductInput {
	return models.ProductInput{
		Name:             "Desk Lamp",
		Category:         "Lighting",
		Images:           []string{"https://cdn.example.com/lamp.jpg"},
		Price:            decimal.NewFromInt(100),
		DiscountedPrice:  decimal.NewNullDecimal(decimal.NewFromInt(80)),
		Quantity:         5,
		Rating:           4.5,
		ShortDescription: "A lamp",
		Description:      "A lamp for desks",
		Colors:           []string{"black"},
	}
}

func TestChangeRoleInvalidatesCache(t *testing.T) {
	roles := NewRoleService(time.Hour, time.Second, zerolog.Nop())
	fetchCalls := 0
	fetch := func(context.Context, string) (models.Role, error) {
		fetchCalls++
		return models.RoleUser, nil
	}
	await(t, roles.Lookup(context.Background(), signedInState("bob@x.io"), fetch))

	s := NewAdminService(roles, zerolog.Nop())
	api := &fakeAdminAPI{modified: 1}
	if err := s.ChangeRole(context.Background(), api, "admin@x.io", "bob@x.io", models.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if api.roles["bob@x.io"] != models.RoleAdmin {
		t.Error("backend not updated")
	}
	if st := roles.Lookup(context.Background(), signedInState("bob@x.io"), fetch); !st.Loading {
		t.Error("cached role should have been invalidated")
	}
}

func TestChangeRoleRejections(t *testing.T) {
	s := NewAdminService(NewRoleService(time.Hour, time.Second, zerolog.Nop()), zerolog.Nop())
	ctx := context.Background()
	if err := s.ChangeRole(ctx, &fakeAdminAPI{modified: 1}, "a@x.io", "a@x.io", models.RoleUser); !errors.Is(err, ErrSelfDemotion) {
		t.Errorf("self change: %v", err)
	}
	if err := s.ChangeRole(ctx, &fakeAdminAPI{modified: 0}, "a@x.io", "b@x.io", models.RoleAdmin); !errors.Is(err, ErrNothingChanged) {
		t.Errorf("no-op change: %v", err)
	}
	var fe models.FieldErrors
	if err := s.ChangeRole(ctx, &fakeAdminAPI{modified: 1}, "a@x.io", "b@x.io", models.Role("root")); !errors.As(err, &fe) {
		t.Errorf("invalid role: %v", err)
	}
}

func TestCreateProductValidation(t *testing.T) {
	s := NewAdminService(NewRoleService(time.Hour, time.Second, zerolog.Nop()), zerolog.Nop())
	api := &fakeAdminAPI{}
	id, err := s.CreateProduct(context.Background(), api, validInput())
	if err != nil || id != "p1" {
		t.Fatalf("CreateProduct = %q, %v", id, err)
	}

	bad := validInput()
	bad.DiscountedPrice = decimal.NewNullDecimal(decimal.NewFromInt(150))
	var fe models.FieldErrors
	if _, err := s.CreateProduct(context.Background(), api, bad); !errors.As(err, &fe) || fe["discountedPrice"] == "" {
		t.Errorf("want discountedPrice error, got %v", err)
	}

	bad = validInput()
	bad.Price = decimal.Zero
	bad.Images = nil
	if _, err := s.CreateProduct(context.Background(), api, bad); !errors.As(err, &fe) || fe["price"] == "" || fe["images"] == "" {
		t.Errorf("want price and images errors, got %v", err)
	}
	if len(api.created) != 1 {
		t.Errorf("invalid products reached the backend: %d", len(api.created))
	}
}

func TestDeleteProductNothingChanged(t *testing.T) {
	s := NewAdminService(NewRoleService(time.Hour, time.Second, zerolog.Nop()), zerolog.Nop())
	if err := s.DeleteProduct(context.Background(), &fakeAdminAPI{modified: 0}, "p1"); !errors.Is(err, ErrNothingChanged) {
		t.Errorf("got %v", err)
	}
}
