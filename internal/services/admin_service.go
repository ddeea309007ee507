package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"storefront/internal/models"
)

var ErrSelfDemotion = errors.New("admins cannot change their own role")

type AdminAPI interface {
	UpdateUserRole(ctx context.Context, email string, role models.Role) (models.MutationResult, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (models.MutationResult, error)
	UpdateProduct(ctx context.Context, id string, in models.ProductInput) (models.MutationResult, error)
	DeleteProduct(ctx context.Context, id string) (models.MutationResult, error)
}

type AdminService struct {
	roles  *RoleService
	logger zerolog.Logger
}

func NewAdminService(roles *RoleService, logger zerolog.Logger) *AdminService {
	return &AdminService{roles: roles, logger: logger}
}

// ChangeRole sets email's role and drops its cached role so the user's next
// lookup sees the change.
func (s *AdminService) ChangeRole(ctx context.Context, api AdminAPI, actorEmail, email string, role models.Role) error {
	if err := models.Validate(models.RoleUpdate{Role: role}); err != nil {
		return err
	}
	if strings.EqualFold(actorEmail, email) {
		return ErrSelfDemotion
	}
	res, err := api.UpdateUserRole(ctx, email, role)
	if err != nil {
		s.logger.Error().Err(err).Str("email", email).Msg("Error updating role")
		return fmt.Errorf("failed to update role: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrNothingChanged
	}
	s.roles.Invalidate(email)
	s.logger.Info().Str("email", email).Str("role", string(role)).Str("by", actorEmail).Msg("User role changed")
	return nil
}

func (s *AdminService) CreateProduct(ctx context.Context, api AdminAPI, in models.ProductInput) (string, error) {
	if err := validateProduct(in); err != nil {
		return "", err
	}
	res, err := api.CreateProduct(ctx, in)
	if err != nil {
		s.logger.Error().Err(err).Str("name", in.Name).Msg("Error creating product")
		return "", fmt.Errorf("failed to create product: %w", err)
	}
	s.logger.Info().Str("product_id", res.InsertedID).Str("name", in.Name).Msg("Product created")
	return res.InsertedID, nil
}

func (s *AdminService) UpdateProduct(ctx context.Context, api AdminAPI, id string, in models.ProductInput) error {
	if err := validateProduct(in); err != nil {
		return err
	}
	res, err := api.UpdateProduct(ctx, id, in)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error updating product")
		return fmt.Errorf("failed to update product: %w", err)
	}
	if res.ModifiedCount == 0 {
		return ErrNothingChanged
	}
	s.logger.Info().Str("product_id", id).Msg("Product updated")
	return nil
}

func (s *AdminService) DeleteProduct(ctx context.Context, api AdminAPI, id string) error {
	res, err := api.DeleteProduct(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("product_id", id).Msg("Error deleting product")
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNothingChanged
	}
	s.logger.Info().Str("product_id", id).Msg("Product deleted")
	return nil
}

func validateProduct(in models.ProductInput) error {
	if err := models.Validate(in); err != nil {
		return err
	}
	if in.DiscountedPrice.Valid && in.DiscountedPrice.Decimal.GreaterThanOrEqual(in.Price) {
		return models.FieldErrors{"discountedPrice": "must be lower than the price"}
	}
	return nil
}
