package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/models"
	"storefront/internal/session"
)

var (
	ErrReviewNotAllowed = errors.New("only delivered orders can be reviewed")
	ErrAlreadyReviewed  = errors.New("this order has already been reviewed")
)

type ReviewAPI interface {
	Order(ctx context.Context, id string) (models.Order, error)
	Reviews(ctx context.Context) ([]models.Review, error)
	CreateReview(ctx context.Context, r models.Review) (models.MutationResult, error)
}

type ReviewService struct {
	logger zerolog.Logger
	now    func() time.Time

	// order ids with a submission in flight
	submitting sync.Map
}

func NewReviewService(logger zerolog.Logger) *ReviewService {
	return &ReviewService{logger: logger, now: time.Now}
}

// Reviewable loads the order and checks the buyer may review it.
func (s *ReviewService) Reviewable(ctx context.Context, api ReviewAPI, user session.User, orderID string) (models.Order, error) {
	o, err := api.Order(ctx, orderID)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load order: %w", err)
	}
	if !strings.EqualFold(o.Email, user.Email) {
		return models.Order{}, ErrNotOrderOwner
	}
	if o.Status != models.OrderStatusDelivered {
		return models.Order{}, ErrReviewNotAllowed
	}

	reviews, err := api.Reviews(ctx)
	if err != nil {
		return models.Order{}, fmt.Errorf("failed to load reviews: %w", err)
	}
	for _, rv := range reviews {
		if rv.OrderID == orderID {
			return models.Order{}, ErrAlreadyReviewed
		}
	}
	return o, nil
}

// Submit creates the single review allowed for a delivered order.
func (s *ReviewService) Submit(ctx context.Context, api ReviewAPI, user session.User, orderID string, rating int, text string) error {
	if _, busy := s.submitting.LoadOrStore(orderID, struct{}{}); busy {
		return ErrAlreadyReviewed
	}
	defer s.submitting.Delete(orderID)

	if _, err := s.Reviewable(ctx, api, user, orderID); err != nil {
		return err
	}
	review := models.Review{
		OrderID: orderID,
		Name:    user.DisplayName,
		Email:   user.Email,
		Photo:   user.PhotoURL,
		Rating:  rating,
		Review:  strings.TrimSpace(text),
		Date:    s.now().UTC().Format(time.RFC3339),
	}
	if err := models.Validate(review); err != nil {
		return err
	}
	if _, err := api.CreateReview(ctx, review); err != nil {
		s.logger.Error().Err(err).Str("order_id", orderID).Msg("Error submitting review")
		return fmt.Errorf("failed to submit review: %w", err)
	}
	s.logger.Info().Str("order_id", orderID).Int("rating", rating).Msg("Review submitted")
	return nil
}
