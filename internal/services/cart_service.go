package services

import (
	"context"
	"errors"
	"fmt"

	"mealcart/internal/models"
	"mealcart/internal/pricing"
	"mealcart/internal/repositories"

	"go.uber.org/zap"
)

// EventPublisher sends cart events to a message broker.
type EventPublisher interface {
	PublishCartEvent(event models.CartEvent) error
}

// CartService handles business logic related to carts.
type CartService struct {
	repo      repositories.CartRepository
	publisher EventPublisher
	policy    pricing.Policy
	logger    *zap.Logger
}

// NewCartService creates a new CartService. publisher may be nil, in which
// case no events are sent.
func NewCartService(repo repositories.CartRepository, publisher EventPublisher, policy pricing.Policy, logger *zap.Logger) *CartService {
	return &CartService{
		repo:      repo,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// AddItem puts a meal in the user's cart with quantity 1 at the configured
// unit price. Adding a meal that is already present changes nothing and
// reports AddOutcomeUnchanged. The returned item is the stored form.
func (s *CartService) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, models.LineItem, error) {
	if userID == "" || item.IDMeal == "" {
		return models.AddOutcomeUnchanged, models.LineItem{}, fmt.Errorf("%w: userId and item with idMeal are required", ErrInvalidInput)
	}

	stored := models.NewLineItem(item.IDMeal, item.Details, s.policy.UnitPrice())
	outcome, err := s.repo.AddItem(ctx, userID, stored)
	if err != nil {
		return models.AddOutcomeUnchanged, models.LineItem{}, err
	}

	switch outcome {
	case models.AddOutcomeCreated:
		s.publish(models.NewCartEvent(models.EventCartCreated, userID, stored.IDMeal, stored.Quantity))
	case models.AddOutcomeAdded:
		s.publish(models.NewCartEvent(models.EventItemAdded, userID, stored.IDMeal, stored.Quantity))
	}
	return outcome, stored, nil
}

// AdjustQuantity adds delta to the quantity of a meal in the cart. The item
// is removed when the result drops to zero or below.
func (s *CartService) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	if userID == "" || idMeal == "" {
		return models.AdjustResult{}, fmt.Errorf("%w: userId and itemId are required", ErrInvalidInput)
	}

	result, err := s.repo.AdjustQuantity(ctx, userID, idMeal, delta)
	if err != nil {
		return models.AdjustResult{}, err
	}

	if result.Outcome == models.AdjustOutcomeRemoved {
		s.publish(models.NewCartEvent(models.EventItemRemoved, userID, idMeal, 0))
	} else {
		s.publish(models.NewCartEvent(models.EventItemUpdated, userID, idMeal, result.Quantity))
	}
	return result, nil
}

// RemoveItem drops a meal from the cart. Removing a meal that is not there
// is not an error.
func (s *CartService) RemoveItem(ctx context.Context, userID, idMeal string) error {
	if userID == "" || idMeal == "" {
		return fmt.Errorf("%w: userId and itemId are required", ErrInvalidInput)
	}

	removed, err := s.repo.RemoveItem(ctx, userID, idMeal)
	if err != nil {
		return err
	}
	if removed {
		s.publish(models.NewCartEvent(models.EventItemRemoved, userID, idMeal, 0))
	}
	return nil
}

// ClearCart deletes the user's cart. Clearing a missing cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	deleted, err := s.repo.DeleteCart(ctx, userID)
	if err != nil {
		return err
	}
	if deleted {
		s.publish(models.NewCartEvent(models.EventCartCleared, userID, "", 0))
	}
	return nil
}

// GetCart returns the cart's items with their totals. A user without a cart
// gets an empty view.
func (s *CartService) GetCart(ctx context.Context, userID string) (models.CartView, error) {
	if userID == "" {
		return models.CartView{}, fmt.Errorf("%w: userId is required", ErrInvalidInput)
	}

	items := []models.LineItem{}
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil && !errors.Is(err, repositories.ErrCartNotFound) {
		return models.CartView{}, err
	}
	if cart != nil && len(cart.Items) > 0 {
		items = cart.Items
	}

	return models.CartView{
		Items:  items,
		Totals: s.policy.Totals(items),
	}, nil
}

// Ping reports whether the storage backend is reachable.
func (s *CartService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// publish sends event if a publisher is configured. Failures are logged and
// otherwise ignored.
func (s *CartService) publish(event models.CartEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishCartEvent(event); err != nil {
		s.logger.Warn("failed to publish cart event",
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}
