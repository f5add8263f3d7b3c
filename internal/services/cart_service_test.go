package services_test

import (
	"context"
	"errors"
	"testing"

	"mealcart/internal/models"
	"mealcart/internal/pricing"
	"mealcart/internal/repositories"
	"mealcart/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockCartRepository is a mock implementation of repositories.CartRepository
type MockCartRepository struct {
	mock.Mock
}

func (m *MockCartRepository) AddItem(ctx context.Context, userID string, item models.LineItem) (models.AddOutcome, error) {
	args := m.Called(ctx, userID, item)
	return args.Get(0).(models.AddOutcome), args.Error(1)
}

func (m *MockCartRepository) AdjustQuantity(ctx context.Context, userID, idMeal string, delta int) (models.AdjustResult, error) {
	args := m.Called(ctx, userID, idMeal, delta)
	return args.Get(0).(models.AdjustResult), args.Error(1)
}

func (m *MockCartRepository) RemoveItem(ctx context.Context, userID, idMeal string) (bool, error) {
	args := m.Called(ctx, userID, idMeal)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) DeleteCart(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCartRepository) GetCart(ctx context.Context, userID string) (*models.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Cart), args.Error(1)
}

func (m *MockCartRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of services.EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishCartEvent(event models.CartEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func eventOfType(eventType string) interface{} {
	return mock.MatchedBy(func(e models.CartEvent) bool { return e.Type == eventType })
}

func newService(repo *MockCartRepository, pub services.EventPublisher) *services.CartService {
	return services.NewCartService(repo, pub, pricing.NewPolicy(pricing.DefaultPrice, pricing.DefaultTaxRate), zap.NewNop())
}

func TestCartService_AddItem(t *testing.T) {
	ctx := context.Background()

	t.Run("stores quantity 1 at the default price", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		requested := models.LineItem{
			IDMeal:   "52772",
			Quantity: 7,
			Price:    0.01,
			Details:  map[string]interface{}{"strMeal": "Teriyaki Chicken"},
		}
		repo.On("AddItem", ctx, "u1", mock.MatchedBy(func(item models.LineItem) bool {
			return item.IDMeal == "52772" && item.Quantity == 1 && item.Price == 14.99 &&
				item.Details["strMeal"] == "Teriyaki Chicken"
		})).Return(models.AddOutcomeCreated, nil).Once()
		pub.On("PublishCartEvent", eventOfType(models.EventCartCreated)).Return(nil).Once()

		outcome, stored, err := service.AddItem(ctx, "u1", requested)

		assert.NoError(t, err)
		assert.Equal(t, models.AddOutcomeCreated, outcome)
		assert.Equal(t, 1, stored.Quantity)
		assert.Equal(t, 14.99, stored.Price)
		repo.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("appending publishes item_added", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		repo.On("AddItem", ctx, "u1", mock.Anything).Return(models.AddOutcomeAdded, nil).Once()
		pub.On("PublishCartEvent", eventOfType(models.EventItemAdded)).Return(nil).Once()

		outcome, _, err := service.AddItem(ctx, "u1", models.LineItem{IDMeal: "52959"})

		assert.NoError(t, err)
		assert.Equal(t, models.AddOutcomeAdded, outcome)
		pub.AssertExpectations(t)
	})

	t.Run("duplicate add is a silent success", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		repo.On("AddItem", ctx, "u1", mock.Anything).Return(models.AddOutcomeUnchanged, nil).Once()

		outcome, _, err := service.AddItem(ctx, "u1", models.LineItem{IDMeal: "52772"})

		assert.NoError(t, err)
		assert.Equal(t, models.AddOutcomeUnchanged, outcome)
		pub.AssertNotCalled(t, "PublishCartEvent", mock.Anything)
	})

	t.Run("missing fields never reach storage", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		_, _, err := service.AddItem(ctx, "", models.LineItem{IDMeal: "52772"})
		assert.ErrorIs(t, err, services.ErrInvalidInput)

		_, _, err = service.AddItem(ctx, "u1", models.LineItem{})
		assert.ErrorIs(t, err, services.ErrInvalidInput)

		repo.AssertNotCalled(t, "AddItem", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage error is returned", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		dbErr := errors.New("connection refused")
		repo.On("AddItem", ctx, "u1", mock.Anything).Return(models.AddOutcomeUnchanged, dbErr).Once()

		_, _, err := service.AddItem(ctx, "u1", models.LineItem{IDMeal: "52772"})
		assert.ErrorIs(t, err, dbErr)
	})

	t.Run("publish failure does not fail the add", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		core, logs := observer.New(zapcore.WarnLevel)
		service := services.NewCartService(repo, pub, pricing.NewPolicy(14.99, 0.1), zap.New(core))

		repo.On("AddItem", ctx, "u1", mock.Anything).Return(models.AddOutcomeCreated, nil).Once()
		pub.On("PublishCartEvent", mock.Anything).Return(errors.New("channel closed")).Once()

		outcome, _, err := service.AddItem(ctx, "u1", models.LineItem{IDMeal: "52772"})

		assert.NoError(t, err)
		assert.Equal(t, models.AddOutcomeCreated, outcome)
		assert.Equal(t, 1, logs.FilterMessage("failed to publish cart event").Len())
	})
}

func TestCartService_AdjustQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("updated", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		repo.On("AdjustQuantity", ctx, "u1", "52772", 1).
			Return(models.AdjustResult{Outcome: models.AdjustOutcomeUpdated, Quantity: 2}, nil).Once()
		pub.On("PublishCartEvent", mock.MatchedBy(func(e models.CartEvent) bool {
			return e.Type == models.EventItemUpdated && e.Quantity == 2 && e.IDMeal == "52772"
		})).Return(nil).Once()

		res, err := service.AdjustQuantity(ctx, "u1", "52772", 1)

		assert.NoError(t, err)
		assert.Equal(t, models.AdjustOutcomeUpdated, res.Outcome)
		pub.AssertExpectations(t)
	})

	t.Run("removed", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		repo.On("AdjustQuantity", ctx, "u1", "52772", -1).
			Return(models.AdjustResult{Outcome: models.AdjustOutcomeRemoved}, nil).Once()
		pub.On("PublishCartEvent", eventOfType(models.EventItemRemoved)).Return(nil).Once()

		res, err := service.AdjustQuantity(ctx, "u1", "52772", -1)

		assert.NoError(t, err)
		assert.Equal(t, models.AdjustOutcomeRemoved, res.Outcome)
		pub.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		repo := new(MockCartRepository)
		pub := new(MockEventPublisher)
		service := newService(repo, pub)

		repo.On("AdjustQuantity", ctx, "u1", "404", 1).
			Return(models.AdjustResult{}, repositories.ErrItemNotFound).Once()

		_, err := service.AdjustQuantity(ctx, "u1", "404", 1)

		assert.ErrorIs(t, err, services.ErrItemNotFound)
		pub.AssertNotCalled(t, "PublishCartEvent", mock.Anything)
	})

	t.Run("missing ids", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		_, err := service.AdjustQuantity(ctx, "u1", "", 1)
		assert.ErrorIs(t, err, services.ErrInvalidInput)
		repo.AssertNotCalled(t, "AdjustQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCartService_RemoveItem(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCartRepository)
	pub := new(MockEventPublisher)
	service := newService(repo, pub)

	repo.On("RemoveItem", ctx, "u1", "52772").Return(true, nil).Once()
	repo.On("RemoveItem", ctx, "u1", "52772").Return(false, nil).Once()
	pub.On("PublishCartEvent", eventOfType(models.EventItemRemoved)).Return(nil).Once()

	assert.NoError(t, service.RemoveItem(ctx, "u1", "52772"))
	assert.NoError(t, service.RemoveItem(ctx, "u1", "52772"))

	repo.AssertExpectations(t)
	pub.AssertNumberOfCalls(t, "PublishCartEvent", 1)
}

func TestCartService_ClearCart(t *testing.T) {
	ctx := context.Background()
	repo := new(MockCartRepository)
	pub := new(MockEventPublisher)
	service := newService(repo, pub)

	repo.On("DeleteCart", ctx, "u1").Return(true, nil).Once()
	repo.On("DeleteCart", ctx, "ghost").Return(false, nil).Once()
	pub.On("PublishCartEvent", eventOfType(models.EventCartCleared)).Return(nil).Once()

	assert.NoError(t, service.ClearCart(ctx, "u1"))
	assert.NoError(t, service.ClearCart(ctx, "ghost"))

	repo.On("DeleteCart", ctx, "u2").Return(false, errors.New("timeout")).Once()
	assert.Error(t, service.ClearCart(ctx, "u2"))

	pub.AssertNumberOfCalls(t, "PublishCartEvent", 1)
}

func TestCartService_GetCart(t *testing.T) {
	ctx := context.Background()

	t.Run("computes totals", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		repo.On("GetCart", ctx, "u1").Return(&models.Cart{
			UserID: "u1",
			Items: []models.LineItem{
				{IDMeal: "52772", Quantity: 2, Price: 14.99},
			},
		}, nil).Once()

		view, err := service.GetCart(ctx, "u1")

		require.NoError(t, err)
		require.Len(t, view.Items, 1)
		assert.Equal(t, 29.98, view.Subtotal)
		assert.Equal(t, 3.00, view.Tax)
		assert.Equal(t, 32.98, view.Total)
	})

	t.Run("missing and empty carts read the same", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		repo.On("GetCart", ctx, "ghost").Return(nil, repositories.ErrCartNotFound).Once()
		repo.On("GetCart", ctx, "empty").Return(&models.Cart{UserID: "empty"}, nil).Once()

		missing, err := service.GetCart(ctx, "ghost")
		require.NoError(t, err)
		empty, err := service.GetCart(ctx, "empty")
		require.NoError(t, err)

		assert.Equal(t, missing, empty)
		assert.NotNil(t, missing.Items)
		assert.Empty(t, missing.Items)
		assert.Equal(t, models.Totals{}, missing.Totals)
	})

	t.Run("storage error", func(t *testing.T) {
		repo := new(MockCartRepository)
		service := newService(repo, nil)

		repo.On("GetCart", ctx, "u1").Return(nil, errors.New("server selection timeout")).Once()

		_, err := service.GetCart(ctx, "u1")
		assert.Error(t, err)
	})
}
