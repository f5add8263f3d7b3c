package handlers

import (
	"errors"

	"mealcart/internal/models"
	"mealcart/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AddItemRequest is the body of POST /cart.
type AddItemRequest struct {
	UserID string           `json:"userId" validate:"required"`
	Item   *models.LineItem `json:"item" validate:"required"`
}

// ChangeQuantityRequest is the body of PATCH /cart/:userId/:itemId.
type ChangeQuantityRequest struct {
	Change *int `json:"change" validate:"required"`
}

// AddItemResult is the data returned by POST /cart.
type AddItemResult struct {
	Outcome string          `json:"outcome"`
	UserID  string          `json:"userId"`
	Item    models.LineItem `json:"item"`
}

const (
	msgAddRequired   = "userId and item with idMeal are required"
	msgInvalidData   = "Invalid request data"
	msgItemNotFound  = "Item not found"
	msgInternalError = "Internal Server Error"
)

// CartHandler handles HTTP requests for carts.
type CartHandler struct {
	service  *services.CartService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *services.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers the cart routes with the Fiber app.
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	cartRoutes := router.Group("/cart")
	cartRoutes.Post("/", h.HandleAddItem)
	cartRoutes.Patch("/:userId/:itemId", h.HandleChangeQuantity)
	cartRoutes.Delete("/:userId/:itemId", h.HandleRemoveItem)
	cartRoutes.Get("/:userId", h.HandleGetCart)
	cartRoutes.Delete("/:userId", h.HandleClearCart)
}

// HandleAddItem adds a meal to a user's cart.
func (h *CartHandler) HandleAddItem(c *fiber.Ctx) error {
	var req AddItemRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("invalid add item body", zap.Error(err))
		return fail(c, fiber.StatusBadRequest, msgAddRequired)
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, msgAddRequired)
	}

	outcome, stored, err := h.service.AddItem(c.UserContext(), req.UserID, *req.Item)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return fail(c, fiber.StatusBadRequest, msgAddRequired)
		}
		return h.internalError(c, "add item", req.UserID, err)
	}

	var message string
	switch outcome {
	case models.AddOutcomeCreated:
		message = "Cart created and item added"
	case models.AddOutcomeAdded:
		message = "Item added to cart"
	default:
		message = "Item already in cart"
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
		"data": AddItemResult{
			Outcome: outcome.String(),
			UserID:  req.UserID,
			Item:    stored,
		},
	})
}

// HandleChangeQuantity applies a signed quantity change to one item.
func (h *CartHandler) HandleChangeQuantity(c *fiber.Ctx) error {
	userID := c.Params("userId")
	itemID := c.Params("itemId")

	var req ChangeQuantityRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, msgInvalidData)
	}
	if err := h.validate.Struct(req); err != nil {
		return fail(c, fiber.StatusBadRequest, msgInvalidData)
	}

	result, err := h.service.AdjustQuantity(c.UserContext(), userID, itemID, *req.Change)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidInput):
			return fail(c, fiber.StatusBadRequest, msgInvalidData)
		case errors.Is(err, services.ErrItemNotFound):
			return fail(c, fiber.StatusNotFound, msgItemNotFound)
		}
		return h.internalError(c, "change quantity", userID, err)
	}

	message := "Item quantity updated"
	if result.Outcome == models.AdjustOutcomeRemoved {
		message = "Item removed from cart"
	}
	return c.JSON(fiber.Map{"success": true, "message": message})
}

// HandleRemoveItem removes one item from a cart.
func (h *CartHandler) HandleRemoveItem(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if err := h.service.RemoveItem(c.UserContext(), userID, c.Params("itemId")); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return fail(c, fiber.StatusBadRequest, msgInvalidData)
		}
		return h.internalError(c, "remove item", userID, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Item removed from cart"})
}

// HandleGetCart returns a cart with its totals.
func (h *CartHandler) HandleGetCart(c *fiber.Ctx) error {
	userID := c.Params("userId")
	view, err := h.service.GetCart(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return fail(c, fiber.StatusBadRequest, msgInvalidData)
		}
		return h.internalError(c, "get cart", userID, err)
	}
	return c.JSON(fiber.Map{"success": true, "cart": view})
}

// HandleClearCart deletes a user's cart.
func (h *CartHandler) HandleClearCart(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if err := h.service.ClearCart(c.UserContext(), userID); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			return fail(c, fiber.StatusBadRequest, msgInvalidData)
		}
		return h.internalError(c, "clear cart", userID, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Cart cleared successfully"})
}

func (h *CartHandler) internalError(c *fiber.Ctx, op, userID string, err error) error {
	h.logger.Error("cart operation failed",
		zap.String("op", op),
		zap.String("user_id", userID),
		zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, msgInternalError)
}

func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": message})
}
