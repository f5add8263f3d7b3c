package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	pinger  Pinger
	storage string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. storage names the backend
// reported in /health.
func NewHealthHandler(pinger Pinger, storage string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		pinger:  pinger,
		storage: storage,
		timeout: 2 * time.Second,
		logger:  logger,
	}
}

// RegisterRoutes registers / and /health.
func (h *HealthHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/", h.HandleAlive)
	router.Get("/health", h.HandleHealth)
}

// HandleAlive answers as long as the process is serving requests.
func (h *HealthHandler) HandleAlive(c *fiber.Ctx) error {
	return c.SendString("Server is alive!!!")
}

// HandleHealth pings the storage backend.
func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	now := time.Now().Format(time.RFC3339)
	if err := h.pinger.Ping(ctx); err != nil {
		h.logger.Warn("storage ping failed", zap.String("storage", h.storage), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "unhealthy",
			"storage": h.storage,
			"time":    now,
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"storage": h.storage,
		"time":    now,
	})
}
