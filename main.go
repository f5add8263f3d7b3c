package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"mealcart/internal/config"
	"mealcart/internal/handlers"
	"mealcart/internal/logging"
	"mealcart/internal/middleware"
	"mealcart/internal/pricing"
	"mealcart/internal/services"
	"mealcart/pkg/rabbitmq"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// --- Storage ---
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	store, err := openStorage(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}

	// --- Cart events (optional) ---
	var publisher services.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQ.URL != "" {
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue}, logger)
		if err != nil {
			logger.Warn("RabbitMQ unavailable, cart events disabled", zap.Error(err))
		} else {
			publisher = mqClient
			logger.Info("Cart events enabled", zap.String("queue", mqClient.Queue()), zap.Bool("consume", cfg.RabbitMQ.Consume))
			if cfg.RabbitMQ.Consume {
				if err := mqClient.ConsumeCartEvents(rabbitmq.LogCartEvent(logger)); err != nil {
					logger.Warn("Failed to start cart event consumer", zap.Error(err))
				}
			}
		}
	}

	// --- Service and HTTP app ---
	policy := pricing.NewPolicy(cfg.DefaultPrice, cfg.TaxRate)
	cartService := services.NewCartService(store.repo, publisher, policy, logger)
	app := newApp(cartService, cfg.StorageDriver, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server running", zap.String("addr", cfg.Addr()), zap.String("storage", cfg.StorageDriver))
		if err := app.Listen(cfg.Addr()); err != nil {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-quit
	logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	if mqClient != nil {
		if err := mqClient.Close(); err != nil {
			logger.Error("Error closing RabbitMQ client", zap.Error(err))
		}
	}
	if err := store.close(); err != nil {
		logger.Error("Error closing storage", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}

// newApp wires middleware and routes around an already built service.
func newApp(cartService *services.CartService, storage string, logger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "mealcart",
		Immutable:             true,
		UnescapePath:          true,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(logger))
	app.Use(recover.New())
	app.Use(cors.New())

	handlers.NewHealthHandler(cartService, storage, logger).RegisterRoutes(app)
	handlers.NewCartHandler(cartService, logger).RegisterRoutes(app)

	return app
}

// errorHandler renders errors that escaped a handler in the cart API's
// {success, error} shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"success": false, "error": message})
}
