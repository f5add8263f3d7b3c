package rabbitmq

import (
	"encoding/json"
	"fmt"
	"sync"

	"mealcart/internal/models"

	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// DefaultQueue is the queue cart events go to when Config.Queue is empty.
const DefaultQueue = "cart_events"

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger
	// amqp.Channel is not safe for concurrent publishes
	mu sync.Mutex
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL   string
	Queue string
}

// NewClient connects to RabbitMQ, opens a channel and declares the
// durable cart event queue.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := declareQueue(ch, cfg.Queue); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("RabbitMQ client connected", zap.String("queue", cfg.Queue))

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   cfg.Queue,
		logger:  logger,
	}, nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare %s: %w", name, err)
	}
	return nil
}

// Queue returns the name of the queue the client publishes to.
func (c *Client) Queue() string {
	return c.queue
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ client close: %v", errs)
	}
	return nil
}

// PublishCartEvent publishes event as a persistent JSON message on the
// cart event queue.
func (c *Client) PublishCartEvent(event models.CartEvent) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal cart event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	err = c.channel.Publish(
		"",      // exchange: default exchange
		c.queue, // routing key: the queue name
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         event.Type,
			MessageId:    event.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("cart event published",
		zap.String("event_id", event.ID),
		zap.String("type", event.Type),
		zap.String("user_id", event.UserID))
	return nil
}

// DecodeCartEvent parses a message body produced by PublishCartEvent.
func DecodeCartEvent(body []byte) (models.CartEvent, error) {
	var event models.CartEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return models.CartEvent{}, fmt.Errorf("failed to decode cart event: %w", err)
	}
	if event.Type == "" || event.UserID == "" {
		return models.CartEvent{}, fmt.Errorf("cart event is missing type or userId")
	}
	return event, nil
}

// ConsumeCartEvents starts a goroutine that hands every decoded event on the
// queue to handler. Messages that cannot be decoded are dropped; a handler
// error requeues the message.
func (c *Client) ConsumeCartEvents(handler func(event models.CartEvent) error) error {
	if c.channel == nil {
		return fmt.Errorf("RabbitMQ channel is not available for consumption")
	}

	msgs, err := c.channel.Consume(
		c.queue, // queue
		"",      // consumer tag
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("waiting for cart events", zap.String("queue", c.queue))

	go func() {
		for msg := range msgs {
			c.handleDelivery(msg, handler)
		}
		c.logger.Info("cart event consumer stopped")
	}()

	return nil
}

// acknowledger is the part of amqp.Delivery handleDelivery needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func (c *Client) handleDelivery(msg amqp.Delivery, handler func(models.CartEvent) error) {
	dispatch(c.logger, msg.DeliveryTag, msg.Body, msg, handler)
}

func dispatch(logger *zap.Logger, tag uint64, body []byte, ack acknowledger, handler func(models.CartEvent) error) {
	event, err := DecodeCartEvent(body)
	if err != nil {
		logger.Warn("dropping malformed cart event", zap.Uint64("delivery_tag", tag), zap.Error(err))
		if nackErr := ack.Nack(false, false); nackErr != nil {
			logger.Error("failed to nack message", zap.Uint64("delivery_tag", tag), zap.Error(nackErr))
		}
		return
	}

	if err := handler(event); err != nil {
		logger.Warn("failed to process cart event, requeueing",
			zap.Uint64("delivery_tag", tag), zap.String("event_id", event.ID), zap.Error(err))
		if nackErr := ack.Nack(false, true); nackErr != nil {
			logger.Error("failed to nack message", zap.Uint64("delivery_tag", tag), zap.Error(nackErr))
		}
		return
	}

	if ackErr := ack.Ack(false); ackErr != nil {
		logger.Error("failed to ack message", zap.Uint64("delivery_tag", tag), zap.Error(ackErr))
	}
}

// LogCartEvent returns a handler that records each event in the log.
func LogCartEvent(logger *zap.Logger) func(models.CartEvent) error {
	return func(event models.CartEvent) error {
		logger.Info("cart event received",
			zap.String("event_id", event.ID),
			zap.String("type", event.Type),
			zap.String("user_id", event.UserID),
			zap.String("id_meal", event.IDMeal),
			zap.Int("quantity", event.Quantity),
			zap.Time("occurred_at", event.OccurredAt))
		return nil
	}
}
