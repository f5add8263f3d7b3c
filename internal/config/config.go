package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage drivers accepted in STORAGE_DRIVER.
const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port          string
	LogLevel      string
	StorageDriver string
	Mongo         MongoConfig
	DatabaseDSN   string
	Redis         RedisConfig
	RabbitMQ      RabbitMQConfig
	DefaultPrice  float64
	TaxRate       float64
}

// MongoConfig locates the carts collection.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// RedisConfig holds the redis connection and key lifetime.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CartTTL  time.Duration
}

// RabbitMQConfig controls cart event publishing. An empty URL disables it.
type RabbitMQConfig struct {
	URL     string
	Queue   string
	Consume bool
}

// Load reads an optional .env file into the environment and then builds the
// configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFrom(viper.New())
}

// LoadFrom builds the configuration from v, applying defaults and
// environment overrides.
func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetDefault("PORT", "8000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", DriverMongo)
	v.SetDefault("MONGODB_DATABASE", "repliq-meal")
	v.SetDefault("MONGODB_COLLECTION", "carts")
	v.SetDefault("DATABASE_DSN", "file:mealcart.db?cache=shared")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CART_TTL", "720h")
	v.SetDefault("RABBITMQ_QUEUE", "cart_events")
	v.SetDefault("RABBITMQ_CONSUME", false)
	v.SetDefault("DEFAULT_PRICE", 14.99)
	v.SetDefault("TAX_RATE", 0.1)
	v.AutomaticEnv()

	mongoURI := v.GetString("MONGODB_URI")
	if mongoURI == "" {
		mongoURI = v.GetString("REACT_APP_DB_URL")
	}

	cfg := &Config{
		Port:          v.GetString("PORT"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		StorageDriver: strings.ToLower(strings.TrimSpace(v.GetString("STORAGE_DRIVER"))),
		Mongo: MongoConfig{
			URI:        mongoURI,
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
		},
		DatabaseDSN: v.GetString("DATABASE_DSN"),
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			CartTTL:  v.GetDuration("CART_TTL"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:     v.GetString("RABBITMQ_URL"),
			Queue:   v.GetString("RABBITMQ_QUEUE"),
			Consume: v.GetBool("RABBITMQ_CONSUME"),
		},
		DefaultPrice: v.GetFloat64("DEFAULT_PRICE"),
		TaxRate:      v.GetFloat64("TAX_RATE"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case DriverMongo:
		if c.Mongo.URI == "" {
			return errors.New("MONGODB_URI (or REACT_APP_DB_URL) is required for the mongo storage driver")
		}
	case DriverPostgres, DriverSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required for the %s storage driver", c.StorageDriver)
		}
	case DriverRedis, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DefaultPrice < 0 {
		return fmt.Errorf("DEFAULT_PRICE must not be negative, got %v", c.DefaultPrice)
	}
	if c.TaxRate < 0 {
		return fmt.Errorf("TAX_RATE must not be negative, got %v", c.TaxRate)
	}
	if c.Redis.CartTTL < 0 {
		return fmt.Errorf("CART_TTL must not be negative, got %v", c.Redis.CartTTL)
	}
	return nil
}

// Addr is the fiber listen address for Port.
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
