package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mealcart/internal/config"
	"mealcart/internal/repositories"
)

// storage is an opened cart repository and the function that releases it.
type storage struct {
	repo  repositories.CartRepository
	close func() error
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMongo:
		return openMongo(ctx, cfg.Mongo, logger)
	case config.DriverPostgres:
		return openGORM(postgres.Open(cfg.DatabaseDSN), logger)
	case config.DriverSQLite:
		return openGORM(sqlite.Open(cfg.DatabaseDSN), logger)
	case config.DriverRedis:
		return openRedis(ctx, cfg.Redis, logger)
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, carts are lost on restart")
		return &storage{
			repo:  repositories.NewMemoryCartRepository(),
			close: func() error { return nil },
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openMongo(ctx context.Context, cfg config.MongoConfig, logger *zap.Logger) (*storage, error) {
	serverAPI := options.ServerAPI(options.ServerAPIVersion1).
		SetStrict(true).
		SetDeprecationErrors(true)
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetServerAPIOptions(serverAPI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info("Pinged your deployment. You successfully connected to MongoDB!",
		zap.String("database", cfg.Database), zap.String("collection", cfg.Collection))

	repo := repositories.NewMongoCartRepository(client.Database(cfg.Database).Collection(cfg.Collection))
	if err := repo.EnsureIndexes(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}
	return &storage{
		repo:  repo,
		close: func() error { return client.Disconnect(context.Background()) },
	}, nil
}

func openGORM(dialector gorm.Dialector, logger *zap.Logger) (*storage, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}

	repo := repositories.NewGORMCartRepository(db)
	if err := repo.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	logger.Info("Connected to relational storage", zap.String("dialect", dialector.Name()))
	return &storage{repo: repo, close: sqlDB.Close}, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*storage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Connected to Redis", zap.String("addr", cfg.Addr), zap.Duration("cart_ttl", cfg.CartTTL))
	return &storage{
		repo:  repositories.NewRedisCartRepository(client, cfg.CartTTL),
		close: client.Close,
	}, nil
}
