package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/processor/internal/processor"
	"github.com/shubham-shewale/stock-quotes/pkg/config"
	"github.com/shubham-shewale/stock-quotes/pkg/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Kafka.Brokers,
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 200,
		MaxBytes: 10e6,
		MaxWait:  200 * time.Millisecond,
		// redelivery is harmless, workers drop anything at or below the last seq_id
		CommitInterval:    time.Second,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    10 * time.Second,
	})

	// an interface holding a nil *QuoteRepository is not nil, keep the zero value
	var sink processor.QuoteSink
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		repo := storage.NewQuoteRepository(db)
		if cfg.Database.AutoMigrate {
			if err := repo.Migrate(context.Background()); err != nil {
				logger.Fatal("Failed to migrate quotes table", zap.Error(err))
			}
		}
		sink = repo
	}

	proc := processor.NewProcessor(cfg, logger, rdb, reader, sink)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := proc.Run(ctx); err != nil {
		logger.Error("Processor stopped with error", zap.Error(err))
	}

	logger.Info("Closing Kafka Reader...")
	if err := reader.Close(); err != nil {
		logger.Error("Error closing reader", zap.Error(err))
	}

	logger.Info("Closing Redis...")
	rdb.Close()

	logger.Info("Processor exited cleanly")
}
