package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/api"
	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/publisher"
	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/simulator"
	"github.com/shubham-shewale/stock-quotes/cmd/quotes/internal/stream"
	"github.com/shubham-shewale/stock-quotes/pkg/config"
	"github.com/shubham-shewale/stock-quotes/pkg/models"
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

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	seed := cfg.Simulator.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	registry := models.DefaultRegistry()
	sim := simulator.NewSimulator(logger, registry, cfg.Simulator.PinnedSymbol, simulator.RealRand{Rand: rand.New(rand.NewSource(seed))})

	var sinks []simulator.Sink
	var pub *publisher.KafkaPublisher
	if cfg.Kafka.Enabled {
		creator := publisher.NewTopicCreator(logger, &publisher.RealKafkaDialer{Dialer: kafka.DefaultDialer}, publisher.RealClock{})
		if err := creator.Ensure(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
			logger.Warn("Kafka topic not confirmed, publishing anyway", zap.Error(err))
		}

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Kafka.Brokers...),
			Topic:        cfg.Kafka.Topic,
			Balancer:     &kafka.Hash{}, // symbol key -> stable partition
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			Async:        true,
			ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
				logger.Error("Kafka writer", zap.String("detail", fmt.Sprintf(msg, args...)))
			}),
		}
		pub = publisher.NewKafkaPublisher(logger, writer, publisher.RealClock{}, 16)
		go pub.Run(ctx)
		sinks = append(sinks, pub)
	}

	var counter api.QuoteCounter
	if cfg.Database.DSN != "" {
		db, err := storage.Open(cfg.Database)
		if err != nil {
			logger.Warn("Persistence unavailable, count endpoint disabled", zap.Error(err))
		} else {
			repo := storage.NewQuoteRepository(db)
			if cfg.Database.AutoMigrate {
				if err := repo.Migrate(ctx); err != nil {
					logger.Warn("Quote table migration failed", zap.Error(err))
				}
			}
			counter = repo
		}
	}

	scheduler := simulator.NewScheduler(sim, logger, cfg.Simulator.TickInterval, cfg.Simulator.ReshuffleInterval, sinks...)
	go scheduler.Run(ctx)

	feed := stream.NewBroadcaster(logger, sim, cfg.Stream.Interval)
	go feed.Run(ctx)

	handler := api.NewHandler(logger, sim, feed, counter, cfg.Stream.MaxWait)
	srv := &http.Server{Addr: cfg.App.Port, Handler: api.NewRouter(logger, handler, cfg.App.CORSOrigins)}

	go func() {
		logger.Info("Server Started", zap.String("port", cfg.App.Port), zap.Strings("symbols", registry.Tickers()))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP Error", zap.Error(err))
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel() // stops scheduler, feed and publisher

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	if pub != nil {
		if err := pub.Close(); err != nil {
			logger.Error("Error closing Kafka writer", zap.Error(err))
		} else {
			logger.Info("Kafka writer closed cleanly")
		}
	}
	logger.Info("Shutdown Complete")
}
