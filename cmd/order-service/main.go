package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/pastryshop/order-service/internal/order/application"
	"github.com/pastryshop/order-service/internal/order/infrastructure/availability"
	orderhttp "github.com/pastryshop/order-service/internal/order/infrastructure/http"
	orderkafka "github.com/pastryshop/order-service/internal/order/infrastructure/kafka"
	"github.com/pastryshop/order-service/internal/order/infrastructure/memory"
	"github.com/pastryshop/order-service/internal/order/infrastructure/noop"
	orderpg "github.com/pastryshop/order-service/internal/order/infrastructure/postgres"
	"github.com/pastryshop/order-service/pkg/idempotency"
	"github.com/pastryshop/order-service/pkg/logging"
	"github.com/pastryshop/order-service/pkg/outbox"
	"github.com/pastryshop/order-service/pkg/shutdown"
	"github.com/pastryshop/order-service/pkg/tracing"
)

func main() {
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Configuration
	kafkaBrokers := []string{env("KAFKA_ADDR", "localhost:9092")}
	availabilityURL := env("AVAILABILITY_URL", "http://localhost:8282")
	otlpEndpoint := env("OTLP_ENDPOINT", "http://localhost:4318")
	httpAddr := env("HTTP_ADDR", ":8080")
	createdTopic := env("ORDERS_CREATED_TOPIC", "orders-created")
	reviewedTopic := env("ORDERS_REVIEWED_TOPIC", "orders-reviewed")
	consumerGroup := env("CONSUMER_GROUP", "order-service")
	pgURL := os.Getenv("PG_URL")
	redisAddr := os.Getenv("REDIS_ADDR")

	tp, err := tracing.Init(ctx, "order-service", otlpEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	writer := orderkafka.NewWriter(kafkaBrokers)
	defer writer.Close()

	// Store selection: postgres keeps the creation event in a transactional
	// outbox drained by the relay; the in-memory default publishes directly
	// after the store write.
	var store application.OrderStore
	var publisher application.EventPublisher
	if pgURL != "" {
		pool, err := pgxpool.New(ctx, pgURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		pgStore := orderpg.NewStore(log, pool)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			log.Error("pg schema setup failed", "err", err)
			os.Exit(1)
		}
		store = pgStore
		publisher = noop.Publisher{}

		dispatch := outbox.NewDispatcher(log, writer, createdTopic)
		relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, "order-service-relay")
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error("relay stopped with error", "err", err)
			}
		}()
	} else {
		store = memory.NewStore()
		publisher = orderkafka.NewPublisher(log, writer, createdTopic)
	}

	var idem *idempotency.Store
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		defer rdb.Close()
		idem = idempotency.NewStore(rdb, 10*time.Minute)
	}

	checker := availability.NewClient(log, availabilityURL)
	svc := application.NewService(log, store, checker, publisher)

	reader := orderkafka.NewReader(kafkaBrokers, reviewedTopic, consumerGroup)
	consumer := orderkafka.NewConsumer(log, reader, application.NewProcessor(log, svc), idem, 0)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped with error", "err", err)
			cancel()
		}
	}()

	handler := orderhttp.NewHandler(log, svc)
	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      handler.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", httpAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
