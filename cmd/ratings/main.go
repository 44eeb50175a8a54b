package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	ratingshandler "parkshare/internal/ratings/handler"
	ratingsrepo "parkshare/internal/ratings/repository"
	ratingsservice "parkshare/internal/ratings/service"
	"parkshare/pkg/config"
	"parkshare/pkg/kafka"
	kafka_config "parkshare/pkg/kafka/config"
	kafka_middleware "parkshare/pkg/kafka/middleware"
)

const ServiceName = "parkshare-ratings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Failed to load kafka config", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	ratings := ratingsservice.NewRatingService(ratingsrepo.NewMongoRatingRepository(cfg), cfg)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		kafkaCfg.OutcomesTopic,
		kafkaCfg.RatingsGroupID,
		kafkaCfg.OutcomesDLQTopic,
		ratingshandler.NewOutcomeMessageHandler(ratings),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka consumer", "error", err)
	}
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming booking outcomes", "topic", kafkaCfg.OutcomesTopic, "group_id", kafkaCfg.RatingsGroupID)
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, kafka.ErrConsumerClosed) {
		cfg.Log.Error("Consumer stopped", "error", err)
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka consumer", "error", err)
	}
	cfg.Log.Info("Ratings consumer stopped")
}
