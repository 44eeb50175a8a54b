package app

import (
	"fmt"

	"parkshare/internal/events"
	parkingsrepo "parkshare/internal/parkings/repository"
	parkingsservice "parkshare/internal/parkings/service"
	ratingsrepo "parkshare/internal/ratings/repository"
	ratingsservice "parkshare/internal/ratings/service"
	spotsrepo "parkshare/internal/spots/repository"
	spotsservice "parkshare/internal/spots/service"
	walletsrepo "parkshare/internal/wallets/repository"
	walletsservice "parkshare/internal/wallets/service"
	"parkshare/pkg/config"
	"parkshare/pkg/kafka"
	kafka_config "parkshare/pkg/kafka/config"
	kafka_middleware "parkshare/pkg/kafka/middleware"
)

const eventSource = "parkshare"

// Services is the wired domain layer shared by the API and the scheduler.
type Services struct {
	Wallets  walletsservice.WalletService
	Ratings  ratingsservice.RatingService
	Parkings parkingsservice.ParkingService
	Spots    spotsservice.SpotService

	producer *kafka.Producer
}

func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{}
	s.Wallets = walletsservice.NewWalletService(walletsrepo.NewMongoWalletRepository(cfg), cfg)
	s.Ratings = ratingsservice.NewRatingService(ratingsrepo.NewMongoRatingRepository(cfg), cfg)
	s.Parkings = parkingsservice.NewParkingService(parkingsrepo.NewMongoParkingRepository(cfg), s.Wallets, cfg)

	publisher, err := s.newPublisher(cfg)
	if err != nil {
		return nil, err
	}
	s.Spots = spotsservice.NewSpotService(spotsrepo.NewMongoSpotRepository(cfg), s.Parkings, s.Wallets, publisher, cfg)

	cfg.Log.Info("Domain services initialized", "events_mode", cfg.EventsMode)
	return s, nil
}

func (s *Services) newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.EventsMode == config.EventsModeInline {
		return events.NewInlinePublisher(s.Ratings), nil
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load kafka config: %w", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, kafkaCfg.OutcomesTopic, kafkaCfg.OutcomesDLQTopic, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
	}
	s.producer = producer
	return events.NewKafkaPublisher(producer, eventSource), nil
}

func (s *Services) Close(cfg *config.Config) {
	if s.producer == nil {
		return
	}
	if err := s.producer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka producer", "error", err)
	}
}
