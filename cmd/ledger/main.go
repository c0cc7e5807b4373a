package main

import (
	ledgerhandler "stayledger/internal/ledger/handler"
	ledgerrepo "stayledger/internal/ledger/repository"
	ledgerservice "stayledger/internal/ledger/service"
	ledgervalidator "stayledger/internal/ledger/validator"

	"stayledger/internal/ledger/approval"
	"stayledger/internal/ledger/events"

	listinghandler "stayledger/internal/listings/handler"
	listingrepo "stayledger/internal/listings/repository"
	listingservice "stayledger/internal/listings/service"
	listingvalidator "stayledger/internal/listings/validator"

	"stayledger/pkg/app"
	"stayledger/pkg/client"
	"stayledger/pkg/config"
	"stayledger/pkg/kafka"
	kafka_config "stayledger/pkg/kafka/config"
)

const ServiceName = "ledger"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Ledger service")

	publisher, closePublisher := initPublisher(cfg)
	ledgerSvc, listingSvc := initServices(cfg, publisher)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(
		ledgerhandler.NewHealthHandler(cfg.Client.Mongo, cfg.Log),
		ledgerhandler.NewLedgerHandler(ledgerSvc, cfg.Log),
		listinghandler.NewListingHandler(listingSvc, cfg.Log),
	)
	serverApp.OnShutdown(closePublisher)
	serverApp.Run()
}

func initPublisher(cfg *config.Config) (events.Publisher, func()) {
	kafkaCfg := kafka_config.Load()
	producer, err := kafka.NewProducer(kafkaCfg, cfg.EventTopic, cfg.EventDLQTopic)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	publisher := events.NewKafkaPublisher(producer, ServiceName, cfg.Log)
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close Kafka publisher", "error", err)
		}
	}
}

func initServices(cfg *config.Config, publisher events.Publisher) (ledgerservice.LedgerService, listingservice.ListingService) {
	listingRepo := listingrepo.NewMongoListingRepository(cfg)
	listingSvc := listingservice.NewListingService(
		listingRepo,
		listingvalidator.NewListingValidator(cfg.Log),
		publisher,
		cfg,
	)

	ledgerSvc := ledgerservice.NewLedgerService(
		ledgerrepo.NewMongoBookingRepository(cfg),
		ledgerrepo.NewBookingLockRepository(cfg),
		listingRepo,
		ledgervalidator.NewLedgerValidator(cfg.Log),
		client.NewAvailabilityClient(cfg.AvailabilityBaseURL),
		client.NewPaymentsClient(cfg.PaymentsBaseURL),
		approval.NewHMACVerifier(cfg.ApprovalSecret),
		publisher,
		cfg,
	)

	cfg.Log.Info("Ledger services initialized", "database", cfg.MongoDatabaseName)
	return ledgerSvc, listingSvc
}
