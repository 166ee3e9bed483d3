package consumers

import (
	"context"
	"log/slog"

	"lark/internal/config"
	"lark/internal/database"
	"lark/internal/external"
	"lark/internal/messaging"
	"lark/internal/repository"
	"lark/internal/service"
)

// ConsumerService is the worker-side of the system: it reacts to domain
// events (sending transfer invites) and runs the transfer expiry sweep.
type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	handlers *Handlers
	Mobility *service.MobilityService
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	var notifier service.Notifier
	if cfg.Notify.BaseURL != "" {
		notifier = external.NewNotifyClient(cfg.Notify)
	} else {
		slog.Warn("No notification service configured, transfer invites are log-only")
	}

	repos := repository.NewRepositories(db)
	mobility := service.NewMobilityService(repos, notifier, natsClient, nil, cfg.ClaimBase)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		handlers: NewHandlers(notifier),
		Mobility: mobility,
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	_, err := cs.nats.SubscribeQueue("transfer.initiated", "consumers", cs.handlers.HandleTransferInitiated)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue("transfer.expired", "consumers", cs.handlers.HandleTransferExpired)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue("order.confirmed", "consumers", cs.handlers.HandleOrderConfirmed)
	if err != nil {
		return err
	}

	_, err = cs.nats.SubscribeQueue("listing.sold", "consumers", cs.handlers.HandleListingSold)
	if err != nil {
		return err
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
