package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"lark/internal/models"
)

// PaymentGateway is the consumed payment collaborator. Charge returns the
// gateway reference on success and a PaymentDeclined error on any
// non-success; the engines treat a decline as a hard stop with no inventory
// mutation.
type PaymentGateway interface {
	Charge(ctx context.Context, amount decimal.Decimal, method, idempotencyKey string) (string, error)
}

// Notifier is the consumed notification collaborator. Calls are
// fire-and-forget: a failure is logged and never rolls back a confirmed
// order or accepted transfer.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, contact, orderID string) error
	SendTransferInvite(ctx context.Context, email, transferLink string) error
}

// EventPublisher publishes domain events; messaging.NATSClient implements it.
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}

// ListingIndex mirrors active resale listings into the marketplace search
// index. Index writes are best-effort; Postgres stays the source of truth.
type ListingIndex interface {
	Index(ctx context.Context, doc *models.ListingDoc) error
	Remove(ctx context.Context, listingID string) error
	Search(ctx context.Context, query string, page, pageSize int) ([]models.ListingDoc, error)
}

type Services struct {
	Tiers    *TierService
	Checkout *CheckoutService
	Mobility *MobilityService
}

type Deps struct {
	Store      Store
	Gateway    PaymentGateway
	Notifier   Notifier
	Events     EventPublisher
	Index      ListingIndex
	SessionTTL time.Duration
	ClaimBase  string // base URL for transfer claim links
}

func NewServices(deps Deps) *Services {
	return &Services{
		Tiers:    NewTierService(deps.Store),
		Checkout: NewCheckoutService(deps.Store, deps.Gateway, deps.Notifier, deps.Events, deps.SessionTTL),
		Mobility: NewMobilityService(deps.Store, deps.Notifier, deps.Events, deps.Index, deps.ClaimBase),
	}
}

// Close stops background work owned by the services (session eviction).
func (s *Services) Close() {
	s.Checkout.Close()
}
