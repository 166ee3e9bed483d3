package service

import (
	"context"
	"time"

	"lark/internal/models"
)

// Store is the transactional persistence contract both engines run against.
// Every method is an atomic read-modify-write: rule checks and mutations
// happen inside one critical section (a DB transaction with row locks, or a
// per-ticket lock in the in-memory store), so no interleaving can violate
// the inventory or single-outstanding-offer invariants.
//
// Implemented by repository.Repositories (Postgres) and memstore.Store.
type Store interface {
	// Tiers.
	CreateTier(ctx context.Context, tier *models.TicketTier) error
	GetTier(ctx context.Context, id string) (*models.TicketTier, error)
	ListTiers(ctx context.Context) ([]models.TicketTier, error)

	// ReserveInventory compare-and-decrements tier availability; it fails
	// with SoldOut when fewer than qty units remain. ReleaseInventory
	// returns units after a declined charge.
	ReserveInventory(ctx context.Context, tierID string, qty int) error
	ReleaseInventory(ctx context.Context, tierID string, qty int) error

	// CreatePurchase persists a confirmed order and its tickets as one
	// unit. A duplicate idempotency key fails with ConcurrentModification;
	// the caller resolves it by looking the original order up.
	CreatePurchase(ctx context.Context, order *models.Order, tickets []models.Ticket) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	GetOrderTickets(ctx context.Context, orderID string) ([]models.Ticket, error)

	GetTicket(ctx context.Context, id string) (*models.Ticket, error)

	// CreateTransfer fills transfer.FromOwner from the ticket's current
	// owner and persists the request, enforcing that the ticket is active
	// with no other outstanding offer. The ticket's own status is left
	// untouched until acceptance.
	CreateTransfer(ctx context.Context, transfer *models.TransferRequest) error
	GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error)
	// AcceptTransfer reassigns ownership exactly once; an expired pending
	// request is marked EXPIRED on the way out.
	AcceptTransfer(ctx context.Context, id, acceptingContact string, now time.Time) (*models.TransferRequest, *models.Ticket, error)
	CancelTransfer(ctx context.Context, id, requester string) (*models.TransferRequest, error)
	// ExpireTransfers reclaims the outstanding-offer slot for all pending
	// requests past their expiry; it returns the requests it expired.
	ExpireTransfers(ctx context.Context, now time.Time) ([]models.TransferRequest, error)

	// CreateListing enforces listability and the price cap against the
	// ticket's issuance face value, then flips the ticket to LISTED.
	CreateListing(ctx context.Context, listing *models.ResaleListing) (*models.Ticket, error)
	GetListing(ctx context.Context, id string) (*models.ResaleListing, error)
	// PurchaseListing closes the listing and starts a new ownership epoch
	// for the buyer; the ticket re-enters ACTIVE with its original face
	// value.
	PurchaseListing(ctx context.Context, id, buyerContact string) (*models.ResaleListing, *models.Ticket, error)
	RemoveListing(ctx context.Context, id, requester string) (*models.ResaleListing, *models.Ticket, error)
	ListActiveListings(ctx context.Context) ([]models.ResaleListing, error)
}
