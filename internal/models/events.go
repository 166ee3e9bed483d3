package models

import "time"

// NATS Event Types
const (
	EventOrderConfirmed    = "order.confirmed"
	EventTransferInitiated = "transfer.initiated"
	EventTransferAccepted  = "transfer.accepted"
	EventTransferCancelled = "transfer.cancelled"
	EventTransferExpired   = "transfer.expired"
	EventListingCreated    = "listing.created"
	EventListingSold       = "listing.sold"
	EventListingRemoved    = "listing.removed"
)

// OrderConfirmedEvent represents a completed checkout
type OrderConfirmedEvent struct {
	OrderID    string    `json:"order_id"`
	TierID     string    `json:"tier_id"`
	BuyerEmail string    `json:"buyer_email"`
	Quantity   int       `json:"quantity"`
	TotalPaid  string    `json:"total_paid"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferInitiatedEvent represents a newly opened transfer window
type TransferInitiatedEvent struct {
	TransferID string    `json:"transfer_id"`
	TicketID   string    `json:"ticket_id"`
	Method     string    `json:"method"`
	ToContact  *string   `json:"to_contact,omitempty"`
	ClaimLink  string    `json:"claim_link"`
	ExpiresAt  time.Time `json:"expires_at"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferAcceptedEvent represents a claimed transfer
type TransferAcceptedEvent struct {
	TransferID string    `json:"transfer_id"`
	TicketID   string    `json:"ticket_id"`
	NewOwner   string    `json:"new_owner"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferCancelledEvent represents a transfer cancelled by the sender
type TransferCancelledEvent struct {
	TransferID string    `json:"transfer_id"`
	TicketID   string    `json:"ticket_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// TransferExpiredEvent represents a transfer reclaimed by the expiry sweep
type TransferExpiredEvent struct {
	TransferID string    `json:"transfer_id"`
	TicketID   string    `json:"ticket_id"`
	Timestamp  time.Time `json:"timestamp"`
}

// ListingCreatedEvent represents a ticket entering the resale marketplace
type ListingCreatedEvent struct {
	ListingID string    `json:"listing_id"`
	TicketID  string    `json:"ticket_id"`
	Price     string    `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// ListingSoldEvent represents a resale purchase
type ListingSoldEvent struct {
	ListingID    string    `json:"listing_id"`
	TicketID     string    `json:"ticket_id"`
	BuyerContact string    `json:"buyer_contact"`
	Price        string    `json:"price"`
	PlatformFee  string    `json:"platform_fee"`
	Timestamp    time.Time `json:"timestamp"`
}

// ListingRemovedEvent represents a listing taken down by its seller
type ListingRemovedEvent struct {
	ListingID string    `json:"listing_id"`
	TicketID  string    `json:"ticket_id"`
	Timestamp time.Time `json:"timestamp"`
}
