package models

import (
	"github.com/shopspring/decimal"
)

// CreateTierRequest - organizer-facing tier creation
type CreateTierRequest struct {
	Name          string          `json:"name" binding:"required"`
	UnitPrice     decimal.Decimal `json:"unit_price" binding:"required"`
	ServiceFee    decimal.Decimal `json:"service_fee"`
	TotalQuantity int             `json:"total_quantity" binding:"required"`
}

// CreateTierResponse - tier creation result
type CreateTierResponse struct {
	ID string `json:"id"`
}

// CheckoutResponse - current state of a checkout session; Order is set once
// the session reaches the confirmed step
type CheckoutResponse struct {
	SessionID string            `json:"session_id"`
	Step      string            `json:"step"`
	Order     *OrderWithTickets `json:"order,omitempty"`
}

// SelectionRequest - advance selection -> contact (or payment for an
// established buyer identity)
type SelectionRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	TierID    string `json:"tier_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// ContactRequest - advance contact -> payment
type ContactRequest struct {
	SessionID     string `json:"session_id" binding:"required"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	CreateAccount bool   `json:"create_account"`
	Password      string `json:"password"`
}

// PaymentRequest - advance payment -> review. Card fields are required for
// manual card entry only; wallet methods carry their own tokens upstream.
type PaymentRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	Method     string `json:"method" binding:"required"`
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_expiry"`
	CardCVC    string `json:"card_cvc"`
}

// ReviewRequest - advance review -> confirmed. The idempotency key is
// client-generated; resubmitting it returns the original order.
type ReviewRequest struct {
	SessionID         string `json:"session_id" binding:"required"`
	AgreeTerms        bool   `json:"agree_terms"`
	AgreeRefundPolicy bool   `json:"agree_refund_policy"`
	IdempotencyKey    string `json:"idempotency_key" binding:"required"`
}

// AbandonRequest - discard a checkout session, no side effects
type AbandonRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

// OrderWithTickets - confirmed order plus its minted tickets
type OrderWithTickets struct {
	Order
	Tickets []Ticket `json:"tickets"`
}

// InitiateTransferRequest - start a free transfer by email invite or
// anonymous claim link
type InitiateTransferRequest struct {
	Method    string `json:"method" binding:"required"`
	ToContact string `json:"to_contact"`
}

// AcceptTransferRequest - claim a pending transfer
type AcceptTransferRequest struct {
	Contact   string `json:"contact" binding:"required"`
	LinkToken string `json:"link_token"`
}

// CancelTransferRequest - cancel a pending transfer, sender only
type CancelTransferRequest struct {
	Requester string `json:"requester" binding:"required"`
}

// TransferResult - updated transfer and ticket after a mobility operation
type TransferResult struct {
	Transfer TransferRequest `json:"transfer"`
	Ticket   *Ticket         `json:"ticket,omitempty"`
}

// CreateListingRequest - list a ticket for capped resale
type CreateListingRequest struct {
	Price  decimal.Decimal `json:"price"`
	Seller string          `json:"seller"`
}

// PurchaseListingRequest - buy an active resale listing
type PurchaseListingRequest struct {
	BuyerContact string `json:"buyer_contact" binding:"required"`
}

// RemoveListingRequest - take a listing off the marketplace, seller only
type RemoveListingRequest struct {
	Requester string `json:"requester" binding:"required"`
}

// ListingResult - updated listing and ticket; PlatformFee is derived (5% of
// the listing price) and only present on a purchase
type ListingResult struct {
	Listing     ResaleListing    `json:"listing"`
	Ticket      *Ticket          `json:"ticket,omitempty"`
	PlatformFee *decimal.Decimal `json:"platform_fee,omitempty"`
}

// ListingDoc - marketplace search document mirrored into Elasticsearch;
// Postgres remains the source of truth
type ListingDoc struct {
	ID            string `json:"id"`
	TicketID      string `json:"ticket_id"`
	TierName      string `json:"tier_name"`
	Price         string `json:"price"`
	FaceValue     string `json:"face_value"`
	SellerContact string `json:"seller_contact"`
	CreatedAt     string `json:"created_at"`
}
