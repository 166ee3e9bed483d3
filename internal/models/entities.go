package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. An order is immutable once confirmed except for these
// status transitions.
const (
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusRefunded  = "REFUNDED"
	OrderStatusCancelled = "CANCELLED"
)

// Ticket statuses.
const (
	TicketStatusActive      = "ACTIVE"
	TicketStatusTransferred = "TRANSFERRED"
	TicketStatusListed      = "LISTED"
	TicketStatusSold        = "SOLD"
	TicketStatusVoid        = "VOID"
)

// Transfer request statuses and methods.
const (
	TransferStatusPending   = "PENDING"
	TransferStatusAccepted  = "ACCEPTED"
	TransferStatusCancelled = "CANCELLED"
	TransferStatusExpired   = "EXPIRED"

	TransferMethodEmail = "email"
	TransferMethodLink  = "link"
)

// Resale listing statuses.
const (
	ListingStatusActive  = "ACTIVE"
	ListingStatusSold    = "SOLD"
	ListingStatusRemoved = "REMOVED"
)

// Payment methods accepted at checkout. Card details are format-checked
// only; tokenization and Luhn checks belong to the payment gateway.
const (
	PaymentMethodCard      = "card"
	PaymentMethodApplePay  = "apple_pay"
	PaymentMethodGooglePay = "google_pay"
)

// TicketTier is an event-scoped offering. available_quantity never exceeds
// total_quantity and never goes negative; the decrement at purchase is a
// compare-and-decrement.
type TicketTier struct {
	ID                string          `json:"id" db:"id"`
	Name              string          `json:"name" db:"name"`
	UnitPrice         decimal.Decimal `json:"unit_price" db:"unit_price"`
	ServiceFee        decimal.Decimal `json:"service_fee" db:"service_fee"`
	TotalQuantity     int             `json:"total_quantity" db:"total_quantity"`
	AvailableQuantity int             `json:"available_quantity" db:"available_quantity"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// Order is the result of a successful checkout. Unit price and service fee
// are snapshotted at purchase time; later tier price changes never touch
// existing orders.
type Order struct {
	ID             string          `json:"id" db:"id"`
	TierID         string          `json:"tier_id" db:"tier_id"`
	BuyerName      string          `json:"buyer_name" db:"buyer_name"`
	BuyerEmail     string          `json:"buyer_email" db:"buyer_email"`
	Quantity       int             `json:"quantity" db:"quantity"`
	UnitPrice      decimal.Decimal `json:"unit_price" db:"unit_price"`
	ServiceFee     decimal.Decimal `json:"service_fee" db:"service_fee"`
	TotalPaid      decimal.Decimal `json:"total_paid" db:"total_paid"`
	PaymentRef     string          `json:"payment_ref" db:"payment_ref"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	Status         string          `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// Ticket is one admitted unit of an order. It belongs to exactly one order
// and, at any instant, exactly one owner. FaceValue is fixed at issuance
// (unit price + service fee) and is the basis for the resale cap forever,
// including after resales. Epoch counts ownership epochs; a resale purchase
// starts a new one.
type Ticket struct {
	ID           string          `json:"id" db:"id"`
	OrderID      string          `json:"order_id" db:"order_id"`
	TierID       string          `json:"tier_id" db:"tier_id"`
	OwnerContact string          `json:"owner_contact" db:"owner_contact"`
	FaceValue    decimal.Decimal `json:"face_value" db:"face_value"`
	Status       string          `json:"status" db:"status"`
	Epoch        int             `json:"epoch" db:"epoch"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TransferRequest is a pending gift of a ticket. At most one pending request
// may exist per ticket. The ticket stays usable by the current owner until
// acceptance; the request expires 7 days after creation.
type TransferRequest struct {
	ID         string    `json:"id" db:"id"`
	TicketID   string    `json:"ticket_id" db:"ticket_id"`
	FromOwner  string    `json:"from_owner" db:"from_owner"`
	Method     string    `json:"method" db:"method"`
	ToContact  *string   `json:"to_contact,omitempty" db:"to_contact"`
	LinkToken  *string   `json:"link_token,omitempty" db:"link_token"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
	AcceptedBy *string   `json:"accepted_by,omitempty" db:"accepted_by"`
}

// ResaleListing is a capped-price offer to sell a ticket through the
// marketplace. At most one active listing per ticket, and never alongside a
// pending transfer.
type ResaleListing struct {
	ID            string          `json:"id" db:"id"`
	TicketID      string          `json:"ticket_id" db:"ticket_id"`
	SellerContact string          `json:"seller_contact" db:"seller_contact"`
	ListingPrice  decimal.Decimal `json:"listing_price" db:"listing_price"`
	BuyerContact  *string         `json:"buyer_contact,omitempty" db:"buyer_contact"`
	Status        string          `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}
