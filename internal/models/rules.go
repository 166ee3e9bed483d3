package models

import (
	"time"

	"github.com/shopspring/decimal"

	"lark/internal/errors"
)

// TransferWindow is how long a pending transfer can be claimed.
const TransferWindow = 7 * 24 * time.Hour

// MaxTicketsPerOrder caps a single checkout.
const MaxTicketsPerOrder = 10

var (
	// resaleCapRatio models the UK-law 110% resale cap.
	resaleCapRatio = decimal.RequireFromString("1.10")

	// platformFeeRatio is the marketplace cut on a resale purchase.
	platformFeeRatio = decimal.RequireFromString("0.05")
)

// ResaleCap returns the maximum allowed listing price for a face value.
func ResaleCap(faceValue decimal.Decimal) decimal.Decimal {
	return faceValue.Mul(resaleCapRatio)
}

// PlatformFee returns the 5% marketplace fee on a listing price. The fee is
// derived on demand and never stored on the ticket.
func PlatformFee(listingPrice decimal.Decimal) decimal.Decimal {
	return listingPrice.Mul(platformFeeRatio).Round(2)
}

// CheckListingPrice enforces 0 <= price <= faceValue * 1.10. Enforcement is
// authoritative here regardless of what any client-side check permitted.
func CheckListingPrice(price, faceValue decimal.Decimal) error {
	if price.IsNegative() {
		return errors.New(errors.KindValidation, "listing price cannot be negative")
	}
	if cap := ResaleCap(faceValue); price.GreaterThan(cap) {
		return errors.Newf(errors.KindPriceCapExceeded,
			"listing price %s exceeds the resale cap of %s (110%% of face value)",
			price.StringFixed(2), cap.StringFixed(2))
	}
	return nil
}

// CheckTransferable reports whether the ticket can start a new transfer.
// Pending-transfer and active-listing exclusivity is checked by the store
// inside its critical section; this covers the ticket's own state.
func (t *Ticket) CheckTransferable() error {
	switch t.Status {
	case TicketStatusActive:
		return nil
	case TicketStatusListed:
		return errors.New(errors.KindNotTransferable, "this ticket is listed for resale; remove the listing first")
	case TicketStatusVoid:
		return errors.New(errors.KindNotTransferable, "this ticket was voided by a refund or cancellation")
	default:
		return errors.Newf(errors.KindNotTransferable, "this ticket cannot be transferred in its current state (%s)", t.Status)
	}
}

// CheckListable reports whether the ticket can be listed for resale.
func (t *Ticket) CheckListable() error {
	switch t.Status {
	case TicketStatusActive:
		return nil
	case TicketStatusListed:
		return errors.New(errors.KindNotTransferable, "this ticket already has an active resale listing")
	case TicketStatusVoid:
		return errors.New(errors.KindNotTransferable, "this ticket was voided by a refund or cancellation")
	default:
		return errors.Newf(errors.KindNotTransferable, "this ticket cannot be listed in its current state (%s)", t.Status)
	}
}

// CheckAcceptable reports whether the transfer can be accepted at now.
// Acceptance is exactly-once: a second attempt sees AlreadyAccepted.
func (tr *TransferRequest) CheckAcceptable(now time.Time) error {
	switch tr.Status {
	case TransferStatusAccepted:
		return errors.New(errors.KindAlreadyAccepted, "this transfer has already been accepted")
	case TransferStatusCancelled:
		return errors.New(errors.KindTransferExpired, "this transfer was cancelled by the sender")
	case TransferStatusExpired:
		return errors.New(errors.KindTransferExpired, "this transfer has expired")
	}
	if !now.Before(tr.ExpiresAt) {
		return errors.New(errors.KindTransferExpired, "this transfer has expired")
	}
	return nil
}

// Expired reports whether a pending request's claim window has passed.
func (tr *TransferRequest) Expired(now time.Time) bool {
	return tr.Status == TransferStatusPending && !now.Before(tr.ExpiresAt)
}
