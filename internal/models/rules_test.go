package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"lark/internal/errors"
)

func TestResaleCap(t *testing.T) {
	faceValue := decimal.RequireFromString("100.00")
	assert.True(t, ResaleCap(faceValue).Equal(decimal.RequireFromString("110.00")))
}

func TestCheckListingPrice(t *testing.T) {
	faceValue := decimal.RequireFromString("100.00")

	// At the cap exactly is allowed.
	assert.NoError(t, CheckListingPrice(decimal.RequireFromString("110.00"), faceValue))
	assert.NoError(t, CheckListingPrice(decimal.Zero, faceValue))
	assert.NoError(t, CheckListingPrice(decimal.RequireFromString("50.00"), faceValue))

	// One penny over fails.
	err := CheckListingPrice(decimal.RequireFromString("110.01"), faceValue)
	assert.True(t, errors.IsKind(err, errors.KindPriceCapExceeded))

	err = CheckListingPrice(decimal.RequireFromString("-1.00"), faceValue)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestCheckListingPriceOddFaceValue(t *testing.T) {
	// 110% of 33.33 is 36.663; a listing at 36.66 passes, 36.67 fails.
	faceValue := decimal.RequireFromString("33.33")

	assert.NoError(t, CheckListingPrice(decimal.RequireFromString("36.66"), faceValue))
	err := CheckListingPrice(decimal.RequireFromString("36.67"), faceValue)
	assert.True(t, errors.IsKind(err, errors.KindPriceCapExceeded))
}

func TestPlatformFee(t *testing.T) {
	fee := PlatformFee(decimal.RequireFromString("110.00"))
	assert.True(t, fee.Equal(decimal.RequireFromString("5.50")), "got %s", fee)

	// Rounded to pennies.
	fee = PlatformFee(decimal.RequireFromString("33.33"))
	assert.True(t, fee.Equal(decimal.RequireFromString("1.67")), "got %s", fee)
}

func TestCheckTransferable(t *testing.T) {
	cases := []struct {
		status string
		ok     bool
	}{
		{TicketStatusActive, true},
		{TicketStatusListed, false},
		{TicketStatusTransferred, false},
		{TicketStatusSold, false},
		{TicketStatusVoid, false},
	}

	for _, tc := range cases {
		ticket := &Ticket{Status: tc.status}
		err := ticket.CheckTransferable()
		if tc.ok {
			assert.NoError(t, err, tc.status)
		} else {
			assert.True(t, errors.IsKind(err, errors.KindNotTransferable), tc.status)
		}
	}
}

func TestCheckAcceptable(t *testing.T) {
	now := time.Now()

	pending := &TransferRequest{Status: TransferStatusPending, ExpiresAt: now.Add(time.Hour)}
	assert.NoError(t, pending.CheckAcceptable(now))

	// Boundary: exactly at expiry the window is closed.
	atExpiry := &TransferRequest{Status: TransferStatusPending, ExpiresAt: now}
	assert.True(t, errors.IsKind(atExpiry.CheckAcceptable(now), errors.KindTransferExpired))

	justBefore := &TransferRequest{Status: TransferStatusPending, ExpiresAt: now.Add(time.Millisecond)}
	assert.NoError(t, justBefore.CheckAcceptable(now))

	accepted := &TransferRequest{Status: TransferStatusAccepted, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, errors.IsKind(accepted.CheckAcceptable(now), errors.KindAlreadyAccepted))

	cancelled := &TransferRequest{Status: TransferStatusCancelled, ExpiresAt: now.Add(time.Hour)}
	assert.True(t, errors.IsKind(cancelled.CheckAcceptable(now), errors.KindTransferExpired))

	expired := &TransferRequest{Status: TransferStatusExpired, ExpiresAt: now.Add(-time.Hour)}
	assert.True(t, errors.IsKind(expired.CheckAcceptable(now), errors.KindTransferExpired))
}

func TestExpired(t *testing.T) {
	now := time.Now()

	tr := &TransferRequest{Status: TransferStatusPending, ExpiresAt: now.Add(-time.Second)}
	assert.True(t, tr.Expired(now))

	tr = &TransferRequest{Status: TransferStatusPending, ExpiresAt: now.Add(time.Second)}
	assert.False(t, tr.Expired(now))

	// Non-pending requests are never reported as newly expired.
	tr = &TransferRequest{Status: TransferStatusAccepted, ExpiresAt: now.Add(-time.Hour)}
	assert.False(t, tr.Expired(now))
}
