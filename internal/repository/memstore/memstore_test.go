package memstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lark/internal/errors"
	"lark/internal/models"
)

func seedTier(t *testing.T, s *Store, available int) *models.TicketTier {
	t.Helper()
	tier := &models.TicketTier{
		ID:                "tier-1",
		Name:              "General Admission",
		UnitPrice:         decimal.RequireFromString("50.00"),
		ServiceFee:        decimal.RequireFromString("5.00"),
		TotalQuantity:     available,
		AvailableQuantity: available,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, s.CreateTier(context.Background(), tier))
	return tier
}

func seedTicket(t *testing.T, s *Store, id, owner string) *models.Ticket {
	t.Helper()
	ctx := context.Background()
	order := &models.Order{
		ID:             "order-" + id,
		TierID:         "tier-1",
		BuyerEmail:     owner,
		Quantity:       1,
		IdempotencyKey: "key-" + id,
		Status:         models.OrderStatusConfirmed,
	}
	ticket := models.Ticket{
		ID:           id,
		OrderID:      order.ID,
		TierID:       "tier-1",
		OwnerContact: owner,
		FaceValue:    decimal.RequireFromString("55.00"),
		Status:       models.TicketStatusActive,
		Epoch:        1,
	}
	require.NoError(t, s.CreatePurchase(ctx, order, []models.Ticket{ticket}))
	return &ticket
}

func TestReserveInventoryNeverOversells(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reserved := 0

	// 50 buyers race for 10 units, 1 each.
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ReserveInventory(ctx, "tier-1", 1); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, reserved)

	tier, err := s.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 0, tier.AvailableQuantity)
}

func TestReserveAndReleaseConserveInventory(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 100)

	require.NoError(t, s.ReserveInventory(ctx, "tier-1", 4))
	require.NoError(t, s.ReleaseInventory(ctx, "tier-1", 4))

	tier, err := s.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 100, tier.AvailableQuantity)

	// Release never pushes availability past capacity.
	require.NoError(t, s.ReleaseInventory(ctx, "tier-1", 5))
	tier, _ = s.GetTier(ctx, "tier-1")
	assert.Equal(t, 100, tier.AvailableQuantity)
}

func TestCreatePurchaseIdempotencyKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)

	order := &models.Order{ID: "o1", TierID: "tier-1", IdempotencyKey: "k1", Status: models.OrderStatusConfirmed}
	require.NoError(t, s.CreatePurchase(ctx, order, nil))

	dup := &models.Order{ID: "o2", TierID: "tier-1", IdempotencyKey: "k1", Status: models.OrderStatusConfirmed}
	err := s.CreatePurchase(ctx, dup, nil)
	assert.True(t, errors.IsKind(err, errors.KindConcurrentModification))

	found, err := s.GetOrderByIdempotencyKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "o1", found.ID)
}

func TestSinglePendingTransferPerTicket(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")

	first := &models.TransferRequest{
		ID:        "tr1",
		TicketID:  "t1",
		Method:    models.TransferMethodLink,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(models.TransferWindow),
	}
	require.NoError(t, s.CreateTransfer(ctx, first))
	assert.Equal(t, "alice@example.com", first.FromOwner)

	second := &models.TransferRequest{
		ID:        "tr2",
		TicketID:  "t1",
		Method:    models.TransferMethodLink,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(models.TransferWindow),
	}
	err := s.CreateTransfer(ctx, second)
	assert.True(t, errors.IsKind(err, errors.KindNotTransferable))
}

func TestAcceptTransferExactlyOnce(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")

	tr := &models.TransferRequest{
		ID:        "tr1",
		TicketID:  "t1",
		Method:    models.TransferMethodEmail,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(models.TransferWindow),
	}
	require.NoError(t, s.CreateTransfer(ctx, tr))

	var wg sync.WaitGroup
	results := make([]error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			contact := fmt.Sprintf("claimer%d@example.com", i)
			_, _, results[i] = s.AcceptTransfer(ctx, "tr1", contact, time.Now())
		}(i)
	}
	wg.Wait()

	var won int
	for _, err := range results {
		if err == nil {
			won++
		} else {
			assert.True(t, errors.IsKind(err, errors.KindAlreadyAccepted))
		}
	}
	assert.Equal(t, 1, won)

	ticket, err := s.GetTicket(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusTransferred, ticket.Status)
	assert.NotEqual(t, "alice@example.com", ticket.OwnerContact)
}

func TestAcceptExpiredTransferMarksExpired(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")

	tr := &models.TransferRequest{
		ID:        "tr1",
		TicketID:  "t1",
		Method:    models.TransferMethodLink,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, s.CreateTransfer(ctx, tr))

	_, _, err := s.AcceptTransfer(ctx, "tr1", "bob@example.com", time.Now())
	assert.True(t, errors.IsKind(err, errors.KindTransferExpired))

	stored, _ := s.GetTransfer(ctx, "tr1")
	assert.Equal(t, models.TransferStatusExpired, stored.Status)

	// The slot is free again for a new transfer.
	again := &models.TransferRequest{
		ID:        "tr2",
		TicketID:  "t1",
		Method:    models.TransferMethodLink,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(models.TransferWindow),
	}
	assert.NoError(t, s.CreateTransfer(ctx, again))
}

func TestListingLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")

	listing := &models.ResaleListing{
		ID:            "l1",
		TicketID:      "t1",
		SellerContact: "alice@example.com",
		ListingPrice:  decimal.RequireFromString("60.00"),
		Status:        models.ListingStatusActive,
	}
	ticket, err := s.CreateListing(ctx, listing)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusListed, ticket.Status)

	// A listed ticket cannot open a transfer.
	tr := &models.TransferRequest{ID: "tr1", TicketID: "t1", Status: models.TransferStatusPending, ExpiresAt: time.Now().Add(time.Hour)}
	assert.True(t, errors.IsKind(s.CreateTransfer(ctx, tr), errors.KindNotTransferable))

	sold, ticket, err := s.PurchaseListing(ctx, "l1", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, sold.Status)
	assert.Equal(t, "bob@example.com", ticket.OwnerContact)
	assert.Equal(t, models.TicketStatusActive, ticket.Status)
	assert.Equal(t, 2, ticket.Epoch)

	// Face value is unchanged by resale.
	assert.True(t, ticket.FaceValue.Equal(decimal.RequireFromString("55.00")))

	// Second purchase loses.
	_, _, err = s.PurchaseListing(ctx, "l1", "carol@example.com")
	assert.True(t, errors.IsKind(err, errors.KindConcurrentModification))
}

func TestListingPriceCapEnforced(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com") // face value 55.00

	over := &models.ResaleListing{
		ID:            "l1",
		TicketID:      "t1",
		SellerContact: "alice@example.com",
		ListingPrice:  decimal.RequireFromString("60.51"), // cap is 60.50
		Status:        models.ListingStatusActive,
	}
	_, err := s.CreateListing(ctx, over)
	assert.True(t, errors.IsKind(err, errors.KindPriceCapExceeded))

	atCap := &models.ResaleListing{
		ID:            "l2",
		TicketID:      "t1",
		SellerContact: "alice@example.com",
		ListingPrice:  decimal.RequireFromString("60.50"),
		Status:        models.ListingStatusActive,
	}
	_, err = s.CreateListing(ctx, atCap)
	assert.NoError(t, err)
}

func TestRemoveListingSellerOnly(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")

	listing := &models.ResaleListing{
		ID:            "l1",
		TicketID:      "t1",
		SellerContact: "alice@example.com",
		ListingPrice:  decimal.RequireFromString("55.00"),
		Status:        models.ListingStatusActive,
	}
	_, err := s.CreateListing(ctx, listing)
	require.NoError(t, err)

	_, _, err = s.RemoveListing(ctx, "l1", "mallory@example.com")
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, ticket, err := s.RemoveListing(ctx, "l1", "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusActive, ticket.Status)
	assert.Equal(t, 1, ticket.Epoch)
}

func TestExpireTransfersSweep(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedTier(t, s, 10)
	seedTicket(t, s, "t1", "alice@example.com")
	seedTicket(t, s, "t2", "bob@example.com")

	past := &models.TransferRequest{ID: "tr1", TicketID: "t1", Method: models.TransferMethodLink, Status: models.TransferStatusPending, ExpiresAt: time.Now().Add(-time.Hour)}
	future := &models.TransferRequest{ID: "tr2", TicketID: "t2", Method: models.TransferMethodLink, Status: models.TransferStatusPending, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, s.CreateTransfer(ctx, past))
	require.NoError(t, s.CreateTransfer(ctx, future))

	expired, err := s.ExpireTransfers(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "tr1", expired[0].ID)

	still, _ := s.GetTransfer(ctx, "tr2")
	assert.Equal(t, models.TransferStatusPending, still.Status)
}
