package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lark/internal/errors"
	"lark/internal/models"
	"lark/internal/repository/memstore"
)

type fakeIndex struct {
	mu        sync.Mutex
	docs      map[string]models.ListingDoc
	searchErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]models.ListingDoc)}
}

func (f *fakeIndex) Index(ctx context.Context, doc *models.ListingDoc) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeIndex) Remove(ctx context.Context, listingID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, listingID)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, query string, page, pageSize int) ([]models.ListingDoc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var docs []models.ListingDoc
	for _, doc := range f.docs {
		docs = append(docs, doc)
	}
	return docs, nil
}

type mobilityFixture struct {
	store    *memstore.Store
	events   *recordingEvents
	notifier *recordingNotifier
	index    *fakeIndex
	svc      *MobilityService
}

func newMobilityFixture(t *testing.T) *mobilityFixture {
	t.Helper()
	f := &mobilityFixture{
		store:    memstore.New(),
		events:   &recordingEvents{},
		notifier: &recordingNotifier{},
		index:    newFakeIndex(),
	}
	f.svc = NewMobilityService(f.store, f.notifier, f.events, f.index, "")

	ctx := context.Background()
	tier := &models.TicketTier{
		ID:                "tier-1",
		Name:              "General Admission",
		UnitPrice:         decimal.RequireFromString("50.00"),
		ServiceFee:        decimal.RequireFromString("5.00"),
		TotalQuantity:     100,
		AvailableQuantity: 98,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, f.store.CreateTier(ctx, tier))

	order := &models.Order{
		ID:             "order-1",
		TierID:         "tier-1",
		BuyerName:      "Alice Smith",
		BuyerEmail:     "alice@example.com",
		Quantity:       1,
		IdempotencyKey: "key-1",
		Status:         models.OrderStatusConfirmed,
	}
	ticket := models.Ticket{
		ID:           "ticket-1",
		OrderID:      order.ID,
		TierID:       "tier-1",
		OwnerContact: "alice@example.com",
		FaceValue:    decimal.RequireFromString("55.00"),
		Status:       models.TicketStatusActive,
		Epoch:        1,
	}
	require.NoError(t, f.store.CreatePurchase(ctx, order, []models.Ticket{ticket}))
	return f
}

func TestInitiateTransferByEmail(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	result, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{
		Method:    models.TransferMethodEmail,
		ToContact: "bob@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusPending, result.Transfer.Status)
	assert.Equal(t, "alice@example.com", result.Transfer.FromOwner)
	require.NotNil(t, result.Transfer.ToContact)
	assert.Equal(t, "bob@example.com", *result.Transfer.ToContact)
	assert.WithinDuration(t, time.Now().Add(models.TransferWindow), result.Transfer.ExpiresAt, time.Minute)

	// The ticket stays usable by the sender while the transfer is pending.
	ticket, err := f.svc.GetTicket(ctx, "ticket-1")
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusActive, ticket.Status)
	assert.Equal(t, "alice@example.com", ticket.OwnerContact)

	assert.True(t, f.events.published(models.EventTransferInitiated))
}

func TestInitiateTransferByLink(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	result, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	require.NoError(t, err)
	require.NotNil(t, result.Transfer.LinkToken)
	assert.Nil(t, result.Transfer.ToContact)
}

func TestInitiateTransferValidation(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: "pigeon"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodEmail, ToContact: "not-an-email"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.InitiateTransfer(ctx, "missing", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestSecondTransferBlockedWhilePending(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	require.NoError(t, err)

	_, err = f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	assert.True(t, errors.IsKind(err, errors.KindNotTransferable))
}

func TestAcceptTransferByLink(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	initiated, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	require.NoError(t, err)

	_, err = f.svc.AcceptTransfer(ctx, initiated.Transfer.ID, &models.AcceptTransferRequest{
		Contact:   "bob@example.com",
		LinkToken: "wrong-token",
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	result, err := f.svc.AcceptTransfer(ctx, initiated.Transfer.ID, &models.AcceptTransferRequest{
		Contact:   "bob@example.com",
		LinkToken: *initiated.Transfer.LinkToken,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusAccepted, result.Transfer.Status)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, "bob@example.com", result.Ticket.OwnerContact)
	assert.Equal(t, models.TicketStatusTransferred, result.Ticket.Status)
	assert.Equal(t, 1, result.Ticket.Epoch)
	assert.True(t, f.events.published(models.EventTransferAccepted))

	// A second accept of the same transfer loses.
	_, err = f.svc.AcceptTransfer(ctx, initiated.Transfer.ID, &models.AcceptTransferRequest{
		Contact:   "carol@example.com",
		LinkToken: *initiated.Transfer.LinkToken,
	})
	assert.True(t, errors.IsKind(err, errors.KindAlreadyAccepted))
}

func TestAcceptExpiredTransfer(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	stale := &models.TransferRequest{
		ID:        "tr-stale",
		TicketID:  "ticket-1",
		Method:    models.TransferMethodEmail,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.store.CreateTransfer(ctx, stale))

	_, err := f.svc.AcceptTransfer(ctx, "tr-stale", &models.AcceptTransferRequest{Contact: "bob@example.com"})
	assert.True(t, errors.IsKind(err, errors.KindTransferExpired))
}

func TestCancelTransferSenderOnly(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	initiated, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	require.NoError(t, err)

	_, err = f.svc.CancelTransfer(ctx, initiated.Transfer.ID, &models.CancelTransferRequest{Requester: "mallory@example.com"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	result, err := f.svc.CancelTransfer(ctx, initiated.Transfer.ID, &models.CancelTransferRequest{Requester: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.TransferStatusCancelled, result.Transfer.Status)
	assert.True(t, f.events.published(models.EventTransferCancelled))

	// Cancelling frees the slot for a new transfer or listing.
	_, err = f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("55.00"),
		Seller: "alice@example.com",
	})
	assert.NoError(t, err)
}

func TestCreateListing(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	result, err := f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("60.50"), // exactly at the 110% cap
		Seller: "alice@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusActive, result.Listing.Status)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, models.TicketStatusListed, result.Ticket.Status)
	assert.True(t, f.events.published(models.EventListingCreated))

	doc, ok := f.index.docs[result.Listing.ID]
	require.True(t, ok)
	assert.Equal(t, "General Admission", doc.TierName)
	assert.Equal(t, "60.50", doc.Price)
	assert.Equal(t, "55.00", doc.FaceValue)

	// A listed ticket cannot open a transfer.
	_, err = f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	assert.True(t, errors.IsKind(err, errors.KindNotTransferable))
}

func TestCreateListingPriceChecks(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("-1.00"),
		Seller: "alice@example.com",
	})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("60.51"),
		Seller: "alice@example.com",
	})
	assert.True(t, errors.IsKind(err, errors.KindPriceCapExceeded))
}

func TestListingBlockedWhileTransferPending(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	_, err := f.svc.InitiateTransfer(ctx, "ticket-1", &models.InitiateTransferRequest{Method: models.TransferMethodLink})
	require.NoError(t, err)

	_, err = f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("55.00"),
		Seller: "alice@example.com",
	})
	assert.True(t, errors.IsKind(err, errors.KindNotTransferable))
}

func TestPurchaseListing(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("60.00"),
		Seller: "alice@example.com",
	})
	require.NoError(t, err)

	result, err := f.svc.PurchaseListing(ctx, created.Listing.ID, &models.PurchaseListingRequest{BuyerContact: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusSold, result.Listing.Status)
	require.NotNil(t, result.Ticket)
	assert.Equal(t, "bob@example.com", result.Ticket.OwnerContact)
	assert.Equal(t, models.TicketStatusActive, result.Ticket.Status)
	assert.Equal(t, 2, result.Ticket.Epoch)
	assert.True(t, result.Ticket.FaceValue.Equal(decimal.RequireFromString("55.00")))
	require.NotNil(t, result.PlatformFee)
	assert.True(t, result.PlatformFee.Equal(decimal.RequireFromString("3.00")))

	_, indexed := f.index.docs[created.Listing.ID]
	assert.False(t, indexed)
	assert.True(t, f.events.published(models.EventListingSold))

	// The new owner can relist, still capped by the original face value.
	_, err = f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("61.00"),
		Seller: "bob@example.com",
	})
	assert.True(t, errors.IsKind(err, errors.KindPriceCapExceeded))
}

func TestRemoveListingSellerOnly(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("55.00"),
		Seller: "alice@example.com",
	})
	require.NoError(t, err)

	_, err = f.svc.RemoveListing(ctx, created.Listing.ID, &models.RemoveListingRequest{Requester: "mallory@example.com"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	result, err := f.svc.RemoveListing(ctx, created.Listing.ID, &models.RemoveListingRequest{Requester: "alice@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.ListingStatusRemoved, result.Listing.Status)
	assert.Equal(t, models.TicketStatusActive, result.Ticket.Status)

	_, indexed := f.index.docs[created.Listing.ID]
	assert.False(t, indexed)
	assert.True(t, f.events.published(models.EventListingRemoved))
}

func TestBrowseListingsFallsBackToStore(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	created, err := f.svc.CreateListing(ctx, "ticket-1", &models.CreateListingRequest{
		Price:  decimal.RequireFromString("55.00"),
		Seller: "alice@example.com",
	})
	require.NoError(t, err)

	docs, err := f.svc.BrowseListings(ctx, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, created.Listing.ID, docs[0].ID)

	f.index.searchErr = assert.AnError
	docs, err = f.svc.BrowseListings(ctx, "", 1, 20)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, created.Listing.ID, docs[0].ID)
}

func TestExpireTransfersSweepPublishesEvents(t *testing.T) {
	f := newMobilityFixture(t)
	ctx := context.Background()

	stale := &models.TransferRequest{
		ID:        "tr-stale",
		TicketID:  "ticket-1",
		Method:    models.TransferMethodLink,
		Status:    models.TransferStatusPending,
		ExpiresAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, f.store.CreateTransfer(ctx, stale))

	count, err := f.svc.ExpireTransfers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.True(t, f.events.published(models.EventTransferExpired))

	count, err = f.svc.ExpireTransfers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
