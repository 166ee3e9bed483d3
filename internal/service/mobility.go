package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"lark/internal/errors"
	"lark/internal/logger"
	"lark/internal/models"
	"lark/internal/monitoring"
	"lark/internal/validation"
)

// MobilityService enforces post-purchase ticket movement: free transfers
// with a 7-day claim window and capped resale listings. It never creates new
// face-value inventory; it only re-assigns or re-offers tickets the checkout
// engine already issued.
type MobilityService struct {
	store     Store
	notifier  Notifier
	events    EventPublisher
	index     ListingIndex
	claimBase string
}

func NewMobilityService(store Store, notifier Notifier, events EventPublisher, index ListingIndex, claimBase string) *MobilityService {
	if claimBase == "" {
		claimBase = "https://lark.tickets/claim"
	}
	return &MobilityService{
		store:     store,
		notifier:  notifier,
		events:    events,
		index:     index,
		claimBase: claimBase,
	}
}

// InitiateTransfer opens a pending transfer for an active ticket. The
// ticket stays usable by the current owner until the recipient accepts; the
// request expires after 7 days.
func (s *MobilityService) InitiateTransfer(ctx context.Context, ticketID string, req *models.InitiateTransferRequest) (*models.TransferResult, error) {
	transfer := &models.TransferRequest{
		ID:       uuid.New().String(),
		TicketID: ticketID,
		Method:   req.Method,
		Status:   models.TransferStatusPending,
	}

	switch req.Method {
	case models.TransferMethodEmail:
		if err := validation.Email(req.ToContact); err != nil {
			return nil, err
		}
		to := req.ToContact
		transfer.ToContact = &to
	case models.TransferMethodLink:
		token := uuid.New().String()
		transfer.LinkToken = &token
	default:
		return nil, errors.Newf(errors.KindValidation, "transfer method must be %q or %q",
			models.TransferMethodEmail, models.TransferMethodLink)
	}

	now := time.Now()
	transfer.CreatedAt = now
	transfer.ExpiresAt = now.Add(models.TransferWindow)
	transfer.UpdatedAt = now

	if err := s.store.CreateTransfer(ctx, transfer); err != nil {
		return nil, err
	}

	monitoring.RecordTransfer("initiate")
	s.publish(ctx, models.EventTransferInitiated, models.TransferInitiatedEvent{
		TransferID: transfer.ID,
		TicketID:   transfer.TicketID,
		Method:     transfer.Method,
		ToContact:  transfer.ToContact,
		ClaimLink:  s.claimLink(transfer),
		ExpiresAt:  transfer.ExpiresAt,
		Timestamp:  now,
	})

	return &models.TransferResult{Transfer: *transfer}, nil
}

// AcceptTransfer claims a pending transfer: ownership moves to the
// accepting contact exactly once, and the ticket becomes TRANSFERRED.
func (s *MobilityService) AcceptTransfer(ctx context.Context, transferID string, req *models.AcceptTransferRequest) (*models.TransferResult, error) {
	if err := validation.Email(req.Contact); err != nil {
		return nil, err
	}

	existing, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}
	if existing == nil {
		return nil, errors.New(errors.KindNotFound, "transfer not found")
	}
	if existing.Method == models.TransferMethodLink {
		if existing.LinkToken == nil || req.LinkToken != *existing.LinkToken {
			return nil, errors.New(errors.KindValidation, "invalid or missing claim token")
		}
	}

	transfer, ticket, err := s.store.AcceptTransfer(ctx, transferID, req.Contact, time.Now())
	if err != nil {
		return nil, err
	}

	monitoring.RecordTransfer("accept")
	s.publish(ctx, models.EventTransferAccepted, models.TransferAcceptedEvent{
		TransferID: transfer.ID,
		TicketID:   transfer.TicketID,
		NewOwner:   req.Contact,
		Timestamp:  time.Now(),
	})

	return &models.TransferResult{Transfer: *transfer, Ticket: ticket}, nil
}

// CancelTransfer withdraws a pending transfer; sender only. The ticket was
// never blocked, so it simply stays active.
func (s *MobilityService) CancelTransfer(ctx context.Context, transferID string, req *models.CancelTransferRequest) (*models.TransferResult, error) {
	transfer, err := s.store.CancelTransfer(ctx, transferID, req.Requester)
	if err != nil {
		return nil, err
	}

	monitoring.RecordTransfer("cancel")
	s.publish(ctx, models.EventTransferCancelled, models.TransferCancelledEvent{
		TransferID: transfer.ID,
		TicketID:   transfer.TicketID,
		Timestamp:  time.Now(),
	})

	return &models.TransferResult{Transfer: *transfer}, nil
}

// CreateListing puts an active ticket on the resale marketplace at a price
// within the 110% cap. The cap is enforced against the face value fixed at
// original issuance, inside the store's critical section.
func (s *MobilityService) CreateListing(ctx context.Context, ticketID string, req *models.CreateListingRequest) (*models.ListingResult, error) {
	if req.Price.IsNegative() {
		return nil, errors.New(errors.KindValidation, "listing price cannot be negative")
	}

	now := time.Now()
	listing := &models.ResaleListing{
		ID:            uuid.New().String(),
		TicketID:      ticketID,
		SellerContact: req.Seller,
		ListingPrice:  req.Price,
		Status:        models.ListingStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ticket, err := s.store.CreateListing(ctx, listing)
	if err != nil {
		return nil, err
	}

	monitoring.RecordListing("create")
	s.indexListing(ctx, listing, ticket)
	s.publish(ctx, models.EventListingCreated, models.ListingCreatedEvent{
		ListingID: listing.ID,
		TicketID:  listing.TicketID,
		Price:     listing.ListingPrice.StringFixed(2),
		Timestamp: now,
	})

	return &models.ListingResult{Listing: *listing, Ticket: ticket}, nil
}

// PurchaseListing transacts an active listing: ownership moves to the
// buyer, the ticket starts a new ownership epoch as ACTIVE, and the 5%
// platform fee is derived for the response.
func (s *MobilityService) PurchaseListing(ctx context.Context, listingID string, req *models.PurchaseListingRequest) (*models.ListingResult, error) {
	if err := validation.Email(req.BuyerContact); err != nil {
		return nil, err
	}

	listing, ticket, err := s.store.PurchaseListing(ctx, listingID, req.BuyerContact)
	if err != nil {
		return nil, err
	}

	fee := models.PlatformFee(listing.ListingPrice)
	monitoring.RecordListing("purchase")
	s.removeFromIndex(ctx, listing.ID)
	s.publish(ctx, models.EventListingSold, models.ListingSoldEvent{
		ListingID:    listing.ID,
		TicketID:     listing.TicketID,
		BuyerContact: req.BuyerContact,
		Price:        listing.ListingPrice.StringFixed(2),
		PlatformFee:  fee.StringFixed(2),
		Timestamp:    time.Now(),
	})

	return &models.ListingResult{Listing: *listing, Ticket: ticket, PlatformFee: &fee}, nil
}

// RemoveListing takes a listing off the marketplace; seller only. The
// ticket reverts to ACTIVE.
func (s *MobilityService) RemoveListing(ctx context.Context, listingID string, req *models.RemoveListingRequest) (*models.ListingResult, error) {
	listing, ticket, err := s.store.RemoveListing(ctx, listingID, req.Requester)
	if err != nil {
		return nil, err
	}

	monitoring.RecordListing("remove")
	s.removeFromIndex(ctx, listing.ID)
	s.publish(ctx, models.EventListingRemoved, models.ListingRemovedEvent{
		ListingID: listing.ID,
		TicketID:  listing.TicketID,
		Timestamp: time.Now(),
	})

	return &models.ListingResult{Listing: *listing, Ticket: ticket}, nil
}

// BrowseListings serves the marketplace view from the search index, falling
// back to the store when the index is unavailable.
func (s *MobilityService) BrowseListings(ctx context.Context, query string, page, pageSize int) ([]models.ListingDoc, error) {
	if s.index != nil {
		docs, err := s.index.Search(ctx, query, page, pageSize)
		if err == nil {
			return docs, nil
		}
		logger.WithContext(ctx).Error("Listing index search failed, falling back to store", "error", err)
	}

	listings, err := s.store.ListActiveListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active listings: %w", err)
	}
	docs := make([]models.ListingDoc, len(listings))
	for i, l := range listings {
		docs[i] = models.ListingDoc{
			ID:            l.ID,
			TicketID:      l.TicketID,
			Price:         l.ListingPrice.StringFixed(2),
			SellerContact: l.SellerContact,
			CreatedAt:     l.CreatedAt.Format(time.RFC3339),
		}
	}
	return docs, nil
}

// ExpireTransfers reclaims the outstanding-offer slot for pending transfers
// past their claim window. Run periodically by the consumers binary; the
// accept path also checks expiry lazily, so the sweep is housekeeping, not
// correctness.
func (s *MobilityService) ExpireTransfers(ctx context.Context) (int, error) {
	expired, err := s.store.ExpireTransfers(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to expire transfers: %w", err)
	}

	for _, transfer := range expired {
		monitoring.RecordTransfer("expire")
		s.publish(ctx, models.EventTransferExpired, models.TransferExpiredEvent{
			TransferID: transfer.ID,
			TicketID:   transfer.TicketID,
			Timestamp:  time.Now(),
		})
	}

	return len(expired), nil
}

// GetTicket returns a single ticket.
func (s *MobilityService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	if ticket == nil {
		return nil, errors.New(errors.KindNotFound, "ticket not found")
	}
	return ticket, nil
}

func (s *MobilityService) claimLink(transfer *models.TransferRequest) string {
	if transfer.LinkToken != nil {
		return fmt.Sprintf("%s/%s?token=%s", s.claimBase, transfer.ID, *transfer.LinkToken)
	}
	return fmt.Sprintf("%s/%s", s.claimBase, transfer.ID)
}

func (s *MobilityService) publish(ctx context.Context, subject string, data interface{}) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		logger.WithContext(ctx).Error("Failed to publish event",
			"error", err, "event_type", subject)
	}
}

func (s *MobilityService) indexListing(ctx context.Context, listing *models.ResaleListing, ticket *models.Ticket) {
	if s.index == nil || ticket == nil {
		return
	}

	doc := &models.ListingDoc{
		ID:            listing.ID,
		TicketID:      listing.TicketID,
		Price:         listing.ListingPrice.StringFixed(2),
		FaceValue:     ticket.FaceValue.StringFixed(2),
		SellerContact: listing.SellerContact,
		CreatedAt:     listing.CreatedAt.Format(time.RFC3339),
	}
	if tier, err := s.store.GetTier(ctx, ticket.TierID); err == nil && tier != nil {
		doc.TierName = tier.Name
	}

	if err := s.index.Index(ctx, doc); err != nil {
		logger.WithContext(ctx).Error("Failed to index listing", "error", err, "listing_id", listing.ID)
	}
}

func (s *MobilityService) removeFromIndex(ctx context.Context, listingID string) {
	if s.index == nil {
		return
	}
	if err := s.index.Remove(ctx, listingID); err != nil {
		logger.WithContext(ctx).Error("Failed to remove listing from index", "error", err, "listing_id", listingID)
	}
}
