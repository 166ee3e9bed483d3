// Package memstore is an in-memory implementation of the service store,
// used by unit tests and the memory backend for local development. A single
// mutex serializes every operation, which gives the same atomicity the
// Postgres implementation gets from row locks.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"lark/internal/errors"
	"lark/internal/models"
)

type Store struct {
	mu        sync.Mutex
	tiers     map[string]*models.TicketTier
	orders    map[string]*models.Order
	ordersKey map[string]string // idempotency key -> order id
	tickets   map[string]*models.Ticket
	transfers map[string]*models.TransferRequest
	listings  map[string]*models.ResaleListing
}

func New() *Store {
	return &Store{
		tiers:     make(map[string]*models.TicketTier),
		orders:    make(map[string]*models.Order),
		ordersKey: make(map[string]string),
		tickets:   make(map[string]*models.Ticket),
		transfers: make(map[string]*models.TransferRequest),
		listings:  make(map[string]*models.ResaleListing),
	}
}

func (s *Store) CreateTier(ctx context.Context, tier *models.TicketTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tier
	s.tiers[tier.ID] = &cp
	return nil
}

func (s *Store) GetTier(ctx context.Context, id string) (*models.TicketTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiers[id]
	if !ok {
		return nil, nil
	}
	cp := *tier
	return &cp, nil
}

func (s *Store) ListTiers(ctx context.Context) ([]models.TicketTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tiers := make([]models.TicketTier, 0, len(s.tiers))
	for _, tier := range s.tiers {
		tiers = append(tiers, *tier)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].CreatedAt.Before(tiers[j].CreatedAt) })
	return tiers, nil
}

func (s *Store) ReserveInventory(ctx context.Context, tierID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiers[tierID]
	if !ok {
		return errors.New(errors.KindNotFound, "tier not found")
	}
	if tier.AvailableQuantity < qty {
		return errors.New(errors.KindSoldOut, "not enough tickets remaining in this tier")
	}
	tier.AvailableQuantity -= qty
	tier.UpdatedAt = time.Now()
	return nil
}

func (s *Store) ReleaseInventory(ctx context.Context, tierID string, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tier, ok := s.tiers[tierID]
	if !ok {
		return errors.New(errors.KindNotFound, "tier not found")
	}
	tier.AvailableQuantity += qty
	if tier.AvailableQuantity > tier.TotalQuantity {
		tier.AvailableQuantity = tier.TotalQuantity
	}
	tier.UpdatedAt = time.Now()
	return nil
}

func (s *Store) CreatePurchase(ctx context.Context, order *models.Order, tickets []models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ordersKey[order.IdempotencyKey]; exists {
		return errors.New(errors.KindConcurrentModification, "an order with this idempotency key already exists")
	}

	cp := *order
	s.orders[order.ID] = &cp
	s.ordersKey[order.IdempotencyKey] = order.ID
	for i := range tickets {
		t := tickets[i]
		s.tickets[t.ID] = &t
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *order
	return &cp, nil
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.ordersKey[key]
	if !ok {
		return nil, nil
	}
	cp := *s.orders[id]
	return &cp, nil
}

func (s *Store) GetOrderTickets(ctx context.Context, orderID string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tickets []models.Ticket
	for _, t := range s.tickets {
		if t.OrderID == orderID {
			tickets = append(tickets, *t)
		}
	}
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].ID < tickets[j].ID })
	return tickets, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[id]
	if !ok {
		return nil, nil
	}
	cp := *ticket
	return &cp, nil
}

func (s *Store) CreateTransfer(ctx context.Context, transfer *models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[transfer.TicketID]
	if !ok {
		return errors.New(errors.KindNotFound, "ticket not found")
	}
	if err := ticket.CheckTransferable(); err != nil {
		return err
	}
	if s.pendingTransferLocked(transfer.TicketID) != nil {
		return errors.New(errors.KindNotTransferable, "this ticket already has a pending transfer")
	}

	transfer.FromOwner = ticket.OwnerContact
	cp := *transfer
	s.transfers[transfer.ID] = &cp
	return nil
}

func (s *Store) GetTransfer(ctx context.Context, id string) (*models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, nil
	}
	cp := *transfer
	return &cp, nil
}

func (s *Store) AcceptTransfer(ctx context.Context, id, acceptingContact string, now time.Time) (*models.TransferRequest, *models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "transfer not found")
	}
	if transfer.Expired(now) {
		transfer.Status = models.TransferStatusExpired
		transfer.UpdatedAt = now
		return nil, nil, errors.New(errors.KindTransferExpired, "this transfer has expired")
	}
	if err := transfer.CheckAcceptable(now); err != nil {
		return nil, nil, err
	}

	ticket, ok := s.tickets[transfer.TicketID]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "ticket not found")
	}

	transfer.Status = models.TransferStatusAccepted
	transfer.AcceptedBy = &acceptingContact
	transfer.UpdatedAt = now
	ticket.OwnerContact = acceptingContact
	ticket.Status = models.TicketStatusTransferred
	ticket.UpdatedAt = now

	trCopy := *transfer
	tkCopy := *ticket
	return &trCopy, &tkCopy, nil
}

func (s *Store) CancelTransfer(ctx context.Context, id, requester string) (*models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "transfer not found")
	}
	if transfer.FromOwner != requester {
		return nil, errors.New(errors.KindValidation, "only the sender can cancel a transfer")
	}
	if err := transfer.CheckAcceptable(time.Now()); err != nil {
		return nil, err
	}

	transfer.Status = models.TransferStatusCancelled
	transfer.UpdatedAt = time.Now()
	cp := *transfer
	return &cp, nil
}

func (s *Store) ExpireTransfers(ctx context.Context, now time.Time) ([]models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []models.TransferRequest
	for _, transfer := range s.transfers {
		if transfer.Expired(now) {
			transfer.Status = models.TransferStatusExpired
			transfer.UpdatedAt = now
			expired = append(expired, *transfer)
		}
	}
	return expired, nil
}

func (s *Store) CreateListing(ctx context.Context, listing *models.ResaleListing) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[listing.TicketID]
	if !ok {
		return nil, errors.New(errors.KindNotFound, "ticket not found")
	}
	if err := ticket.CheckListable(); err != nil {
		return nil, err
	}
	if s.pendingTransferLocked(listing.TicketID) != nil {
		return nil, errors.New(errors.KindNotTransferable, "this ticket has a pending transfer; cancel it before listing")
	}
	if err := models.CheckListingPrice(listing.ListingPrice, ticket.FaceValue); err != nil {
		return nil, err
	}

	cp := *listing
	s.listings[listing.ID] = &cp
	ticket.Status = models.TicketStatusListed
	ticket.UpdatedAt = time.Now()

	tkCopy := *ticket
	return &tkCopy, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*models.ResaleListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *listing
	return &cp, nil
}

func (s *Store) PurchaseListing(ctx context.Context, id, buyerContact string) (*models.ResaleListing, *models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "listing not found")
	}
	if err := checkListingActive(listing); err != nil {
		return nil, nil, err
	}

	ticket, ok := s.tickets[listing.TicketID]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "ticket not found")
	}

	now := time.Now()
	listing.Status = models.ListingStatusSold
	listing.BuyerContact = &buyerContact
	listing.UpdatedAt = now
	ticket.OwnerContact = buyerContact
	ticket.Status = models.TicketStatusActive
	ticket.Epoch++
	ticket.UpdatedAt = now

	lsCopy := *listing
	tkCopy := *ticket
	return &lsCopy, &tkCopy, nil
}

func (s *Store) RemoveListing(ctx context.Context, id, requester string) (*models.ResaleListing, *models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	listing, ok := s.listings[id]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "listing not found")
	}
	if listing.SellerContact != requester {
		return nil, nil, errors.New(errors.KindValidation, "only the seller can remove a listing")
	}
	if err := checkListingActive(listing); err != nil {
		return nil, nil, err
	}

	ticket, ok := s.tickets[listing.TicketID]
	if !ok {
		return nil, nil, errors.New(errors.KindNotFound, "ticket not found")
	}

	now := time.Now()
	listing.Status = models.ListingStatusRemoved
	listing.UpdatedAt = now
	ticket.Status = models.TicketStatusActive
	ticket.UpdatedAt = now

	lsCopy := *listing
	tkCopy := *ticket
	return &lsCopy, &tkCopy, nil
}

func (s *Store) ListActiveListings(ctx context.Context) ([]models.ResaleListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var listings []models.ResaleListing
	for _, listing := range s.listings {
		if listing.Status == models.ListingStatusActive {
			listings = append(listings, *listing)
		}
	}
	sort.Slice(listings, func(i, j int) bool { return listings[i].CreatedAt.After(listings[j].CreatedAt) })
	return listings, nil
}

func (s *Store) pendingTransferLocked(ticketID string) *models.TransferRequest {
	for _, transfer := range s.transfers {
		if transfer.TicketID == ticketID && transfer.Status == models.TransferStatusPending {
			return transfer
		}
	}
	return nil
}

func checkListingActive(listing *models.ResaleListing) error {
	switch listing.Status {
	case models.ListingStatusActive:
		return nil
	case models.ListingStatusSold:
		return errors.New(errors.KindConcurrentModification, "this listing has already been sold")
	default:
		return errors.New(errors.KindNotFound, "this listing is no longer available")
	}
}
