package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lark/internal/errors"
	"lark/internal/logger"
	"lark/internal/models"
	"lark/internal/monitoring"
	"lark/internal/validation"
)

// CheckoutService drives a buyer through selection, contact, payment and
// review, and turns the reviewed cart into a confirmed order with minted
// tickets. Everything before confirmation lives in an in-memory session;
// walking away leaves no trace.
type CheckoutService struct {
	store    Store
	gateway  PaymentGateway
	notifier Notifier
	events   EventPublisher
	sessions *sessionStore
}

func NewCheckoutService(store Store, gateway PaymentGateway, notifier Notifier, events EventPublisher, sessionTTL time.Duration) *CheckoutService {
	return &CheckoutService{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
		events:   events,
		sessions: newSessionStore(sessionTTL),
	}
}

func (s *CheckoutService) Close() {
	s.sessions.Close()
}

// Start opens a checkout session. When the buyer's identity is already
// established upstream, the contact step is skipped and the session is
// prefilled from it.
func (s *CheckoutService) Start(ctx context.Context, buyerName, buyerEmail string) *models.CheckoutResponse {
	now := time.Now()
	sess := &CheckoutSession{
		ID:            uuid.New().String(),
		Step:          StepSelection,
		BuyerName:     buyerName,
		BuyerEmail:    buyerEmail,
		Authenticated: buyerEmail != "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.sessions.Put(sess)

	return &models.CheckoutResponse{SessionID: sess.ID, Step: sess.Step}
}

// SubmitSelection validates the tier and quantity and advances to contact,
// or straight to payment for an established buyer identity.
func (s *CheckoutService) SubmitSelection(ctx context.Context, req *models.SelectionRequest) (*models.CheckoutResponse, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepSelection {
		return nil, errors.Newf(errors.KindValidation, "checkout is past selection (current step: %s)", sess.Step)
	}

	tier, err := s.store.GetTier(ctx, req.TierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	if tier == nil {
		return nil, errors.New(errors.KindNotFound, "ticket tier not found")
	}

	if tier.AvailableQuantity == 0 {
		return nil, errors.Newf(errors.KindSoldOut, "%s is sold out", tier.Name)
	}

	max := models.MaxTicketsPerOrder
	if tier.AvailableQuantity < max {
		max = tier.AvailableQuantity
	}
	if req.Quantity < 1 || req.Quantity > max {
		return nil, errors.Newf(errors.KindValidation, "quantity must be between 1 and %d", max)
	}

	sess.TierID = tier.ID
	sess.Quantity = req.Quantity
	if sess.Authenticated {
		sess.Step = StepPayment
	} else {
		sess.Step = StepContact
	}
	sess.UpdatedAt = time.Now()

	return &models.CheckoutResponse{SessionID: sess.ID, Step: sess.Step}, nil
}

// SubmitContact collects buyer contact details and advances to payment.
func (s *CheckoutService) SubmitContact(ctx context.Context, req *models.ContactRequest) (*models.CheckoutResponse, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepContact {
		return nil, errors.Newf(errors.KindValidation, "checkout is not at the contact step (current step: %s)", sess.Step)
	}

	if err := validation.Name(req.Name); err != nil {
		return nil, err
	}
	if err := validation.Email(req.Email); err != nil {
		return nil, err
	}
	if req.CreateAccount {
		if err := validation.Password(req.Password); err != nil {
			return nil, err
		}
	}

	sess.BuyerName = req.Name
	sess.BuyerEmail = req.Email
	sess.Step = StepPayment
	sess.UpdatedAt = time.Now()

	return &models.CheckoutResponse{SessionID: sess.ID, Step: sess.Step}, nil
}

// SubmitPayment records the payment method and advances to review. Card
// details are format-checked only and never retained; tokenization belongs
// to the gateway.
func (s *CheckoutService) SubmitPayment(ctx context.Context, req *models.PaymentRequest) (*models.CheckoutResponse, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step != StepPayment {
		return nil, errors.Newf(errors.KindValidation, "checkout is not at the payment step (current step: %s)", sess.Step)
	}

	switch req.Method {
	case models.PaymentMethodCard:
		if err := validation.Card(req.CardNumber, req.CardExpiry, req.CardCVC); err != nil {
			return nil, err
		}
	case models.PaymentMethodApplePay, models.PaymentMethodGooglePay:
		// Wallet tokens are collected by the gateway's own sheet.
	default:
		return nil, errors.Newf(errors.KindValidation, "unsupported payment method %q", req.Method)
	}

	sess.PaymentMethod = req.Method
	sess.Step = StepReview
	sess.UpdatedAt = time.Now()

	return &models.CheckoutResponse{SessionID: sess.ID, Step: sess.Step}, nil
}

// Confirm charges the gateway and, on success, atomically decrements tier
// availability, creates the order and mints one ticket per unit. Inventory
// is reserved before the charge and released again on a decline, so a
// declined buyer never holds units and a sold-out buyer is never charged.
// The idempotency key makes retries return the original order.
func (s *CheckoutService) Confirm(ctx context.Context, req *models.ReviewRequest) (*models.CheckoutResponse, error) {
	sess, err := s.sessions.Get(req.SessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.Step == StepConfirmed {
		return s.confirmedResponse(ctx, sess)
	}
	if sess.Step != StepReview {
		return nil, errors.Newf(errors.KindValidation, "checkout is not at the review step (current step: %s)", sess.Step)
	}
	if !req.AgreeTerms || !req.AgreeRefundPolicy {
		return nil, errors.New(errors.KindValidation, "you must agree to the terms of sale and the refund policy")
	}

	// Replay of an already-processed key, possibly from before a restart.
	prior, err := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if prior != nil {
		sess.Step = StepConfirmed
		sess.OrderID = prior.ID
		sess.UpdatedAt = time.Now()
		return s.confirmedResponse(ctx, sess)
	}

	tier, err := s.store.GetTier(ctx, sess.TierID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tier: %w", err)
	}
	if tier == nil {
		return nil, errors.New(errors.KindNotFound, "ticket tier not found")
	}

	// Snapshot prices at purchase time.
	unitPrice := tier.UnitPrice
	serviceFee := tier.ServiceFee
	faceValue := unitPrice.Add(serviceFee)
	total := faceValue.Mul(decimal.NewFromInt(int64(sess.Quantity)))

	if err := s.store.ReserveInventory(ctx, sess.TierID, sess.Quantity); err != nil {
		monitoring.RecordCheckout("sold_out")
		return nil, err
	}

	chargeStart := time.Now()
	paymentRef, err := s.gateway.Charge(ctx, total, sess.PaymentMethod, req.IdempotencyKey)
	monitoring.ObserveChargeDuration(time.Since(chargeStart))
	if err != nil {
		if relErr := s.store.ReleaseInventory(ctx, sess.TierID, sess.Quantity); relErr != nil {
			logger.WithContext(ctx).Error("Failed to release inventory after declined charge",
				"error", relErr, "tier_id", sess.TierID, "quantity", sess.Quantity)
		}
		monitoring.RecordCheckout("declined")
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:             uuid.New().String(),
		TierID:         sess.TierID,
		BuyerName:      sess.BuyerName,
		BuyerEmail:     sess.BuyerEmail,
		Quantity:       sess.Quantity,
		UnitPrice:      unitPrice,
		ServiceFee:     serviceFee,
		TotalPaid:      total,
		PaymentRef:     paymentRef,
		IdempotencyKey: req.IdempotencyKey,
		Status:         models.OrderStatusConfirmed,
		CreatedAt:      now,
	}

	tickets := make([]models.Ticket, sess.Quantity)
	for i := range tickets {
		tickets[i] = models.Ticket{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			TierID:       sess.TierID,
			OwnerContact: sess.BuyerEmail,
			FaceValue:    faceValue,
			Status:       models.TicketStatusActive,
			Epoch:        1,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	if err := s.store.CreatePurchase(ctx, order, tickets); err != nil {
		if relErr := s.store.ReleaseInventory(ctx, sess.TierID, sess.Quantity); relErr != nil {
			logger.WithContext(ctx).Error("Failed to release inventory after failed purchase write",
				"error", relErr, "tier_id", sess.TierID)
		}
		if errors.IsKind(err, errors.KindConcurrentModification) {
			// The same key was committed by a concurrent attempt; hand
			// back the original order instead of double-charging.
			prior, lookupErr := s.store.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
			if lookupErr == nil && prior != nil {
				sess.Step = StepConfirmed
				sess.OrderID = prior.ID
				sess.UpdatedAt = time.Now()
				return s.confirmedResponse(ctx, sess)
			}
		}
		logger.WithContext(ctx).Error("Failed to persist purchase after successful charge",
			"error", err, "payment_ref", paymentRef, "idempotency_key", req.IdempotencyKey)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	sess.Step = StepConfirmed
	sess.OrderID = order.ID
	sess.UpdatedAt = now

	monitoring.RecordCheckout("confirmed")
	monitoring.RecordTicketsIssued(len(tickets))

	if s.events != nil {
		event := models.OrderConfirmedEvent{
			OrderID:    order.ID,
			TierID:     order.TierID,
			BuyerEmail: order.BuyerEmail,
			Quantity:   order.Quantity,
			TotalPaid:  order.TotalPaid.StringFixed(2),
			Timestamp:  now,
		}
		if err := s.events.Publish(models.EventOrderConfirmed, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish order confirmed event",
				"error", err, "order_id", order.ID, "event_type", models.EventOrderConfirmed)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.SendOrderConfirmation(ctx, order.BuyerEmail, order.ID); err != nil {
			// Fire-and-forget: a lost email never unwinds a paid order.
			logger.WithContext(ctx).Error("Failed to send order confirmation",
				"error", err, "order_id", order.ID)
		}
	}

	return &models.CheckoutResponse{
		SessionID: sess.ID,
		Step:      sess.Step,
		Order:     &models.OrderWithTickets{Order: *order, Tickets: tickets},
	}, nil
}

// Abandon discards the session. Nothing was persisted, so there is nothing
// else to undo.
func (s *CheckoutService) Abandon(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.Step == StepConfirmed {
		sess.mu.Unlock()
		return errors.New(errors.KindValidation, "this checkout has already been confirmed")
	}
	sess.Step = StepAbandoned
	sess.mu.Unlock()

	s.sessions.Delete(sessionID)
	monitoring.RecordCheckout("abandoned")
	return nil
}

// GetOrder returns a confirmed order with its tickets.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID string) (*models.OrderWithTickets, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, errors.New(errors.KindNotFound, "order not found")
	}
	tickets, err := s.store.GetOrderTickets(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order tickets: %w", err)
	}
	return &models.OrderWithTickets{Order: *order, Tickets: tickets}, nil
}

// confirmedResponse rebuilds the terminal response for a session that has
// already produced an order. Caller holds the session lock.
func (s *CheckoutService) confirmedResponse(ctx context.Context, sess *CheckoutSession) (*models.CheckoutResponse, error) {
	order, err := s.GetOrder(ctx, sess.OrderID)
	if err != nil {
		return nil, err
	}
	return &models.CheckoutResponse{SessionID: sess.ID, Step: StepConfirmed, Order: order}, nil
}
