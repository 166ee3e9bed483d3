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

type fakeGateway struct {
	mu          sync.Mutex
	charges     int
	declineNext bool
}

func (g *fakeGateway) Charge(ctx context.Context, amount decimal.Decimal, method, idempotencyKey string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.declineNext {
		g.declineNext = false
		return "", errors.New(errors.KindPaymentDeclined, "the card was declined")
	}
	g.charges++
	return "ref-" + idempotencyKey, nil
}

type recordingEvents struct {
	mu       sync.Mutex
	subjects []string
}

func (e *recordingEvents) Publish(subject string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subjects = append(e.subjects, subject)
	return nil
}

func (e *recordingEvents) published(subject string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range e.subjects {
		if s == subject {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu            sync.Mutex
	confirmations []string
	invites       []string
}

func (n *recordingNotifier) SendOrderConfirmation(ctx context.Context, contact, orderID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations = append(n.confirmations, contact)
	return nil
}

func (n *recordingNotifier) SendTransferInvite(ctx context.Context, email, transferLink string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invites = append(n.invites, email)
	return nil
}

type checkoutFixture struct {
	store    *memstore.Store
	gateway  *fakeGateway
	events   *recordingEvents
	notifier *recordingNotifier
	svc      *CheckoutService
}

func newCheckoutFixture(t *testing.T, available int) *checkoutFixture {
	t.Helper()
	f := &checkoutFixture{
		store:    memstore.New(),
		gateway:  &fakeGateway{},
		events:   &recordingEvents{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewCheckoutService(f.store, f.gateway, f.notifier, f.events, time.Minute)
	t.Cleanup(f.svc.Close)

	tier := &models.TicketTier{
		ID:                "tier-1",
		Name:              "General Admission",
		UnitPrice:         decimal.RequireFromString("50.00"),
		ServiceFee:        decimal.RequireFromString("5.00"),
		TotalQuantity:     available,
		AvailableQuantity: available,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, f.store.CreateTier(context.Background(), tier))
	return f
}

// walkToReview advances a fresh anonymous session to the review step.
func (f *checkoutFixture) walkToReview(t *testing.T, qty int) string {
	t.Helper()
	ctx := context.Background()

	resp := f.svc.Start(ctx, "", "")
	require.Equal(t, StepSelection, resp.Step)

	resp, err := f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: resp.SessionID, TierID: "tier-1", Quantity: qty})
	require.NoError(t, err)
	require.Equal(t, StepContact, resp.Step)

	resp, err = f.svc.SubmitContact(ctx, &models.ContactRequest{SessionID: resp.SessionID, Name: "Alice Smith", Email: "alice@example.com"})
	require.NoError(t, err)
	require.Equal(t, StepPayment, resp.Step)

	resp, err = f.svc.SubmitPayment(ctx, &models.PaymentRequest{
		SessionID:  resp.SessionID,
		Method:     models.PaymentMethodCard,
		CardNumber: "4242424242424242",
		CardExpiry: "12/30",
		CardCVC:    "123",
	})
	require.NoError(t, err)
	require.Equal(t, StepReview, resp.Step)
	return resp.SessionID
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 2)

	resp, err := f.svc.Confirm(ctx, &models.ReviewRequest{
		SessionID:         sessionID,
		AgreeTerms:        true,
		AgreeRefundPolicy: true,
		IdempotencyKey:    "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, StepConfirmed, resp.Step)
	require.NotNil(t, resp.Order)
	assert.Equal(t, models.OrderStatusConfirmed, resp.Order.Status)
	assert.Equal(t, "alice@example.com", resp.Order.BuyerEmail)
	assert.True(t, resp.Order.TotalPaid.Equal(decimal.RequireFromString("110.00")))
	require.Len(t, resp.Order.Tickets, 2)
	for _, ticket := range resp.Order.Tickets {
		assert.Equal(t, models.TicketStatusActive, ticket.Status)
		assert.Equal(t, 1, ticket.Epoch)
		assert.True(t, ticket.FaceValue.Equal(decimal.RequireFromString("55.00")))
		assert.Equal(t, "alice@example.com", ticket.OwnerContact)
	}

	tier, err := f.store.GetTier(ctx, "tier-1")
	require.NoError(t, err)
	assert.Equal(t, 18, tier.AvailableQuantity)

	assert.Equal(t, 1, f.gateway.charges)
	assert.True(t, f.events.published(models.EventOrderConfirmed))
	assert.Equal(t, []string{"alice@example.com"}, f.notifier.confirmations)
}

func TestCheckoutAuthenticatedSkipsContact(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()

	resp := f.svc.Start(ctx, "Bob Jones", "bob@example.com")
	resp, err := f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: resp.SessionID, TierID: "tier-1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, StepPayment, resp.Step)
}

func TestCheckoutStepOrderEnforced(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()

	resp := f.svc.Start(ctx, "", "")

	_, err := f.svc.SubmitContact(ctx, &models.ContactRequest{SessionID: resp.SessionID, Name: "Alice", Email: "a@example.com"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.SubmitPayment(ctx, &models.PaymentRequest{SessionID: resp.SessionID, Method: models.PaymentMethodCard})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.Confirm(ctx, &models.ReviewRequest{SessionID: resp.SessionID, AgreeTerms: true, AgreeRefundPolicy: true, IdempotencyKey: "k"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestCheckoutSelectionValidation(t *testing.T) {
	f := newCheckoutFixture(t, 5)
	ctx := context.Background()

	start := func() string { return f.svc.Start(ctx, "", "").SessionID }

	_, err := f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: start(), TierID: "missing", Quantity: 1})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	_, err = f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: start(), TierID: "tier-1", Quantity: 0})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	// Only 5 remain, so 6 is over the per-order limit for this tier.
	_, err = f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: start(), TierID: "tier-1", Quantity: 6})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	require.NoError(t, f.store.ReserveInventory(ctx, "tier-1", 5))
	_, err = f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: start(), TierID: "tier-1", Quantity: 1})
	assert.True(t, errors.IsKind(err, errors.KindSoldOut))
}

func TestConfirmRequiresAgreement(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 1)

	_, err := f.svc.Confirm(ctx, &models.ReviewRequest{SessionID: sessionID, AgreeTerms: true, IdempotencyKey: "k"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Equal(t, 0, f.gateway.charges)
}

func TestConfirmIdempotentReplay(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 1)

	req := &models.ReviewRequest{SessionID: sessionID, AgreeTerms: true, AgreeRefundPolicy: true, IdempotencyKey: "key-1"}
	first, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)

	second, err := f.svc.Confirm(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, f.gateway.charges)

	tier, _ := f.store.GetTier(ctx, "tier-1")
	assert.Equal(t, 19, tier.AvailableQuantity)
}

func TestDeclinedChargeReleasesInventory(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 3)

	f.gateway.declineNext = true
	_, err := f.svc.Confirm(ctx, &models.ReviewRequest{
		SessionID:         sessionID,
		AgreeTerms:        true,
		AgreeRefundPolicy: true,
		IdempotencyKey:    "key-1",
	})
	assert.True(t, errors.IsKind(err, errors.KindPaymentDeclined))

	tier, _ := f.store.GetTier(ctx, "tier-1")
	assert.Equal(t, 20, tier.AvailableQuantity)

	// The session stays at review so the buyer can retry payment.
	resp, err := f.svc.Confirm(ctx, &models.ReviewRequest{
		SessionID:         sessionID,
		AgreeTerms:        true,
		AgreeRefundPolicy: true,
		IdempotencyKey:    "key-2",
	})
	require.NoError(t, err)
	assert.Equal(t, StepConfirmed, resp.Step)
}

func TestConfirmSoldOutBeforeCharge(t *testing.T) {
	f := newCheckoutFixture(t, 1)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 1)

	// The last unit goes to someone else between review and confirm.
	require.NoError(t, f.store.ReserveInventory(ctx, "tier-1", 1))

	_, err := f.svc.Confirm(ctx, &models.ReviewRequest{
		SessionID:         sessionID,
		AgreeTerms:        true,
		AgreeRefundPolicy: true,
		IdempotencyKey:    "key-1",
	})
	assert.True(t, errors.IsKind(err, errors.KindSoldOut))
	assert.Equal(t, 0, f.gateway.charges)
}

func TestAbandonDiscardsSession(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()

	resp := f.svc.Start(ctx, "", "")
	require.NoError(t, f.svc.Abandon(ctx, resp.SessionID))

	_, err := f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: resp.SessionID, TierID: "tier-1", Quantity: 1})
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestAbandonAfterConfirmRejected(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()
	sessionID := f.walkToReview(t, 1)

	_, err := f.svc.Confirm(ctx, &models.ReviewRequest{
		SessionID:         sessionID,
		AgreeTerms:        true,
		AgreeRefundPolicy: true,
		IdempotencyKey:    "key-1",
	})
	require.NoError(t, err)

	err = f.svc.Abandon(ctx, sessionID)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
}

func TestPaymentMethodValidation(t *testing.T) {
	f := newCheckoutFixture(t, 20)
	ctx := context.Background()

	resp := f.svc.Start(ctx, "Carol", "carol@example.com")
	resp, err := f.svc.SubmitSelection(ctx, &models.SelectionRequest{SessionID: resp.SessionID, TierID: "tier-1", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.SubmitPayment(ctx, &models.PaymentRequest{SessionID: resp.SessionID, Method: "cash"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	_, err = f.svc.SubmitPayment(ctx, &models.PaymentRequest{SessionID: resp.SessionID, Method: models.PaymentMethodCard, CardNumber: "1234", CardExpiry: "12/30", CardCVC: "123"})
	assert.True(t, errors.IsKind(err, errors.KindValidation))

	resp, err = f.svc.SubmitPayment(ctx, &models.PaymentRequest{SessionID: resp.SessionID, Method: models.PaymentMethodApplePay})
	require.NoError(t, err)
	assert.Equal(t, StepReview, resp.Step)
}
