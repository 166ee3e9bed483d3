package integration

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
)

// TestAPI_HealthCheck verifies the API is up
func TestAPI_HealthCheck(t *testing.T) {
	client := NewTestClient(ServerURL(t))

	LogTestStep(t, "Testing API health check")
	client.HealthCheck(t)
	LogTestResult(t, "API is healthy and responding")
}

// TestCheckout_FullFlow walks an identified buyer through a complete checkout
func TestCheckout_FullFlow(t *testing.T) {
	client := NewTestClient(ServerURL(t))
	client.BuyerName = "Alice Smith"
	client.BuyerEmail = UniqueEmail("alice")

	LogTestStep(t, "Creating a tier")
	tier := client.CreateTier(t, "GA Full Flow", "50.00", "5.00", 20)

	LogTestStep(t, "Buying 2 tickets")
	order := client.BuyTickets(t, tier.ID, 2, uuid.New().String())

	if len(order.Tickets) != 2 {
		t.Fatalf("Expected 2 tickets, got %d", len(order.Tickets))
	}
	if order.TotalPaid.String() != "110" && order.TotalPaid.StringFixed(2) != "110.00" {
		t.Fatalf("Expected total 110.00, got %s", order.TotalPaid)
	}
	for _, ticket := range order.Tickets {
		if ticket.OwnerContact != client.BuyerEmail {
			t.Fatalf("Expected ticket owned by %s, got %s", client.BuyerEmail, ticket.OwnerContact)
		}
		if ticket.Epoch != 1 {
			t.Fatalf("Expected issuance epoch 1, got %d", ticket.Epoch)
		}
	}

	LogTestStep(t, "Verifying availability dropped")
	after := client.GetTier(t, tier.ID)
	if after.AvailableQuantity != 18 {
		t.Fatalf("Expected 18 units left, got %d", after.AvailableQuantity)
	}

	LogTestResult(t, "Checkout confirmed order %s with %d tickets", order.ID, len(order.Tickets))
}

// TestCheckout_AnonymousBuyerGoesThroughContact verifies the contact step is
// required when no buyer identity was established upstream
func TestCheckout_AnonymousBuyerGoesThroughContact(t *testing.T) {
	client := NewTestClient(ServerURL(t))

	tier := client.CreateTier(t, "GA Anonymous", "30.00", "3.00", 10)

	session := client.StartCheckout(t)
	out := client.SubmitStep(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tier.ID,
		"quantity":   1,
	})
	if out.Step != "contact" {
		t.Fatalf("Expected anonymous buyer to land on contact, got %s", out.Step)
	}

	out = client.SubmitStep(t, "contact", map[string]interface{}{
		"session_id": session.SessionID,
		"name":       "Bob Jones",
		"email":      UniqueEmail("bob"),
	})
	if out.Step != "payment" {
		t.Fatalf("Expected payment step after contact, got %s", out.Step)
	}
}

// TestCheckout_IdempotentConfirm replays the review submission and expects
// the same order back without a second charge
func TestCheckout_IdempotentConfirm(t *testing.T) {
	client := NewTestClient(ServerURL(t))
	client.BuyerName = "Carol King"
	client.BuyerEmail = UniqueEmail("carol")

	tier := client.CreateTier(t, "GA Idempotent", "40.00", "4.00", 10)

	session := client.StartCheckout(t)
	client.SubmitStep(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tier.ID,
		"quantity":   1,
	})
	client.SubmitStep(t, "payment", map[string]interface{}{
		"session_id": session.SessionID,
		"method":     "google_pay",
	})

	key := uuid.New().String()
	review := map[string]interface{}{
		"session_id":          session.SessionID,
		"agree_terms":         true,
		"agree_refund_policy": true,
		"idempotency_key":     key,
	}

	first := client.SubmitStep(t, "review", review)
	second := client.SubmitStep(t, "review", review)

	if first.Order == nil || second.Order == nil {
		t.Fatal("Expected both submissions to return the confirmed order")
	}
	if first.Order.ID != second.Order.ID {
		t.Fatalf("Expected the same order on replay, got %s and %s", first.Order.ID, second.Order.ID)
	}

	after := client.GetTier(t, tier.ID)
	if after.AvailableQuantity != 9 {
		t.Fatalf("Expected exactly one unit consumed, got %d left", after.AvailableQuantity)
	}
}

// TestCheckout_SoldOut drains a tier and verifies the conflict surface
func TestCheckout_SoldOut(t *testing.T) {
	client := NewTestClient(ServerURL(t))
	client.BuyerName = "Dana Fox"
	client.BuyerEmail = UniqueEmail("dana")

	tier := client.CreateTier(t, "GA Sold Out", "25.00", "2.50", 1)
	client.BuyTickets(t, tier.ID, 1, uuid.New().String())

	session := client.StartCheckout(t)
	client.SubmitStepExpectingStatus(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tier.ID,
		"quantity":   1,
	}, http.StatusConflict)
}

// TestCheckout_AbandonLeavesNoTrace abandons mid-flow and verifies no
// inventory was consumed
func TestCheckout_AbandonLeavesNoTrace(t *testing.T) {
	client := NewTestClient(ServerURL(t))
	client.BuyerName = "Evan Wu"
	client.BuyerEmail = UniqueEmail("evan")

	tier := client.CreateTier(t, "GA Abandon", "20.00", "2.00", 5)

	session := client.StartCheckout(t)
	client.SubmitStep(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tier.ID,
		"quantity":   3,
	})

	client.ExpectStatus(t, "POST", "/api/checkout/abandon", map[string]string{"session_id": session.SessionID}, http.StatusNoContent)

	after := client.GetTier(t, tier.ID)
	if after.AvailableQuantity != 5 {
		t.Fatalf("Expected abandoned checkout to leave inventory untouched, got %d", after.AvailableQuantity)
	}

	// The session is gone.
	client.SubmitStepExpectingStatus(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tier.ID,
		"quantity":   1,
	}, http.StatusNotFound)
}
