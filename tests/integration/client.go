package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"lark/internal/models"
)

// TestClient provides methods for exercising the API
type TestClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// BuyerName/BuyerEmail, when set, are sent as identity headers so
	// checkout skips the contact step.
	BuyerName  string
	BuyerEmail string
}

// NewTestClient creates a new test client
func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// makeRequest makes an HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.BuyerName != "" {
		req.Header.Set("X-Buyer-Name", c.BuyerName)
	}
	if c.BuyerEmail != "" {
		req.Header.Set("X-Buyer-Email", c.BuyerEmail)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

func (c *TestClient) decodeResponse(t *testing.T, resp *http.Response, wantStatus int, out interface{}) {
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d, got %d: %s", wantStatus, resp.StatusCode, string(body))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
}

// HealthCheck verifies the API is up
func (c *TestClient) HealthCheck(t *testing.T) {
	resp := c.makeRequest(t, "GET", "/health", nil)
	c.decodeResponse(t, resp, http.StatusOK, nil)
}

// CreateTier creates a ticket tier
func (c *TestClient) CreateTier(t *testing.T, name string, unitPrice, serviceFee string, quantity int) *models.TicketTier {
	req := map[string]interface{}{
		"name":           name,
		"unit_price":     unitPrice,
		"service_fee":    serviceFee,
		"total_quantity": quantity,
	}
	resp := c.makeRequest(t, "POST", "/api/tiers", req)

	var tier models.TicketTier
	c.decodeResponse(t, resp, http.StatusCreated, &tier)
	return &tier
}

// GetTier fetches a tier by ID
func (c *TestClient) GetTier(t *testing.T, id string) *models.TicketTier {
	resp := c.makeRequest(t, "GET", "/api/tiers/"+id, nil)

	var tier models.TicketTier
	c.decodeResponse(t, resp, http.StatusOK, &tier)
	return &tier
}

// StartCheckout opens a checkout session
func (c *TestClient) StartCheckout(t *testing.T) *models.CheckoutResponse {
	resp := c.makeRequest(t, "POST", "/api/checkout/start", nil)

	var out models.CheckoutResponse
	c.decodeResponse(t, resp, http.StatusCreated, &out)
	return &out
}

// SubmitStep submits one checkout step and expects success
func (c *TestClient) SubmitStep(t *testing.T, step string, body interface{}) *models.CheckoutResponse {
	resp := c.makeRequest(t, "POST", "/api/checkout/"+step, body)

	var out models.CheckoutResponse
	c.decodeResponse(t, resp, http.StatusOK, &out)
	return &out
}

// SubmitStepExpectingStatus submits a checkout step and asserts the status code
func (c *TestClient) SubmitStepExpectingStatus(t *testing.T, step string, body interface{}, wantStatus int) {
	resp := c.makeRequest(t, "POST", "/api/checkout/"+step, body)
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d for step %s, got %d: %s", wantStatus, step, resp.StatusCode, string(respBody))
	}
}

// BuyTickets runs a complete checkout for an identified buyer and returns the
// confirmed order with its tickets
func (c *TestClient) BuyTickets(t *testing.T, tierID string, quantity int, idempotencyKey string) *models.OrderWithTickets {
	session := c.StartCheckout(t)

	out := c.SubmitStep(t, "selection", map[string]interface{}{
		"session_id": session.SessionID,
		"tier_id":    tierID,
		"quantity":   quantity,
	})
	if out.Step != "payment" {
		t.Fatalf("Expected identified buyer to land on payment, got step %s", out.Step)
	}

	c.SubmitStep(t, "payment", map[string]interface{}{
		"session_id": session.SessionID,
		"method":     "card",
		"card_number": "4242424242424242",
		"card_expiry": "12/30",
		"card_cvc":    "123",
	})

	out = c.SubmitStep(t, "review", map[string]interface{}{
		"session_id":          session.SessionID,
		"agree_terms":         true,
		"agree_refund_policy": true,
		"idempotency_key":     idempotencyKey,
	})
	if out.Step != "confirmed" || out.Order == nil {
		t.Fatalf("Expected confirmed order, got step %s", out.Step)
	}
	return out.Order
}

// InitiateTransfer opens a transfer for a ticket
func (c *TestClient) InitiateTransfer(t *testing.T, ticketID string, body interface{}) *models.TransferResult {
	resp := c.makeRequest(t, "POST", fmt.Sprintf("/api/tickets/%s/transfer", ticketID), body)

	var out models.TransferResult
	c.decodeResponse(t, resp, http.StatusCreated, &out)
	return &out
}

// AcceptTransfer claims a pending transfer
func (c *TestClient) AcceptTransfer(t *testing.T, transferID string, body interface{}) *models.TransferResult {
	resp := c.makeRequest(t, "POST", fmt.Sprintf("/api/transfers/%s/accept", transferID), body)

	var out models.TransferResult
	c.decodeResponse(t, resp, http.StatusOK, &out)
	return &out
}

// CancelTransfer cancels a pending transfer
func (c *TestClient) CancelTransfer(t *testing.T, transferID, requester string) *models.TransferResult {
	resp := c.makeRequest(t, "POST", fmt.Sprintf("/api/transfers/%s/cancel", transferID), map[string]string{"requester": requester})

	var out models.TransferResult
	c.decodeResponse(t, resp, http.StatusOK, &out)
	return &out
}

// CreateListing lists a ticket for resale
func (c *TestClient) CreateListing(t *testing.T, ticketID, price, seller string) *models.ListingResult {
	resp := c.makeRequest(t, "POST", fmt.Sprintf("/api/tickets/%s/listings", ticketID), map[string]string{
		"price":  price,
		"seller": seller,
	})

	var out models.ListingResult
	c.decodeResponse(t, resp, http.StatusCreated, &out)
	return &out
}

// PurchaseListing buys an active resale listing
func (c *TestClient) PurchaseListing(t *testing.T, listingID, buyer string) *models.ListingResult {
	resp := c.makeRequest(t, "POST", fmt.Sprintf("/api/listings/%s/purchase", listingID), map[string]string{"buyer_contact": buyer})

	var out models.ListingResult
	c.decodeResponse(t, resp, http.StatusOK, &out)
	return &out
}

// ExpectStatus makes a request and asserts only the status code
func (c *TestClient) ExpectStatus(t *testing.T, method, path string, body interface{}, wantStatus int) {
	resp := c.makeRequest(t, method, path, body)
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		respBody, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status %d for %s %s, got %d: %s", wantStatus, method, path, resp.StatusCode, string(respBody))
	}
}

// GetTicket fetches a ticket by ID
func (c *TestClient) GetTicket(t *testing.T, id string) *models.Ticket {
	resp := c.makeRequest(t, "GET", "/api/tickets/"+id, nil)

	var ticket models.Ticket
	c.decodeResponse(t, resp, http.StatusOK, &ticket)
	return &ticket
}
