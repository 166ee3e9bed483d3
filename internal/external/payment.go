package external

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lark/internal/errors"
)

// PaymentClient charges buyers through the external payment gateway.
// Requests are signed with a SHA-256 token over the alphabetically sorted
// parameter values plus the team credentials.
type PaymentClient struct {
	baseURL    string
	teamSlug   string
	password   string
	httpClient *http.Client
}

type PaymentConfig struct {
	BaseURL  string
	TeamSlug string
	Password string
	Timeout  time.Duration
}

type chargeRequest struct {
	TeamSlug       string `json:"teamSlug"`
	Token          string `json:"token"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type chargeResponse struct {
	Success   bool   `json:"success"`
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func NewPaymentClient(cfg PaymentConfig) *PaymentClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &PaymentClient{
		baseURL:  cfg.BaseURL,
		teamSlug: cfg.TeamSlug,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (pc *PaymentClient) generateToken(params map[string]string) string {
	params["TeamSlug"] = pc.teamSlug
	params["Password"] = pc.password

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var tokenString string
	for _, key := range keys {
		tokenString += params[key]
	}

	hash := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(hash[:])
}

// Charge captures the full order amount in one step. The gateway is trusted
// with the idempotency key, so a retried charge for the same key is not
// double-captured. A gateway-side rejection comes back as PAYMENT_DECLINED.
func (pc *PaymentClient) Charge(ctx context.Context, amount decimal.Decimal, method, idempotencyKey string) (string, error) {
	token := pc.generateToken(map[string]string{
		"Amount":         amount.StringFixed(2),
		"Currency":       "GBP",
		"IdempotencyKey": idempotencyKey,
	})

	req := chargeRequest{
		TeamSlug:       pc.teamSlug,
		Token:          token,
		Amount:         amount.StringFixed(2),
		Currency:       "GBP",
		Method:         method,
		IdempotencyKey: idempotencyKey,
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		pc.baseURL+"/api/v1/Charge/charge", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := pc.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to charge payment: %w", err)
	}
	defer resp.Body.Close()

	var result chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode == http.StatusPaymentRequired || !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "the payment was declined by the gateway"
		}
		return "", errors.New(errors.KindPaymentDeclined, msg)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return result.PaymentID, nil
}

// StubGateway approves every charge. Used by the memory backend for local
// development so checkout can run without the external gateway.
type StubGateway struct{}

func (StubGateway) Charge(ctx context.Context, amount decimal.Decimal, method, idempotencyKey string) (string, error) {
	return "stub-" + uuid.New().String(), nil
}
