package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifyClient sends buyer-facing emails through the notification service.
type NotifyClient struct {
	baseURL    string
	httpClient *http.Client
}

type NotifyConfig struct {
	BaseURL string
	Timeout time.Duration
}

type sendEmailRequest struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars"`
}

func NewNotifyClient(cfg NotifyConfig) *NotifyClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &NotifyClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (nc *NotifyClient) SendOrderConfirmation(ctx context.Context, contact, orderID string) error {
	return nc.send(ctx, sendEmailRequest{
		To:       contact,
		Template: "order_confirmation",
		Vars:     map[string]string{"order_id": orderID},
	})
}

func (nc *NotifyClient) SendTransferInvite(ctx context.Context, email, transferLink string) error {
	return nc.send(ctx, sendEmailRequest{
		To:       email,
		Template: "transfer_invite",
		Vars:     map[string]string{"claim_link": transferLink},
	})
}

func (nc *NotifyClient) send(ctx context.Context, req sendEmailRequest) error {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		nc.baseURL+"/api/v1/emails", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := nc.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
