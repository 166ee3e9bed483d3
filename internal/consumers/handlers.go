package consumers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/stan.go"

	"lark/internal/models"
	"lark/internal/service"
)

type Handlers struct {
	notifier service.Notifier
}

func NewHandlers(notifier service.Notifier) *Handlers {
	return &Handlers{notifier: notifier}
}

// HandleTransferInitiated sends the claim invite for email transfers. Link
// transfers have no recipient address; the sender shares the link directly.
func (h *Handlers) HandleTransferInitiated(m *stan.Msg) {
	var event models.TransferInitiatedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal transfer initiated event", "error", err)
		return
	}

	slog.Info("Processing transfer initiated event",
		"transfer_id", event.TransferID, "method", event.Method)

	if event.Method == models.TransferMethodEmail && event.ToContact != nil && h.notifier != nil {
		if err := h.notifier.SendTransferInvite(context.Background(), *event.ToContact, event.ClaimLink); err != nil {
			slog.Error("Failed to send transfer invite",
				"error", err, "transfer_id", event.TransferID)
			// The pending request is still claimable through the API, so
			// ack rather than redeliver forever.
		}
	}

	m.Ack()
}

func (h *Handlers) HandleOrderConfirmed(m *stan.Msg) {
	var event models.OrderConfirmedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal order confirmed event", "error", err)
		return
	}

	slog.Info("Processing order confirmed event",
		"order_id", event.OrderID, "quantity", event.Quantity, "total_paid", event.TotalPaid)

	m.Ack()
}

func (h *Handlers) HandleListingSold(m *stan.Msg) {
	var event models.ListingSoldEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal listing sold event", "error", err)
		return
	}

	slog.Info("Processing listing sold event",
		"listing_id", event.ListingID, "price", event.Price, "platform_fee", event.PlatformFee)

	m.Ack()
}

func (h *Handlers) HandleTransferExpired(m *stan.Msg) {
	var event models.TransferExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal transfer expired event", "error", err)
		return
	}

	slog.Info("Processing transfer expired event",
		"transfer_id", event.TransferID, "ticket_id", event.TicketID)

	m.Ack()
}
