package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lark/internal/cache"
	"lark/internal/errors"
	"lark/internal/models"
	"lark/internal/service"
)

type Handlers struct {
	services     *service.Services
	valkeyClient *cache.ValkeyClient
}

func NewHandlers(services *service.Services, valkeyClient *cache.ValkeyClient) *Handlers {
	return &Handlers{
		services:     services,
		valkeyClient: valkeyClient,
	}
}

// respondError maps the domain error taxonomy onto HTTP statuses. Anything
// without a kind is a 500 and gets logged as such.
func (h *Handlers) respondError(c *gin.Context, err error) {
	kind, ok := errors.KindOf(err)
	if !ok {
		slog.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch kind {
	case errors.KindValidation:
		status = http.StatusBadRequest
	case errors.KindNotFound:
		status = http.StatusNotFound
	case errors.KindSoldOut:
		status = http.StatusConflict
	case errors.KindPaymentDeclined:
		status = http.StatusPaymentRequired
	case errors.KindNotTransferable:
		status = http.StatusConflict
	case errors.KindTransferExpired:
		status = http.StatusGone
	case errors.KindAlreadyAccepted:
		status = http.StatusConflict
	case errors.KindPriceCapExceeded:
		status = http.StatusUnprocessableEntity
	case errors.KindConcurrentModification:
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": err.Error(), "kind": string(kind)})
}

// Tier handlers

// CreateTier - POST /api/tiers
func (h *Handlers) CreateTier(c *gin.Context) {
	var req models.CreateTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tier, err := h.services.Tiers.Create(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.valkeyClient != nil {
		h.valkeyClient.InvalidateTier(c.Request.Context(), tier.ID)
	}

	c.JSON(http.StatusCreated, tier)
}

// GetTier - GET /api/tiers/:id
func (h *Handlers) GetTier(c *gin.Context) {
	id := c.Param("id")

	// Availability reads dominate during an on-sale; serve the cached body
	// when it is fresh enough.
	if h.valkeyClient != nil {
		if raw, err := h.valkeyClient.GetTierRaw(c.Request.Context(), id); err == nil && raw != nil {
			c.Data(http.StatusOK, "application/json", raw)
			return
		}
	}

	tier, err := h.services.Tiers.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.valkeyClient != nil {
		if body, err := json.Marshal(tier); err == nil {
			h.valkeyClient.SetTierRaw(c.Request.Context(), id, body)
		}
	}

	c.JSON(http.StatusOK, tier)
}

// ListTiers - GET /api/tiers
func (h *Handlers) ListTiers(c *gin.Context) {
	if h.valkeyClient != nil {
		if raw, err := h.valkeyClient.GetTierListRaw(c.Request.Context()); err == nil && raw != nil {
			c.Data(http.StatusOK, "application/json", raw)
			return
		}
	}

	tiers, err := h.services.Tiers.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.valkeyClient != nil {
		if body, err := json.Marshal(tiers); err == nil {
			h.valkeyClient.SetTierListRaw(c.Request.Context(), body)
		}
	}

	c.JSON(http.StatusOK, tiers)
}

// invalidateTierCache drops cached availability after an inventory change.
func (h *Handlers) invalidateTierCache(c *gin.Context, tierID string) {
	if h.valkeyClient != nil && tierID != "" {
		h.valkeyClient.InvalidateTier(c.Request.Context(), tierID)
	}
}
