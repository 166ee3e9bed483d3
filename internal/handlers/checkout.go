package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lark/internal/errors"
	"lark/internal/middleware"
	"lark/internal/models"
)

// Checkout handlers. The multi-step flow advances strictly through
// selection, contact, payment and review; each step submission validates
// the session is at the right step before moving on.

// StartCheckout - POST /api/checkout/start
func (h *Handlers) StartCheckout(c *gin.Context) {
	var buyerName, buyerEmail string
	if buyer, ok := middleware.BuyerFromContext(c.Request.Context()); ok {
		buyerName = buyer.Name
		buyerEmail = buyer.Email
	}

	response := h.services.Checkout.Start(c.Request.Context(), buyerName, buyerEmail)
	c.JSON(http.StatusCreated, response)
}

// AdvanceCheckout - POST /api/checkout/:step
// Dispatches a step submission to the state machine.
func (h *Handlers) AdvanceCheckout(c *gin.Context) {
	step := c.Param("step")

	var (
		response *models.CheckoutResponse
		err      error
	)

	switch step {
	case "selection":
		var req models.SelectionRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
			return
		}
		response, err = h.services.Checkout.SubmitSelection(c.Request.Context(), &req)

	case "contact":
		var req models.ContactRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
			return
		}
		response, err = h.services.Checkout.SubmitContact(c.Request.Context(), &req)

	case "payment":
		var req models.PaymentRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
			return
		}
		response, err = h.services.Checkout.SubmitPayment(c.Request.Context(), &req)

	case "review":
		var req models.ReviewRequest
		if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": bindErr.Error()})
			return
		}
		response, err = h.services.Checkout.Confirm(c.Request.Context(), &req)
		if err == nil && response.Order != nil {
			h.invalidateTierCache(c, response.Order.TierID)
		}

	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown checkout step"})
		return
	}

	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// AbandonCheckout - POST /api/checkout/abandon
func (h *Handlers) AbandonCheckout(c *gin.Context) {
	var req models.AbandonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.services.Checkout.Abandon(c.Request.Context(), req.SessionID); err != nil {
		// Abandoning a session that already timed out is a no-op, not an
		// error worth surfacing.
		if errors.IsKind(err, errors.KindNotFound) {
			c.Status(http.StatusNoContent)
			return
		}
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetOrder - GET /api/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	order, err := h.services.Checkout.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
