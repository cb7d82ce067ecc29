package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/consumption"
	"mise/internal/infrastructure/http/v1/dto"
)

// OrderHandler hooks order lifecycle events from the order service into
// the stock ledger.
type OrderHandler struct {
	*BaseHandler
	projector *consumption.Projector
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(projector *consumption.Projector) *OrderHandler {
	return &OrderHandler{
		BaseHandler: NewBaseHandler(),
		projector:   projector,
	}
}

// Consume debits the ledger for a created order.
// POST /api/v1/orders/consume
func (h *OrderHandler) Consume(c *gin.Context) {
	var req dto.ConsumeOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	goodIDs, err := dto.ParseIDs(req.BusinessGoodIDs, "businessGoodIds")
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.projector.ConsumeOrder(c.Request.Context(), goodIDs); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order consumption applied")
}

// Reverse restocks the ledger for a cancelled order.
// POST /api/v1/orders/reverse
func (h *OrderHandler) Reverse(c *gin.Context) {
	var req dto.ReverseOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	goodIDs, err := dto.ParseIDs(req.BusinessGoodIDs, "businessGoodIds")
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.projector.ReverseOrder(c.Request.Context(), consumption.OrderStatus(req.Status), goodIDs); err != nil {
		h.Error(c, err)
		return
	}

	h.Success(c, "order reversal applied")
}
