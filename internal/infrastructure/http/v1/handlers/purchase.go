package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/documents/purchase"
	"mise/internal/infrastructure/http/v1/dto"
)

// PurchaseHandler exposes purchase records and the bridged item
// operations.
type PurchaseHandler struct {
	*BaseHandler
	service *purchase.Service
}

// NewPurchaseHandler creates a new purchase handler.
func NewPurchaseHandler(service *purchase.Service) *PurchaseHandler {
	return &PurchaseHandler{
		BaseHandler: NewBaseHandler(),
		service:     service,
	}
}

// Create opens a new purchase record.
// POST /api/v1/purchases
func (h *PurchaseHandler) Create(c *gin.Context) {
	var req dto.CreatePurchaseRequest
	if !h.BindJSON(c, &req) {
		return
	}

	businessID, err := dto.ParseID(req.BusinessID, "businessId")
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.service.Create(c.Request.Context(), businessID, req.Title, req.PurchaseDate)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, created.ID)
}

// Get returns a record with its items.
// GET /api/v1/purchases/:id
func (h *PurchaseHandler) Get(c *gin.Context) {
	purchaseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	found, err := h.service.GetByID(c.Request.Context(), purchaseID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, found)
}

// List returns a business's purchase records.
// GET /api/v1/purchases?businessId=
func (h *PurchaseHandler) List(c *gin.Context) {
	businessID, err := dto.ParseID(c.Query("businessId"), "businessId")
	if err != nil {
		h.Error(c, err)
		return
	}

	records, err := h.service.ListByBusiness(c.Request.Context(), businessID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": records, "totalCount": len(records)})
}

// Delete removes a record, reversing its items against the open cycle.
// DELETE /api/v1/purchases/:id
func (h *PurchaseHandler) Delete(c *gin.Context) {
	purchaseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), purchaseID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// AddItem appends a purchased line with the atomic ledger bridge.
// POST /api/v1/purchases/:id/items
func (h *PurchaseHandler) AddItem(c *gin.Context) {
	purchaseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.PurchaseItemRequest
	if !h.BindJSON(c, &req) {
		return
	}
	goodID, err := dto.ParseID(req.SupplierGoodID, "supplierGoodId")
	if err != nil {
		h.Error(c, err)
		return
	}

	item, err := h.service.AddItem(c.Request.Context(), purchaseID, goodID, req.QuantityPurchased, req.PurchasePrice)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// EditItem replaces a purchased line with the atomic ledger bridge.
// PATCH /api/v1/purchases/:id/items/:itemId
func (h *PurchaseHandler) EditItem(c *gin.Context) {
	purchaseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}

	var req dto.PurchaseItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.service.EditItem(c.Request.Context(), purchaseID, itemID, req.QuantityPurchased, req.PurchasePrice)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, item)
}

// DeleteItem removes a purchased line with the atomic ledger bridge.
// DELETE /api/v1/purchases/:id/items/:itemId
func (h *PurchaseHandler) DeleteItem(c *gin.Context) {
	purchaseID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}

	if err := h.service.DeleteItem(c.Request.Context(), purchaseID, itemID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}
