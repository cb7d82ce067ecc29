package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/core/apperror"
	"mise/internal/domain/documents/cycle"
	"mise/internal/infrastructure/http/v1/dto"
)

// InventoryHandler exposes the inventory cycle lifecycle.
type InventoryHandler struct {
	*BaseHandler
	engine *cycle.Engine
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(engine *cycle.Engine) *InventoryHandler {
	return &InventoryHandler{
		BaseHandler: NewBaseHandler(),
		engine:      engine,
	}
}

// Create opens a new inventory cycle.
// POST /api/v1/inventories
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateInventoryCycleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	businessID, err := dto.ParseID(req.BusinessID, "businessId")
	if err != nil {
		h.Error(c, err)
		return
	}
	goodIDs, err := dto.ParseIDs(req.SupplierGoodIDs, "supplierGoodIds")
	if err != nil {
		h.Error(c, err)
		return
	}
	doneBy, err := dto.ParseIDs(req.DoneBy, "doneBy")
	if err != nil {
		h.Error(c, err)
		return
	}

	created, err := h.engine.Create(c.Request.Context(), businessID, req.Title, goodIDs, doneBy, req.Comments)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, created.ID)
}

// Get returns a cycle with its full count history.
// GET /api/v1/inventories/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	cycleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	found, err := h.engine.GetByID(c.Request.Context(), cycleID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, found)
}

// List returns a business's cycles.
// GET /api/v1/inventories?businessId=
func (h *InventoryHandler) List(c *gin.Context) {
	businessID, err := dto.ParseID(c.Query("businessId"), "businessId")
	if err != nil {
		h.Error(c, err)
		return
	}

	cycles, err := h.engine.ListByBusiness(c.Request.Context(), businessID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": cycles, "totalCount": len(cycles)})
}

// RecordCount submits one physical count for a supplier good.
// PATCH /api/v1/inventories/:id/supplier-goods/:goodId/counts
func (h *InventoryHandler) RecordCount(c *gin.Context) {
	cycleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	goodID, ok := h.ParamID(c, "goodId")
	if !ok {
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}

	count, err := h.engine.RecordCount(c.Request.Context(), cycleID, goodID, req.CurrentCountQuantity, userID, req.Comments)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// ReeditCount replaces the most recent count with an audited correction.
// PATCH /api/v1/inventories/:id/supplier-goods/:goodId/counts/:countId
func (h *InventoryHandler) ReeditCount(c *gin.Context) {
	cycleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	goodID, ok := h.ParamID(c, "goodId")
	if !ok {
		return
	}
	countID, ok := h.ParamID(c, "countId")
	if !ok {
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.ReeditCountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if req.Reason == "" {
		h.Error(c, apperror.NewMissingReason())
		return
	}

	count, err := h.engine.ReeditCount(c.Request.Context(), cycleID, goodID, countID, req.CurrentCountQuantity, req.Reason, userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, count)
}

// Finalize closes the cycle with a full set of final counts, resyncing
// the stock ledger.
// PATCH /api/v1/inventories/:id
func (h *InventoryHandler) Finalize(c *gin.Context) {
	cycleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.FinalizeCycleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	finalCounts, err := dto.CountsByGood(req.FinalCounts, "finalCounts")
	if err != nil {
		h.Error(c, err)
		return
	}
	doneBy, err := dto.ParseIDs(req.DoneBy, "doneBy")
	if err != nil {
		h.Error(c, err)
		return
	}

	finalized, err := h.engine.Finalize(c.Request.Context(), cycleID, finalCounts, doneBy, userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, finalized)
}

// Reset corrects goods of a finalized cycle with an audited reason.
// POST /api/v1/inventories/:id/reset
func (h *InventoryHandler) Reset(c *gin.Context) {
	cycleID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	userID, ok := h.UserID(c)
	if !ok {
		return
	}

	var req dto.ResetCountsRequest
	if !h.BindJSON(c, &req) {
		return
	}

	corrections, err := dto.CountsByGood(req.Corrections, "corrections")
	if err != nil {
		h.Error(c, err)
		return
	}

	updated, err := h.engine.ResetFinalizedCounts(c.Request.Context(), cycleID, corrections, req.Reason, userID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, updated)
}
