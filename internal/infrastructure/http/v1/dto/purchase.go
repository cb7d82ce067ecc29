package dto

import (
	"time"

	"mise/internal/core/types"
)

// CreatePurchaseRequest opens a new purchase record.
type CreatePurchaseRequest struct {
	BusinessID   string    `json:"businessId" binding:"required"`
	Title        string    `json:"title" binding:"required"`
	PurchaseDate time.Time `json:"purchaseDate,omitempty"`
}

// PurchaseItemRequest adds or edits one purchased line.
type PurchaseItemRequest struct {
	SupplierGoodID    string           `json:"supplierGoodId"`
	QuantityPurchased types.Quantity   `json:"quantityPurchased"`
	PurchasePrice     types.MinorUnits `json:"purchasePrice"`
}
