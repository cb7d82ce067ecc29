package dto

import (
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// --- Request DTOs ---

// CreateInventoryCycleRequest opens a new counting cycle.
type CreateInventoryCycleRequest struct {
	BusinessID      string   `json:"businessId" binding:"required"`
	Title           string   `json:"title" binding:"required"`
	SupplierGoodIDs []string `json:"supplierGoodIds" binding:"required,min=1"`
	DoneBy          []string `json:"doneBy,omitempty"`
	Comments        string   `json:"comments,omitempty"`
}

// RecordCountRequest submits one physical count for a supplier good.
type RecordCountRequest struct {
	CurrentCountQuantity types.Quantity `json:"currentCountQuantity"`
	Comments             string         `json:"comments,omitempty"`
}

// ReeditCountRequest replaces the most recent count. Reason is mandatory.
type ReeditCountRequest struct {
	CurrentCountQuantity types.Quantity `json:"currentCountQuantity"`
	Reason               string         `json:"reason"`
}

// FinalCountEntry carries one good's closing count.
type FinalCountEntry struct {
	SupplierGoodID string         `json:"supplierGoodId" binding:"required"`
	Quantity       types.Quantity `json:"quantity"`
}

// FinalizeCycleRequest closes the cycle with a full set of final counts.
type FinalizeCycleRequest struct {
	FinalCounts []FinalCountEntry `json:"finalCounts" binding:"required,min=1"`
	DoneBy      []string          `json:"doneBy,omitempty"`
}

// ResetCountsRequest corrects goods of a finalized cycle.
type ResetCountsRequest struct {
	Corrections []FinalCountEntry `json:"corrections" binding:"required,min=1"`
	Reason      string            `json:"reason"`
}

// CountsByGood converts entries into the map form the engine consumes.
func CountsByGood(entries []FinalCountEntry, field string) (map[id.ID]types.Quantity, error) {
	out := make(map[id.ID]types.Quantity, len(entries))
	for _, e := range entries {
		goodID, err := ParseID(e.SupplierGoodID, field)
		if err != nil {
			return nil, err
		}
		out[goodID] = e.Quantity
	}
	return out, nil
}
