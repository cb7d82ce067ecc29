package dto

// ConsumeOrderRequest projects a created order onto the stock ledger.
// Duplicate ids are meaningful: each occurrence is one sold item.
type ConsumeOrderRequest struct {
	BusinessGoodIDs []string `json:"businessGoodIds" binding:"required,min=1"`
}

// ReverseOrderRequest restocks a cancelled order's ingredients. Status
// gates the reversal: orders already in preparation cannot be cancelled.
type ReverseOrderRequest struct {
	Status          string   `json:"status" binding:"required"`
	BusinessGoodIDs []string `json:"businessGoodIds" binding:"required,min=1"`
}
