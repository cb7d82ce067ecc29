// Package purchase provides purchase records and the ledger bridge that
// keeps the open inventory cycle's running counts in step with purchase
// item mutations.
package purchase

import (
	"context"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Record is one supplier purchase of a business.
type Record struct {
	ID           id.ID     `db:"id" json:"id"`
	BusinessID   id.ID     `db:"business_id" json:"businessId"`
	Title        string    `db:"title" json:"title"`
	PurchaseDate time.Time `db:"purchase_date" json:"purchaseDate"`

	Items []Item `db:"-" json:"purchaseInventoryItems"`

	// TotalAmount is the sum of item prices in minor currency units. It
	// is maintained by atomic increments alongside item mutations, never
	// recomputed from the item rows.
	TotalAmount types.MinorUnits `db:"total_amount" json:"totalAmount"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Item is one purchased supplier good line.
type Item struct {
	ID                id.ID            `db:"id" json:"id"`
	SupplierGoodID    id.ID            `db:"supplier_good_id" json:"supplierGoodId"`
	QuantityPurchased types.Quantity   `db:"quantity_purchased" json:"quantityPurchased"`
	PurchasePrice     types.MinorUnits `db:"purchase_price" json:"purchasePrice"`
}

// NewRecord creates an empty purchase record. Items are attached through
// the bridged item operations so every line syncs the open cycle.
func NewRecord(businessID id.ID, title string, purchaseDate time.Time) *Record {
	now := time.Now().UTC()
	if purchaseDate.IsZero() {
		purchaseDate = now
	}
	return &Record{
		ID:           id.New(),
		BusinessID:   businessID,
		Title:        title,
		PurchaseDate: purchaseDate,
		Items:        make([]Item, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks entity invariants.
func (r *Record) Validate(ctx context.Context) error {
	if id.IsNil(r.BusinessID) {
		return apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}
	if r.Title == "" {
		return apperror.NewValidation("title is required").
			WithDetail("field", "title")
	}
	return nil
}

// Validate checks item invariants.
func (i *Item) Validate() error {
	if id.IsNil(i.SupplierGoodID) {
		return apperror.NewValidation("supplier good id is required").
			WithDetail("field", "supplierGoodId")
	}
	if i.QuantityPurchased.IsNegative() || i.QuantityPurchased.IsZero() {
		return apperror.NewValidation("purchased quantity must be positive").
			WithDetail("field", "quantityPurchased")
	}
	if i.PurchasePrice.IsNegative() {
		return apperror.NewValidation("purchase price must not be negative").
			WithDetail("field", "purchasePrice")
	}
	return nil
}

// ItemByID returns the item with the given id.
func (r *Record) ItemByID(itemID id.ID) (*Item, error) {
	for i := range r.Items {
		if r.Items[i].ID == itemID {
			return &r.Items[i], nil
		}
	}
	return nil, apperror.NewNotFound("purchase item", itemID.String()).
		WithDetail("purchase_id", r.ID.String())
}
