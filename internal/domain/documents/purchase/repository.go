package purchase

import (
	"context"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Repository defines storage operations for purchase records.
type Repository interface {
	// Create persists a purchase record without items.
	Create(ctx context.Context, r *Record) error

	// GetByID loads a record with its items.
	GetByID(ctx context.Context, purchaseID id.ID) (*Record, error)

	// ListByBusiness returns a business's records, newest first.
	ListByBusiness(ctx context.Context, businessID id.ID) ([]*Record, error)

	// Delete removes a record with its items.
	Delete(ctx context.Context, purchaseID id.ID) error

	// InsertItem adds an item row to a record.
	InsertItem(ctx context.Context, purchaseID id.ID, item Item) error

	// UpdateItem replaces an item row.
	UpdateItem(ctx context.Context, purchaseID id.ID, item Item) error

	// DeleteItem removes an item row.
	DeleteItem(ctx context.Context, purchaseID, itemID id.ID) error

	// IncrementTotalAmount applies a signed atomic increment to the
	// record's total amount.
	IncrementTotalAmount(ctx context.Context, purchaseID id.ID, delta types.MinorUnits) error
}
