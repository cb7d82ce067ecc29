package suppliergood

import (
	"context"
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Repository defines storage operations for supplier goods.
type Repository interface {
	// GetByID retrieves a supplier good by id.
	GetByID(ctx context.Context, goodID id.ID) (*SupplierGood, error)

	// GetByIDs retrieves multiple supplier goods. Missing ids are simply
	// absent from the result; callers decide whether that is an error.
	GetByIDs(ctx context.Context, goodIDs []id.ID) ([]*SupplierGood, error)

	// ListByBusiness returns all supplier goods of a business.
	ListByBusiness(ctx context.Context, businessID id.ID) ([]*SupplierGood, error)

	// AdjustDynamicCount applies a signed delta to the running count as a
	// single atomic increment at the storage layer. Implementations must
	// never read-modify-write the value.
	AdjustDynamicCount(ctx context.Context, goodID id.ID, delta types.Quantity) error

	// SetFinalCount overwrites the running count with an audited physical
	// count and stamps the last inventory date.
	SetFinalCount(ctx context.Context, goodID id.ID, counted types.Quantity, countedAt time.Time) error
}
