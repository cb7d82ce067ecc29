package cycle

import (
	"context"
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Repository defines storage operations for inventory cycles.
type Repository interface {
	// Create persists a cycle with its seeded good entries. The partial
	// unique index on (business_id) WHERE NOT set_final_count enforces
	// the one-open-cycle invariant at the storage layer; implementations
	// translate the unique violation into a conflict error.
	Create(ctx context.Context, c *Cycle) error

	// GetByID loads a cycle with entries and count history.
	GetByID(ctx context.Context, cycleID id.ID) (*Cycle, error)

	// ListByBusiness returns a business's cycles, newest first.
	ListByBusiness(ctx context.Context, businessID id.ID) ([]*Cycle, error)

	// GetOpenByBusiness returns the business's single open cycle, or
	// (nil, nil) when none exists.
	GetOpenByBusiness(ctx context.Context, businessID id.ID) (*Cycle, error)

	// ClaimedSupplierGoodIDs returns supplier goods already tracked by an
	// open cycle of the business.
	ClaimedSupplierGoodIDs(ctx context.Context, businessID id.ID) ([]id.ID, error)

	// AppendCount inserts a count row for an entry.
	AppendCount(ctx context.Context, cycleID, supplierGoodID id.ID, count Count) error

	// UpdateCount replaces a count row in place (re-edit path; the
	// Reedited audit block travels with the row).
	UpdateCount(ctx context.Context, cycleID, supplierGoodID id.ID, count Count) error

	// UpdateEntryStats persists an entry's running count and rolling
	// average deviation.
	UpdateEntryStats(ctx context.Context, cycleID, supplierGoodID id.ID, systemCount types.Quantity, avgDeviationPercent float64) error

	// IncrementEntryCount applies a signed atomic increment to an entry's
	// running count (purchase bridge). Returns false when the cycle does
	// not track the supplier good.
	IncrementEntryCount(ctx context.Context, cycleID, supplierGoodID id.ID, delta types.Quantity) (bool, error)

	// MarkFinalized flips set_final_count conditionally. Returns false
	// when the cycle was already finalized; the caller that observes
	// false lost the race and must not proceed.
	MarkFinalized(ctx context.Context, cycleID id.ID, countedDate time.Time, doneBy []id.ID) (bool, error)
}
