package businessgood

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines read operations for business goods. The core never
// writes business goods.
type Repository interface {
	// GetByID retrieves a business good with its ingredients or set-menu
	// references loaded.
	GetByID(ctx context.Context, goodID id.ID) (*BusinessGood, error)

	// GetByIDs retrieves multiple business goods keyed by id. Missing ids
	// are absent from the result.
	GetByIDs(ctx context.Context, goodIDs []id.ID) (map[id.ID]*BusinessGood, error)
}
