package suppliergood

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/pkg/logger"
)

// Ledger owns the dynamic stock count of supplier goods.
//
// Adjust is the only way order and purchase events touch the count; it
// delegates to an atomic storage increment so that concurrent
// adjustments commute without lost updates. Finalize is reserved for the
// inventory reconciliation engine.
type Ledger struct {
	repo Repository
}

// NewLedger creates a new supplier good ledger.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Adjust applies a signed delta to the running count of a supplier good.
// Negative deltas record consumption, positive deltas record restock or
// a cancellation reversal.
func (l *Ledger) Adjust(ctx context.Context, goodID id.ID, delta types.Quantity) error {
	if id.IsNil(goodID) {
		return apperror.NewValidation("supplier good id is required")
	}
	if delta.IsZero() {
		return nil
	}

	if err := l.repo.AdjustDynamicCount(ctx, goodID, delta); err != nil {
		return fmt.Errorf("adjust dynamic count: %w", err)
	}

	logger.Debug(ctx, "ledger adjusted",
		"supplier_good_id", goodID,
		"delta", delta.String(),
	)
	return nil
}

// Finalize overwrites the running count with the audited physical count
// and stamps the last inventory date. Called only by cycle finalization
// and the post-finalization reset path.
func (l *Ledger) Finalize(ctx context.Context, goodID id.ID, counted types.Quantity) error {
	if id.IsNil(goodID) {
		return apperror.NewValidation("supplier good id is required")
	}

	now := time.Now().UTC()
	if err := l.repo.SetFinalCount(ctx, goodID, counted, now); err != nil {
		return fmt.Errorf("set final count: %w", err)
	}

	logger.Info(ctx, "ledger resynced from physical count",
		"supplier_good_id", goodID,
		"counted", counted.String(),
	)
	return nil
}

// GetByID fetches a supplier good. Every read goes to storage; the
// ledger never caches counts across requests.
func (l *Ledger) GetByID(ctx context.Context, goodID id.ID) (*SupplierGood, error) {
	return l.repo.GetByID(ctx, goodID)
}

// GetByIDs fetches multiple supplier goods keyed by id.
func (l *Ledger) GetByIDs(ctx context.Context, goodIDs []id.ID) (map[id.ID]*SupplierGood, error) {
	goods, err := l.repo.GetByIDs(ctx, goodIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[id.ID]*SupplierGood, len(goods))
	for _, g := range goods {
		byID[g.ID] = g
	}
	return byID, nil
}

// ListByBusiness returns all supplier goods of a business.
func (l *Ledger) ListByBusiness(ctx context.Context, businessID id.ID) ([]*SupplierGood, error) {
	return l.repo.ListByBusiness(ctx, businessID)
}
