package cycle

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/pkg/logger"
)

// Engine orchestrates count submission, re-edit, finalization and
// post-finalization resets, keeping the cycle document and the supplier
// good ledger in step.
type Engine struct {
	repo      Repository
	ledger    *suppliergood.Ledger
	txManager tx.Manager
}

// NewEngine creates a new reconciliation engine.
func NewEngine(repo Repository, ledger *suppliergood.Ledger, txManager tx.Manager) *Engine {
	return &Engine{
		repo:      repo,
		ledger:    ledger,
		txManager: txManager,
	}
}

// Create opens a new cycle for a business over the given supplier goods.
// Goods already claimed by another open cycle of the business are
// rejected to prevent double counting.
func (s *Engine) Create(ctx context.Context, businessID id.ID, title string, supplierGoodIDs []id.ID, doneBy []id.ID, comments string) (*Cycle, error) {
	if id.IsNil(businessID) {
		return nil, apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}
	if len(supplierGoodIDs) == 0 {
		return nil, apperror.NewValidation("at least one supplier good is required").
			WithDetail("field", "supplierGoodIds")
	}

	goods, err := s.ledger.GetByIDs(ctx, supplierGoodIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch supplier goods: %w", err)
	}
	for _, goodID := range supplierGoodIDs {
		if _, ok := goods[goodID]; !ok {
			return nil, apperror.NewNotFound("supplier good", goodID.String())
		}
	}

	claimed, err := s.repo.ClaimedSupplierGoodIDs(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("check claimed goods: %w", err)
	}
	claimedSet := make(map[id.ID]struct{}, len(claimed))
	for _, goodID := range claimed {
		claimedSet[goodID] = struct{}{}
	}
	for _, goodID := range supplierGoodIDs {
		if _, taken := claimedSet[goodID]; taken {
			return nil, apperror.NewConflict("supplier good is already claimed by an open inventory cycle").
				WithDetail("supplier_good_id", goodID.String())
		}
	}

	c := NewCycle(businessID, title, doneBy)
	c.Comments = comments
	for _, goodID := range supplierGoodIDs {
		c.AddGood(goodID, goods[goodID].DynamicCount)
	}

	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory cycle created",
		"cycle_id", c.ID,
		"business_id", businessID,
		"goods", len(c.Goods),
	)
	return c, nil
}

// GetByID loads a cycle with its full count history.
func (s *Engine) GetByID(ctx context.Context, cycleID id.ID) (*Cycle, error) {
	return s.repo.GetByID(ctx, cycleID)
}

// ListByBusiness returns a business's cycles.
func (s *Engine) ListByBusiness(ctx context.Context, businessID id.ID) ([]*Cycle, error) {
	return s.repo.ListByBusiness(ctx, businessID)
}

// RecordCount submits one physical count for a supplier good in an open
// cycle. The submitted quantity becomes the entry's new running count.
func (s *Engine) RecordCount(ctx context.Context, cycleID, supplierGoodID id.ID, counted types.Quantity, userID id.ID, comments string) (*Count, error) {
	c, err := s.repo.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if err := c.CanCount(); err != nil {
		return nil, err
	}

	entry, err := c.EntryFor(supplierGoodID)
	if err != nil {
		return nil, err
	}

	good, err := s.ledger.GetByID(ctx, supplierGoodID)
	if err != nil {
		return nil, err
	}

	count, err := entry.RecordCount(good.ParLevel, counted, userID, comments)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.AppendCount(ctx, cycleID, supplierGoodID, *count); err != nil {
			return fmt.Errorf("append count: %w", err)
		}
		return s.repo.UpdateEntryStats(ctx, cycleID, supplierGoodID, entry.DynamicSystemCount, entry.AverageDeviationPercent)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory count recorded",
		"cycle_id", cycleID,
		"supplier_good_id", supplierGoodID,
		"counted", counted.String(),
		"deviation_percent", count.DeviationPercent,
	)
	return count, nil
}

// ReeditCount replaces the most recent count of an entry, preserving the
// prior values in the count's audit block. A reason is mandatory.
func (s *Engine) ReeditCount(ctx context.Context, cycleID, supplierGoodID, countID id.ID, newQuantity types.Quantity, reason string, userID id.ID) (*Count, error) {
	c, err := s.repo.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if err := c.CanCount(); err != nil {
		return nil, err
	}

	entry, err := c.EntryFor(supplierGoodID)
	if err != nil {
		return nil, err
	}

	good, err := s.ledger.GetByID(ctx, supplierGoodID)
	if err != nil {
		return nil, err
	}

	count, err := entry.ReeditLatest(countID, newQuantity, good.ParLevel, reason, userID)
	if err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateCount(ctx, cycleID, supplierGoodID, *count); err != nil {
			return fmt.Errorf("update count: %w", err)
		}
		return s.repo.UpdateEntryStats(ctx, cycleID, supplierGoodID, entry.DynamicSystemCount, entry.AverageDeviationPercent)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "inventory count re-edited",
		"cycle_id", cycleID,
		"supplier_good_id", supplierGoodID,
		"count_id", countID,
		"reason", reason,
	)
	return count, nil
}

// Finalize locks the cycle and resyncs the ledger with the supplied
// final counts. Every entry must receive a count and resolve to an
// existing supplier good, or nothing mutates. The conditional flip of
// set_final_count serializes concurrent finalization attempts: the
// loser observes the cycle as already finalized.
func (s *Engine) Finalize(ctx context.Context, cycleID id.ID, finalCounts map[id.ID]types.Quantity, doneBy []id.ID, userID id.ID) (*Cycle, error) {
	c, err := s.repo.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if c.SetFinalCount {
		return nil, apperror.NewCycleLocked(cycleID.String())
	}

	goodIDs := make([]id.ID, 0, len(c.Goods))
	for _, entry := range c.Goods {
		goodIDs = append(goodIDs, entry.SupplierGoodID)
	}

	goods, err := s.ledger.GetByIDs(ctx, goodIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch supplier goods: %w", err)
	}

	// All-or-nothing precondition: every entry needs a final quantity
	// and a resolvable supplier good before any write happens.
	for _, entry := range c.Goods {
		if _, ok := goods[entry.SupplierGoodID]; !ok {
			return nil, apperror.NewNotFound("supplier good", entry.SupplierGoodID.String())
		}
		if _, ok := finalCounts[entry.SupplierGoodID]; !ok {
			return nil, apperror.NewValidation("final count missing for supplier good").
				WithDetail("supplier_good_id", entry.SupplierGoodID.String())
		}
	}

	countedDate := time.Now().UTC()
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// Flip the lock first: the row update serializes concurrent
		// finalizers, and a rollback reopens the cycle if any per-good
		// write below fails.
		won, err := s.repo.MarkFinalized(ctx, cycleID, countedDate, doneBy)
		if err != nil {
			return fmt.Errorf("mark finalized: %w", err)
		}
		if !won {
			return apperror.NewCycleLocked(cycleID.String())
		}

		for i := range c.Goods {
			entry := &c.Goods[i]
			good := goods[entry.SupplierGoodID]
			counted := finalCounts[entry.SupplierGoodID]

			count := entry.RecordFinalCount(good.DynamicCount, good.ParLevel, counted, userID)
			if err := s.repo.AppendCount(ctx, cycleID, entry.SupplierGoodID, *count); err != nil {
				return fmt.Errorf("append final count: %w", err)
			}
			if err := s.repo.UpdateEntryStats(ctx, cycleID, entry.SupplierGoodID, entry.DynamicSystemCount, entry.AverageDeviationPercent); err != nil {
				return fmt.Errorf("update entry stats: %w", err)
			}
			if err := s.ledger.Finalize(ctx, entry.SupplierGoodID, counted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.SetFinalCount = true
	c.CountedDate = &countedDate
	if len(doneBy) > 0 {
		c.DoneBy = doneBy
	}

	logger.Info(ctx, "inventory cycle finalized",
		"cycle_id", cycleID,
		"business_id", c.BusinessID,
		"goods", len(c.Goods),
	)
	return c, nil
}

// ResetFinalizedCounts corrects specific goods of a finalized cycle,
// re-applying the corrected quantities to the ledger. History is
// appended, never overwritten, and the reason is mandatory.
func (s *Engine) ResetFinalizedCounts(ctx context.Context, cycleID id.ID, corrections map[id.ID]types.Quantity, reason string, userID id.ID) (*Cycle, error) {
	if reason == "" {
		return nil, apperror.NewMissingReason()
	}
	if len(corrections) == 0 {
		return nil, apperror.NewValidation("at least one correction is required").
			WithDetail("field", "corrections")
	}

	c, err := s.repo.GetByID(ctx, cycleID)
	if err != nil {
		return nil, err
	}
	if !c.SetFinalCount {
		return nil, apperror.NewValidation("reset applies only to finalized cycles").
			WithDetail("cycle_id", cycleID.String())
	}

	goodIDs := make([]id.ID, 0, len(corrections))
	for goodID := range corrections {
		if _, err := c.EntryFor(goodID); err != nil {
			return nil, err
		}
		goodIDs = append(goodIDs, goodID)
	}

	goods, err := s.ledger.GetByIDs(ctx, goodIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch supplier goods: %w", err)
	}
	for _, goodID := range goodIDs {
		if _, ok := goods[goodID]; !ok {
			return nil, apperror.NewNotFound("supplier good", goodID.String())
		}
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, goodID := range goodIDs {
			entry, _ := c.EntryFor(goodID)
			corrected := corrections[goodID]

			count, err := entry.RecordCorrection(goods[goodID].ParLevel, corrected, reason, userID)
			if err != nil {
				return err
			}
			if err := s.repo.AppendCount(ctx, cycleID, goodID, *count); err != nil {
				return fmt.Errorf("append correction: %w", err)
			}
			if err := s.repo.UpdateEntryStats(ctx, cycleID, goodID, entry.DynamicSystemCount, entry.AverageDeviationPercent); err != nil {
				return fmt.Errorf("update entry stats: %w", err)
			}
			if err := s.ledger.Finalize(ctx, goodID, corrected); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "finalized cycle counts reset",
		"cycle_id", cycleID,
		"goods", len(goodIDs),
		"reason", reason,
	)
	return c, nil
}
