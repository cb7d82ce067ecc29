package purchase

import (
	"context"
	"fmt"
	"time"

	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/domain/documents/cycle"
	"mise/pkg/logger"
)

// Service manages purchase records and bridges every item mutation onto
// the business's open inventory cycle.
//
// The bridge contract: an item add, edit or delete commits in one
// transaction with the record's total amount increment and, when an open
// cycle tracks the supplier good, with the matching increment of that
// entry's running count. A missing open cycle skips the sync and is
// logged, not failed: purchases may land between inventory cycles.
type Service struct {
	repo      Repository
	cycles    cycle.Repository
	ledger    *suppliergood.Ledger
	txManager tx.Manager
}

// NewService creates a new purchase service.
func NewService(repo Repository, cycles cycle.Repository, ledger *suppliergood.Ledger, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		cycles:    cycles,
		ledger:    ledger,
		txManager: txManager,
	}
}

// Create persists a new empty purchase record.
func (s *Service) Create(ctx context.Context, businessID id.ID, title string, purchaseDate time.Time) (*Record, error) {
	r := NewRecord(businessID, title, purchaseDate)
	if err := r.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase record created",
		"purchase_id", r.ID,
		"business_id", businessID,
	)
	return r, nil
}

// GetByID loads a purchase record with its items.
func (s *Service) GetByID(ctx context.Context, purchaseID id.ID) (*Record, error) {
	return s.repo.GetByID(ctx, purchaseID)
}

// ListByBusiness returns a business's purchase records.
func (s *Service) ListByBusiness(ctx context.Context, businessID id.ID) ([]*Record, error) {
	return s.repo.ListByBusiness(ctx, businessID)
}

// AddItem appends a purchased line to the record, bumping the total
// amount and the open cycle's matching running count atomically.
func (s *Service) AddItem(ctx context.Context, purchaseID id.ID, supplierGoodID id.ID, quantity types.Quantity, price types.MinorUnits) (*Item, error) {
	r, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	item := Item{
		ID:                id.New(),
		SupplierGoodID:    supplierGoodID,
		QuantityPurchased: quantity,
		PurchasePrice:     price,
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}

	// The good must exist before it can be purchased.
	if _, err := s.ledger.GetByID(ctx, supplierGoodID); err != nil {
		return nil, err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.InsertItem(ctx, purchaseID, item); err != nil {
			return fmt.Errorf("insert purchase item: %w", err)
		}
		if err := s.repo.IncrementTotalAmount(ctx, purchaseID, price); err != nil {
			return fmt.Errorf("increment total amount: %w", err)
		}
		return s.syncOpenCycle(ctx, r.BusinessID, supplierGoodID, quantity)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase item added",
		"purchase_id", purchaseID,
		"supplier_good_id", supplierGoodID,
		"quantity", quantity.String(),
	)
	return &item, nil
}

// EditItem replaces a purchased line, applying the quantity and price
// differences to the cycle entry and total amount atomically.
func (s *Service) EditItem(ctx context.Context, purchaseID, itemID id.ID, quantity types.Quantity, price types.MinorUnits) (*Item, error) {
	r, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	prior, err := r.ItemByID(itemID)
	if err != nil {
		return nil, err
	}

	updated := Item{
		ID:                itemID,
		SupplierGoodID:    prior.SupplierGoodID,
		QuantityPurchased: quantity,
		PurchasePrice:     price,
	}
	if err := updated.Validate(); err != nil {
		return nil, err
	}

	quantityDelta := quantity - prior.QuantityPurchased
	amountDelta := price - prior.PurchasePrice

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateItem(ctx, purchaseID, updated); err != nil {
			return fmt.Errorf("update purchase item: %w", err)
		}
		if !amountDelta.IsZero() {
			if err := s.repo.IncrementTotalAmount(ctx, purchaseID, amountDelta); err != nil {
				return fmt.Errorf("increment total amount: %w", err)
			}
		}
		return s.syncOpenCycle(ctx, r.BusinessID, updated.SupplierGoodID, quantityDelta)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "purchase item edited",
		"purchase_id", purchaseID,
		"item_id", itemID,
		"quantity_delta", quantityDelta.String(),
	)
	return &updated, nil
}

// DeleteItem removes a purchased line, reversing its contribution to the
// total amount and the cycle entry atomically.
func (s *Service) DeleteItem(ctx context.Context, purchaseID, itemID id.ID) error {
	r, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return err
	}
	prior, err := r.ItemByID(itemID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.DeleteItem(ctx, purchaseID, itemID); err != nil {
			return fmt.Errorf("delete purchase item: %w", err)
		}
		if err := s.repo.IncrementTotalAmount(ctx, purchaseID, prior.PurchasePrice.Neg()); err != nil {
			return fmt.Errorf("increment total amount: %w", err)
		}
		return s.syncOpenCycle(ctx, r.BusinessID, prior.SupplierGoodID, prior.QuantityPurchased.Neg())
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase item deleted",
		"purchase_id", purchaseID,
		"item_id", itemID,
	)
	return nil
}

// Delete removes a whole purchase record, reversing every item against
// the open cycle in the same transaction.
func (s *Service) Delete(ctx context.Context, purchaseID id.ID) error {
	r, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return err
	}

	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, item := range r.Items {
			if err := s.syncOpenCycle(ctx, r.BusinessID, item.SupplierGoodID, item.QuantityPurchased.Neg()); err != nil {
				return err
			}
		}
		return s.repo.Delete(ctx, purchaseID)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase record deleted",
		"purchase_id", purchaseID,
		"items", len(r.Items),
	)
	return nil
}

// syncOpenCycle applies a signed running-count increment to the open
// cycle entry tracking the supplier good. No open cycle, or an open
// cycle that does not track the good, skips the sync.
func (s *Service) syncOpenCycle(ctx context.Context, businessID, supplierGoodID id.ID, delta types.Quantity) error {
	if delta.IsZero() {
		return nil
	}

	open, err := s.cycles.GetOpenByBusiness(ctx, businessID)
	if err != nil {
		return fmt.Errorf("find open cycle: %w", err)
	}
	if open == nil {
		logger.Info(ctx, "purchase outside inventory cycle",
			"business_id", businessID,
			"supplier_good_id", supplierGoodID,
		)
		return nil
	}

	found, err := s.cycles.IncrementEntryCount(ctx, open.ID, supplierGoodID, delta)
	if err != nil {
		return fmt.Errorf("increment cycle entry: %w", err)
	}
	if !found {
		logger.Info(ctx, "open cycle does not track purchased good",
			"cycle_id", open.ID,
			"supplier_good_id", supplierGoodID,
		)
		return nil
	}

	logger.Debug(ctx, "purchase synced to open cycle",
		"cycle_id", open.ID,
		"supplier_good_id", supplierGoodID,
		"delta", delta.String(),
	)
	return nil
}
