// Package consumption projects sold business goods onto supplier-good
// stock deltas and applies them to the ledger.
package consumption

import (
	"context"
	"fmt"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/businessgood"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/domain/measure"
	"mise/pkg/logger"
)

// Direction of a projection: consume debits the ledger, reverse credits
// it back on order cancellation.
type Direction string

const (
	Consume Direction = "consume"
	Reverse Direction = "reverse"
)

// Delta is one supplier-good adjustment produced by projection, still in
// the recipe's measurement unit.
type Delta struct {
	SupplierGoodID id.ID
	Unit           measure.Unit
	Quantity       types.Quantity
}

// Projector expands ordered business goods into supplier-good deltas.
type Projector struct {
	businessGoods businessgood.Repository
	ledger        *suppliergood.Ledger
}

// NewProjector creates a new consumption projector.
func NewProjector(businessGoods businessgood.Repository, ledger *suppliergood.Ledger) *Projector {
	return &Projector{
		businessGoods: businessGoods,
		ledger:        ledger,
	}
}

// Project resolves the supplier-good quantities consumed by the given
// business goods. Recipe goods emit one delta per ingredient; set menus
// are expanded one level to the ingredients of their member goods and
// contribute no direct rows themselves. Duplicate ids in the input are
// intentional: each occurrence is one sold item.
func (p *Projector) Project(ctx context.Context, businessGoodIDs []id.ID) ([]Delta, error) {
	if len(businessGoodIDs) == 0 {
		return nil, nil
	}

	goods, err := p.businessGoods.GetByIDs(ctx, dedupe(businessGoodIDs))
	if err != nil {
		return nil, fmt.Errorf("fetch business goods: %w", err)
	}

	var deltas []Delta
	for _, goodID := range businessGoodIDs {
		good, ok := goods[goodID]
		if !ok {
			return nil, apperror.NewNotFound("business good", goodID)
		}

		if !good.IsSetMenu() {
			deltas = appendIngredients(deltas, good)
			continue
		}

		members, err := p.businessGoods.GetByIDs(ctx, good.SetMenuIDs)
		if err != nil {
			return nil, fmt.Errorf("fetch set menu members: %w", err)
		}
		for _, memberID := range good.SetMenuIDs {
			member, ok := members[memberID]
			if !ok {
				return nil, apperror.NewNotFound("business good", memberID)
			}
			if member.IsSetMenu() {
				// Nested set menus are not modeled; skip rather than recurse.
				logger.Warn(ctx, "nested set menu skipped during projection",
					"set_menu_id", good.ID,
					"member_id", memberID,
				)
				continue
			}
			deltas = appendIngredients(deltas, member)
		}
	}

	return deltas, nil
}

// Apply converts each delta to the supplier good's ledger unit and
// adjusts the ledger: negative for consume, positive for reverse.
func (p *Projector) Apply(ctx context.Context, deltas []Delta, direction Direction) error {
	if len(deltas) == 0 {
		return nil
	}

	goodIDs := make([]id.ID, 0, len(deltas))
	for _, d := range deltas {
		goodIDs = append(goodIDs, d.SupplierGoodID)
	}

	goods, err := p.ledger.GetByIDs(ctx, dedupe(goodIDs))
	if err != nil {
		return fmt.Errorf("fetch supplier goods: %w", err)
	}

	// Aggregate per supplier good so each good gets one increment.
	totals := make(map[id.ID]types.Quantity, len(goods))
	order := make([]id.ID, 0, len(goods))
	for _, d := range deltas {
		good, ok := goods[d.SupplierGoodID]
		if !ok {
			return apperror.NewNotFound("supplier good", d.SupplierGoodID)
		}

		qty, err := measure.ConvertQuantity(d.Quantity, d.Unit, good.MeasurementUnit)
		if err != nil {
			return fmt.Errorf("convert %s for supplier good %s: %w", d.Unit, good.ID, err)
		}

		if _, seen := totals[d.SupplierGoodID]; !seen {
			order = append(order, d.SupplierGoodID)
		}
		totals[d.SupplierGoodID] += qty
	}

	for _, goodID := range order {
		delta := totals[goodID]
		if direction == Consume {
			delta = delta.Neg()
		}
		if err := p.ledger.Adjust(ctx, goodID, delta); err != nil {
			return err
		}
	}

	logger.Info(ctx, "consumption projected onto ledger",
		"direction", string(direction),
		"supplier_goods", len(order),
	)
	return nil
}

// ConsumeOrder is the order-creation hook: debit every ingredient of the
// ordered business goods from the ledger.
func (p *Projector) ConsumeOrder(ctx context.Context, businessGoodIDs []id.ID) error {
	deltas, err := p.Project(ctx, businessGoodIDs)
	if err != nil {
		return err
	}
	return p.Apply(ctx, deltas, Consume)
}

// ReverseOrder is the order-cancellation hook: credit the same
// quantities back, but only while the order may still be cancelled.
func (p *Projector) ReverseOrder(ctx context.Context, status OrderStatus, businessGoodIDs []id.ID) error {
	if err := status.CanCancel(); err != nil {
		return err
	}

	deltas, err := p.Project(ctx, businessGoodIDs)
	if err != nil {
		return err
	}
	return p.Apply(ctx, deltas, Reverse)
}

func appendIngredients(deltas []Delta, good *businessgood.BusinessGood) []Delta {
	for _, ing := range good.Ingredients {
		deltas = append(deltas, Delta{
			SupplierGoodID: ing.SupplierGoodID,
			Unit:           ing.MeasurementUnit,
			Quantity:       ing.RequiredQuantity,
		})
	}
	return deltas
}

func dedupe(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
