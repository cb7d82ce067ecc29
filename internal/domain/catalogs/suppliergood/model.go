// Package suppliergood provides the SupplierGood catalog and its stock ledger.
// A supplier good is the raw product purchased from suppliers; the ledger
// tracks the live estimate of on-hand stock between physical inventories.
package suppliergood

import (
	"context"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/measure"
)

// SupplierGood represents a raw product tracked in stock.
// The core never creates or destroys supplier goods; it only mutates the
// running count and the last-inventory stamp.
type SupplierGood struct {
	ID         id.ID  `db:"id" json:"id"`
	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Name       string `db:"name" json:"name"`

	// MeasurementUnit is the unit all ledger quantities are expressed in.
	MeasurementUnit measure.Unit `db:"measurement_unit" json:"measurementUnit"`

	// ParLevel is the target stock level used for reorder math.
	ParLevel types.Quantity `db:"par_level" json:"parLevel"`

	// DynamicCount is the live on-hand estimate, adjusted by every order
	// and purchase event since the last inventory.
	DynamicCount types.Quantity `db:"dynamic_count" json:"dynamicCountFromLastInventory"`

	// LastInventoryCountDate is stamped when a cycle finalization resyncs
	// the ledger with a physical count.
	LastInventoryCountDate *time.Time `db:"last_inventory_count_date" json:"lastInventoryCountDate,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Validate checks entity invariants.
func (g *SupplierGood) Validate(ctx context.Context) error {
	if id.IsNil(g.BusinessID) {
		return apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}

	if g.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if !g.MeasurementUnit.IsValid() {
		return apperror.NewValidation("invalid measurement unit").
			WithDetail("field", "measurementUnit").
			WithDetail("value", string(g.MeasurementUnit))
	}

	if g.ParLevel.IsNegative() {
		return apperror.NewValidation("par level must not be negative").
			WithDetail("field", "parLevel")
	}

	return nil
}
