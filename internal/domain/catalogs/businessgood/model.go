// Package businessgood provides read-only access to business goods.
// A business good is a sellable menu item: either a recipe made of
// supplier-good ingredients, or a set menu bundling other business goods.
// Ownership of these documents stays with the menu service; this core
// only reads them to project ingredient consumption.
package businessgood

import (
	"context"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/measure"
)

// BusinessGood represents a sellable item.
// Invariant: exactly one of Ingredients and SetMenuIDs is populated.
type BusinessGood struct {
	ID         id.ID  `db:"id" json:"id"`
	BusinessID id.ID  `db:"business_id" json:"businessId"`
	Name       string `db:"name" json:"name"`

	Ingredients []Ingredient `db:"-" json:"ingredients,omitempty"`
	SetMenuIDs  []id.ID      `db:"-" json:"setMenuIds,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Ingredient links a business good to the supplier good it consumes.
type Ingredient struct {
	SupplierGoodID id.ID `db:"supplier_good_id" json:"supplierGoodId"`

	// MeasurementUnit is the recipe's unit, which may differ from the
	// supplier good's ledger unit.
	MeasurementUnit measure.Unit `db:"measurement_unit" json:"measurementUnit"`

	// RequiredQuantity is consumed per sold item.
	RequiredQuantity types.Quantity `db:"required_quantity" json:"requiredQuantity"`
}

// IsSetMenu reports whether the good is a bundle of other goods.
func (g *BusinessGood) IsSetMenu() bool {
	return len(g.SetMenuIDs) > 0
}

// Validate checks entity invariants.
func (g *BusinessGood) Validate(ctx context.Context) error {
	if id.IsNil(g.BusinessID) {
		return apperror.NewValidation("business is required").
			WithDetail("field", "businessId")
	}

	hasIngredients := len(g.Ingredients) > 0
	hasSetMenu := len(g.SetMenuIDs) > 0

	if hasIngredients == hasSetMenu {
		return apperror.NewValidation("exactly one of ingredients and setMenuIds must be populated").
			WithDetail("field", "ingredients")
	}

	for i, ing := range g.Ingredients {
		if id.IsNil(ing.SupplierGoodID) {
			return apperror.NewValidation("ingredient supplier good is required").
				WithDetail("index", i)
		}
		if !ing.MeasurementUnit.IsValid() {
			return apperror.NewValidation("invalid ingredient measurement unit").
				WithDetail("index", i).
				WithDetail("value", string(ing.MeasurementUnit))
		}
		if !ing.RequiredQuantity.IsPositive() {
			return apperror.NewValidation("ingredient quantity must be positive").
				WithDetail("index", i)
		}
	}

	return nil
}
