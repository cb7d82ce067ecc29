package measure

import (
	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/types"
)

// Convert converts a quantity from one unit to another within the same
// dimension. The result is rounded to 4 decimal places to match the
// fixed-point scale used by the stock ledger.
func Convert(qty decimal.Decimal, from, to Unit) (decimal.Decimal, error) {
	srcFactor, ok := factors[from]
	if !ok {
		return decimal.Zero, apperror.NewValidation("unknown measurement unit").
			WithDetail("unit", string(from))
	}
	dstFactor, ok := factors[to]
	if !ok {
		return decimal.Zero, apperror.NewValidation("unknown measurement unit").
			WithDetail("unit", string(to))
	}

	if qty.IsNegative() {
		return decimal.Zero, apperror.NewValidation("quantity must not be negative").
			WithDetail("quantity", qty.String())
	}

	if srcFactor.dimension != dstFactor.dimension {
		return decimal.Zero, apperror.NewConversion(string(from), string(to))
	}

	if from == to {
		return qty, nil
	}

	// Convert to base unit first, then to target:
	// qty * source.factor / target.factor
	result := qty.Mul(srcFactor.toBase).Div(dstFactor.toBase)
	return result.Round(4), nil
}

// ConvertQuantity converts a fixed-point ledger quantity between units.
func ConvertQuantity(q types.Quantity, from, to Unit) (types.Quantity, error) {
	if from == to {
		return q, nil
	}

	converted, err := Convert(decimal.NewFromFloat(q.Float64()), from, to)
	if err != nil {
		return 0, err
	}

	f, _ := converted.Float64()
	return types.NewQuantityFromFloat64(f), nil
}
