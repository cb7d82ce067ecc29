package measure

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/types"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		qty  string
		from Unit
		to   Unit
		want string
	}{
		{"kg to g", "2.5", Kilogram, Gram, "2500"},
		{"g to kg", "250", Gram, Kilogram, "0.25"},
		{"lb to oz", "1", Pound, Ounce, "16"},
		{"oz to g", "1", Ounce, Gram, "28.3495"},
		{"l to ml", "1.5", Liter, Milliliter, "1500"},
		{"gal to qt", "2", Gallon, Quart, "8"},
		{"Tbs to tsp", "1", Tablespoon, Teaspoon, "3"},
		{"cup to fl-oz", "1", Cup, FluidOunce, "8"},
		{"pnt to cup", "1", Pint, Cup, "2"},
		{"kl to l", "0.25", Kiloliter, Liter, "250"},
		{"same unit identity", "7.1234", Gram, Gram, "7.1234"},
		{"zero quantity", "0", Kilogram, Pound, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(decimal.RequireFromString(tt.qty), tt.from, tt.to)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)),
				"want %s, got %s", tt.want, got)
		})
	}
}

func TestConvert_DimensionMismatch(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(1), Kilogram, Liter)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConversion, appErr.Code)

	// Other direction must fail too.
	_, err = Convert(decimal.NewFromInt(1), Gallon, Pound)
	require.Error(t, err)
}

func TestConvert_InvalidInput(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(1), Unit("stone"), Gram)
	require.Error(t, err)

	_, err = Convert(decimal.NewFromInt(-1), Gram, Kilogram)
	require.Error(t, err)
}

func TestConvertQuantity(t *testing.T) {
	q := types.NewQuantityFromFloat64(1.5)

	got, err := ConvertQuantity(q, Kilogram, Gram)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(1500), got)

	// Identity conversion must be exact, not round-tripped through decimal.
	same, err := ConvertQuantity(q, Cup, Cup)
	require.NoError(t, err)
	assert.Equal(t, q, same)
}

func TestUnitDimension(t *testing.T) {
	for _, u := range All() {
		assert.True(t, u.IsValid(), "unit %s", u)
		_, ok := u.Dimension()
		assert.True(t, ok, "unit %s", u)
	}

	_, ok := Unit("bushel").Dimension()
	assert.False(t, ok)
}
