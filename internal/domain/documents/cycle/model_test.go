package cycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

func qty(v float64) types.Quantity { return types.NewQuantityFromFloat64(v) }

func TestDeviationAgainstSystem(t *testing.T) {
	tests := []struct {
		name    string
		system  float64
		current float64
		want    float64
	}{
		{"shortage", 70, 65, (70.0 - 65.0) / 70.0 * 100},
		{"exact count is zero", 50, 50, 0},
		{"surplus is negative", 50, 60, (50.0 - 60.0) / 50.0 * 100},
		{"zero system uses divisor one", 0, 5, -500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeviationAgainstSystem(qty(tt.system), qty(tt.current))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDeviationAgainstPar(t *testing.T) {
	// Worked example: ledger at 70, counted 65, par 100.
	got := DeviationAgainstPar(qty(70), qty(65), qty(100))
	assert.InDelta(t, 5.0, got, 1e-9)

	// Zero par level uses divisor one.
	got = DeviationAgainstPar(qty(3), qty(1), qty(0))
	assert.InDelta(t, 200.0, got, 1e-9)
}

func TestQuantityNeeded(t *testing.T) {
	assert.Equal(t, qty(35), QuantityNeeded(qty(100), qty(65)))
	assert.Equal(t, qty(0), QuantityNeeded(qty(100), qty(120)))
	assert.Equal(t, qty(0), QuantityNeeded(qty(0), qty(5)))
}

func TestRecordCount(t *testing.T) {
	user := id.New()
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}

	count, err := entry.RecordCount(qty(100), qty(65), user, "walk-in freezer")
	require.NoError(t, err)

	assert.InDelta(t, (70.0-65.0)/70.0*100, count.DeviationPercent, 1e-9)
	assert.Equal(t, qty(35), count.QuantityNeeded)
	assert.Equal(t, qty(70), count.SystemCount)
	assert.Equal(t, qty(65), entry.DynamicSystemCount)
	assert.Equal(t, user, count.CountedByUserID)
	require.Len(t, entry.Counts, 1)
}

func TestRecordCount_NoopGuard(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}

	_, err := entry.RecordCount(qty(100), qty(65), id.New(), "")
	require.NoError(t, err)

	// Resubmitting the identical quantity records nothing.
	_, err = entry.RecordCount(qty(100), qty(65), id.New(), "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeNothingToRecord, appErr.Code)
	assert.Len(t, entry.Counts, 1)
}

func TestRecordCount_RollingAverage(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(100)}
	user := id.New()

	// First count: deviation (100-90)/100*100 = 10.
	_, err := entry.RecordCount(qty(100), qty(90), user, "")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, entry.AverageDeviationPercent, 1e-9)

	// Second count against system 90: (90-72)/90*100 = 20.
	_, err = entry.RecordCount(qty(100), qty(72), user, "")
	require.NoError(t, err)
	assert.InDelta(t, 15.0, entry.AverageDeviationPercent, 1e-9)

	// Third count against system 72: (72-54)/72*100 = 25.
	_, err = entry.RecordCount(qty(100), qty(54), user, "")
	require.NoError(t, err)
	assert.InDelta(t, (10.0+20.0+25.0)/3, entry.AverageDeviationPercent, 1e-9)
}

func TestRecordCount_RollingAverageSkipsZeroPriors(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(100)}
	user := id.New()

	count, err := entry.RecordCount(qty(100), qty(90), user, "")
	require.NoError(t, err)

	// Re-edit the count back to the system value: deviation drops to zero.
	_, err = entry.ReeditLatest(count.ID, qty(100), qty(100), "typo", user)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, entry.AverageDeviationPercent, 1e-9)

	// The zero-deviation prior does not join the denominator: the next
	// count averages over itself alone.
	_, err = entry.RecordCount(qty(100), qty(80), user, "")
	require.NoError(t, err)
	assert.InDelta(t, 20.0, entry.AverageDeviationPercent, 1e-9)
}

func TestReeditLatest(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}
	counter := id.New()
	editor := id.New()

	count, err := entry.RecordCount(qty(100), qty(65), counter, "")
	require.NoError(t, err)
	originalDeviation := count.DeviationPercent

	edited, err := entry.ReeditLatest(count.ID, qty(68), qty(100), "misread the scale", editor)
	require.NoError(t, err)

	require.NotNil(t, edited.Reedited)
	assert.Equal(t, editor, edited.Reedited.ReeditedByUserID)
	assert.Equal(t, "misread the scale", edited.Reedited.Reason)
	assert.Equal(t, qty(65), edited.Reedited.OriginalQuantity)
	assert.InDelta(t, originalDeviation, edited.Reedited.OriginalDeviationPercent, 1e-9)

	// Deviation recomputed against the same pre-count system value.
	assert.InDelta(t, (70.0-68.0)/70.0*100, edited.DeviationPercent, 1e-9)
	assert.Equal(t, qty(32), edited.QuantityNeeded)
	assert.Equal(t, qty(68), entry.DynamicSystemCount)

	// History length unchanged: replaced, not appended.
	assert.Len(t, entry.Counts, 1)
}

func TestReeditLatest_RequiresReason(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}
	count, err := entry.RecordCount(qty(100), qty(65), id.New(), "")
	require.NoError(t, err)
	before := entry.AverageDeviationPercent

	_, err = entry.ReeditLatest(count.ID, qty(68), qty(100), "", id.New())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingReason, appErr.Code)

	// Original values untouched.
	assert.Equal(t, qty(65), entry.Counts[0].CurrentCountQuantity)
	assert.Nil(t, entry.Counts[0].Reedited)
	assert.Equal(t, before, entry.AverageDeviationPercent)
}

func TestReeditLatest_OnlyMostRecent(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}
	first, err := entry.RecordCount(qty(100), qty(65), id.New(), "")
	require.NoError(t, err)
	firstID := first.ID

	_, err = entry.RecordCount(qty(100), qty(60), id.New(), "")
	require.NoError(t, err)

	_, err = entry.ReeditLatest(firstID, qty(66), qty(100), "late fix", id.New())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestCanCount(t *testing.T) {
	c := NewCycle(id.New(), "August", nil)
	require.NoError(t, c.CanCount())

	c.SetFinalCount = true
	err := c.CanCount()
	require.Error(t, err)
	assert.True(t, apperror.IsCycleLocked(err))
}

func TestValidate(t *testing.T) {
	c := NewCycle(id.New(), "August", nil)
	goodID := id.New()
	c.AddGood(goodID, qty(10))
	require.NoError(t, c.Validate(context.Background()))

	// Duplicate entry.
	c.AddGood(goodID, qty(10))
	require.Error(t, c.Validate(context.Background()))

	// Missing title.
	empty := NewCycle(id.New(), "", nil)
	empty.AddGood(id.New(), qty(1))
	require.Error(t, empty.Validate(context.Background()))

	// No goods.
	bare := NewCycle(id.New(), "August", nil)
	require.Error(t, bare.Validate(context.Background()))
}

func TestRecordFinalCount(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(70)}

	count := entry.RecordFinalCount(qty(70), qty(100), qty(65), id.New())

	assert.Equal(t, KindFinal, count.Kind)
	assert.InDelta(t, 5.0, count.DeviationPercent, 1e-9) // (70-65)/100*100
	assert.Equal(t, qty(35), count.QuantityNeeded)
	assert.Equal(t, qty(65), entry.DynamicSystemCount)
}

func TestRecordCorrection(t *testing.T) {
	entry := &GoodEntry{SupplierGoodID: id.New(), DynamicSystemCount: qty(65)}

	_, err := entry.RecordCorrection(qty(100), qty(63), "", id.New())
	require.Error(t, err)

	count, err := entry.RecordCorrection(qty(100), qty(63), "scale recalibrated", id.New())
	require.NoError(t, err)
	assert.Equal(t, KindCorrection, count.Kind)
	assert.Equal(t, qty(63), entry.DynamicSystemCount)
	assert.Len(t, entry.Counts, 1)
}
