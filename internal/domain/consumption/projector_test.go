package consumption

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/businessgood"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/domain/measure"
)

type fakeBusinessGoods struct {
	goods map[id.ID]*businessgood.BusinessGood
}

func (r *fakeBusinessGoods) GetByID(_ context.Context, goodID id.ID) (*businessgood.BusinessGood, error) {
	g, ok := r.goods[goodID]
	if !ok {
		return nil, apperror.NewNotFound("business good", goodID)
	}
	return g, nil
}

func (r *fakeBusinessGoods) GetByIDs(_ context.Context, goodIDs []id.ID) (map[id.ID]*businessgood.BusinessGood, error) {
	out := make(map[id.ID]*businessgood.BusinessGood)
	for _, gid := range goodIDs {
		if g, ok := r.goods[gid]; ok {
			out[gid] = g
		}
	}
	return out, nil
}

type ledgerFixture struct {
	repo   *fakeSupplierRepo
	ledger *suppliergood.Ledger
}

type fakeSupplierRepo struct {
	goods map[id.ID]*suppliergood.SupplierGood
}

func (r *fakeSupplierRepo) GetByID(_ context.Context, goodID id.ID) (*suppliergood.SupplierGood, error) {
	g, ok := r.goods[goodID]
	if !ok {
		return nil, apperror.NewNotFound("supplier good", goodID)
	}
	copied := *g
	return &copied, nil
}

func (r *fakeSupplierRepo) GetByIDs(ctx context.Context, goodIDs []id.ID) ([]*suppliergood.SupplierGood, error) {
	var out []*suppliergood.SupplierGood
	for _, gid := range goodIDs {
		if g, err := r.GetByID(ctx, gid); err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeSupplierRepo) ListByBusiness(_ context.Context, _ id.ID) ([]*suppliergood.SupplierGood, error) {
	return nil, nil
}

func (r *fakeSupplierRepo) AdjustDynamicCount(_ context.Context, goodID id.ID, delta types.Quantity) error {
	g, ok := r.goods[goodID]
	if !ok {
		return apperror.NewNotFound("supplier good", goodID)
	}
	g.DynamicCount += delta
	return nil
}

func (r *fakeSupplierRepo) SetFinalCount(_ context.Context, goodID id.ID, counted types.Quantity, _ time.Time) error {
	g, ok := r.goods[goodID]
	if !ok {
		return apperror.NewNotFound("supplier good", goodID)
	}
	g.DynamicCount = counted
	return nil
}

func supplierGood(unit measure.Unit, count float64) *suppliergood.SupplierGood {
	return &suppliergood.SupplierGood{
		ID:              id.New(),
		BusinessID:      id.New(),
		Name:            "good",
		MeasurementUnit: unit,
		ParLevel:        types.NewQuantityFromFloat64(100),
		DynamicCount:    types.NewQuantityFromFloat64(count),
	}
}

func newFixture(goods ...*suppliergood.SupplierGood) *ledgerFixture {
	m := make(map[id.ID]*suppliergood.SupplierGood)
	for _, g := range goods {
		m[g.ID] = g
	}
	repo := &fakeSupplierRepo{goods: m}
	return &ledgerFixture{repo: repo, ledger: suppliergood.NewLedger(repo)}
}

func recipe(ingredients ...businessgood.Ingredient) *businessgood.BusinessGood {
	return &businessgood.BusinessGood{
		ID:          id.New(),
		BusinessID:  id.New(),
		Name:        "dish",
		Ingredients: ingredients,
	}
}

func TestProject_RecipeIngredients(t *testing.T) {
	flour := supplierGood(measure.Kilogram, 80)
	milk := supplierGood(measure.Liter, 40)

	bread := recipe(
		businessgood.Ingredient{SupplierGoodID: flour.ID, MeasurementUnit: measure.Gram, RequiredQuantity: types.NewQuantityFromFloat64(500)},
		businessgood.Ingredient{SupplierGoodID: milk.ID, MeasurementUnit: measure.Milliliter, RequiredQuantity: types.NewQuantityFromFloat64(250)},
	)
	goods := &fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{bread.ID: bread}}
	p := NewProjector(goods, newFixture(flour, milk).ledger)

	deltas, err := p.Project(context.Background(), []id.ID{bread.ID})
	require.NoError(t, err)
	require.Len(t, deltas, 2)
	assert.Equal(t, flour.ID, deltas[0].SupplierGoodID)
	assert.Equal(t, measure.Gram, deltas[0].Unit)
	assert.Equal(t, milk.ID, deltas[1].SupplierGoodID)
}

func TestProject_SetMenuExpandsOneLevel(t *testing.T) {
	cheese := supplierGood(measure.Gram, 900)

	pizza := recipe(businessgood.Ingredient{
		SupplierGoodID: cheese.ID, MeasurementUnit: measure.Gram, RequiredQuantity: types.NewQuantityFromFloat64(120),
	})
	nestedMenu := &businessgood.BusinessGood{ID: id.New(), BusinessID: pizza.BusinessID, Name: "combo in combo", SetMenuIDs: []id.ID{pizza.ID}}
	menu := &businessgood.BusinessGood{ID: id.New(), BusinessID: pizza.BusinessID, Name: "combo", SetMenuIDs: []id.ID{pizza.ID, nestedMenu.ID}}

	goods := &fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{
		pizza.ID: pizza, nestedMenu.ID: nestedMenu, menu.ID: menu,
	}}
	p := NewProjector(goods, newFixture(cheese).ledger)

	deltas, err := p.Project(context.Background(), []id.ID{menu.ID})
	require.NoError(t, err)

	// The set menu contributes its member's ingredients; the nested set
	// menu reference is skipped, not recursed into.
	require.Len(t, deltas, 1)
	assert.Equal(t, cheese.ID, deltas[0].SupplierGoodID)
	assert.Equal(t, types.NewQuantityFromFloat64(120), deltas[0].Quantity)
}

func TestConsumeReverse_RoundTrip(t *testing.T) {
	flour := supplierGood(measure.Kilogram, 80)
	fix := newFixture(flour)

	bread := recipe(businessgood.Ingredient{
		SupplierGoodID: flour.ID, MeasurementUnit: measure.Kilogram, RequiredQuantity: types.NewQuantityFromFloat64(10),
	})
	goods := &fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{bread.ID: bread}}
	p := NewProjector(goods, fix.ledger)
	ctx := context.Background()

	require.NoError(t, p.ConsumeOrder(ctx, []id.ID{bread.ID}))
	assert.Equal(t, types.NewQuantityFromFloat64(70), fix.repo.goods[flour.ID].DynamicCount)

	require.NoError(t, p.ReverseOrder(ctx, OrderPending, []id.ID{bread.ID}))
	assert.Equal(t, types.NewQuantityFromFloat64(80), fix.repo.goods[flour.ID].DynamicCount)
}

func TestConsume_ConvertsRecipeUnits(t *testing.T) {
	milk := supplierGood(measure.Liter, 10)
	fix := newFixture(milk)

	latte := recipe(businessgood.Ingredient{
		SupplierGoodID: milk.ID, MeasurementUnit: measure.Milliliter, RequiredQuantity: types.NewQuantityFromFloat64(250),
	})
	goods := &fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{latte.ID: latte}}
	p := NewProjector(goods, fix.ledger)

	// Two lattes in one order: same id twice.
	require.NoError(t, p.ConsumeOrder(context.Background(), []id.ID{latte.ID, latte.ID}))
	assert.Equal(t, types.NewQuantityFromFloat64(9.5), fix.repo.goods[milk.ID].DynamicCount)
}

func TestReverse_GateRejectsPreparedOrders(t *testing.T) {
	flour := supplierGood(measure.Kilogram, 80)
	fix := newFixture(flour)

	bread := recipe(businessgood.Ingredient{
		SupplierGoodID: flour.ID, MeasurementUnit: measure.Kilogram, RequiredQuantity: types.NewQuantityFromFloat64(10),
	})
	goods := &fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{bread.ID: bread}}
	p := NewProjector(goods, fix.ledger)

	for _, status := range []OrderStatus{OrderStarted, OrderDone, OrderDontMake, OrderStartedHold} {
		err := p.ReverseOrder(context.Background(), status, []id.ID{bread.ID})
		require.Error(t, err, "status %s", status)
		appErr, ok := apperror.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeOrderNotCancellable, appErr.Code)
	}

	// Ledger untouched by rejected reversals.
	assert.Equal(t, types.NewQuantityFromFloat64(80), fix.repo.goods[flour.ID].DynamicCount)
}

func TestProject_MissingBusinessGood(t *testing.T) {
	p := NewProjector(&fakeBusinessGoods{goods: map[id.ID]*businessgood.BusinessGood{}}, newFixture().ledger)

	_, err := p.Project(context.Background(), []id.ID{id.New()})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}
