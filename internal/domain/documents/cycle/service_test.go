package cycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/domain/measure"
)

// snapshotter lets the fake transaction manager roll fakes back when the
// transactional closure fails.
type snapshotter interface {
	snapshot() (restore func())
}

type fakeTx struct {
	participants []snapshotter
}

func (m *fakeTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	restores := make([]func(), 0, len(m.participants))
	for _, p := range m.participants {
		restores = append(restores, p.snapshot())
	}
	if err := fn(ctx); err != nil {
		for _, r := range restores {
			r()
		}
		return err
	}
	return nil
}

type fakeCycleRepo struct {
	cycles map[id.ID]*Cycle
}

func newFakeCycleRepo() *fakeCycleRepo {
	return &fakeCycleRepo{cycles: make(map[id.ID]*Cycle)}
}

func cloneCycle(c *Cycle) *Cycle {
	copied := *c
	copied.Goods = make([]GoodEntry, len(c.Goods))
	for i, e := range c.Goods {
		entry := e
		entry.Counts = make([]Count, len(e.Counts))
		for j, cnt := range e.Counts {
			count := cnt
			if cnt.Reedited != nil {
				reedit := *cnt.Reedited
				count.Reedited = &reedit
			}
			entry.Counts[j] = count
		}
		copied.Goods[i] = entry
	}
	return &copied
}

func (r *fakeCycleRepo) snapshot() func() {
	saved := make(map[id.ID]*Cycle, len(r.cycles))
	for cid, c := range r.cycles {
		saved[cid] = cloneCycle(c)
	}
	return func() { r.cycles = saved }
}

func (r *fakeCycleRepo) Create(_ context.Context, c *Cycle) error {
	for _, existing := range r.cycles {
		if existing.BusinessID == c.BusinessID && !existing.SetFinalCount {
			return apperror.NewConflict("an open inventory cycle already exists for this business")
		}
	}
	r.cycles[c.ID] = cloneCycle(c)
	return nil
}

func (r *fakeCycleRepo) GetByID(_ context.Context, cycleID id.ID) (*Cycle, error) {
	c, ok := r.cycles[cycleID]
	if !ok {
		return nil, apperror.NewNotFound("inventory cycle", cycleID.String())
	}
	return cloneCycle(c), nil
}

func (r *fakeCycleRepo) ListByBusiness(_ context.Context, businessID id.ID) ([]*Cycle, error) {
	var out []*Cycle
	for _, c := range r.cycles {
		if c.BusinessID == businessID {
			out = append(out, cloneCycle(c))
		}
	}
	return out, nil
}

func (r *fakeCycleRepo) GetOpenByBusiness(_ context.Context, businessID id.ID) (*Cycle, error) {
	for _, c := range r.cycles {
		if c.BusinessID == businessID && !c.SetFinalCount {
			return cloneCycle(c), nil
		}
	}
	return nil, nil
}

func (r *fakeCycleRepo) ClaimedSupplierGoodIDs(_ context.Context, businessID id.ID) ([]id.ID, error) {
	var out []id.ID
	for _, c := range r.cycles {
		if c.BusinessID != businessID || c.SetFinalCount {
			continue
		}
		for _, e := range c.Goods {
			out = append(out, e.SupplierGoodID)
		}
	}
	return out, nil
}

func (r *fakeCycleRepo) entry(cycleID, supplierGoodID id.ID) (*GoodEntry, error) {
	c, ok := r.cycles[cycleID]
	if !ok {
		return nil, apperror.NewNotFound("inventory cycle", cycleID.String())
	}
	for i := range c.Goods {
		if c.Goods[i].SupplierGoodID == supplierGoodID {
			return &c.Goods[i], nil
		}
	}
	return nil, apperror.NewNotFound("inventory cycle entry", supplierGoodID.String())
}

func (r *fakeCycleRepo) AppendCount(_ context.Context, cycleID, supplierGoodID id.ID, count Count) error {
	e, err := r.entry(cycleID, supplierGoodID)
	if err != nil {
		return err
	}
	e.Counts = append(e.Counts, count)
	return nil
}

func (r *fakeCycleRepo) UpdateCount(_ context.Context, cycleID, supplierGoodID id.ID, count Count) error {
	e, err := r.entry(cycleID, supplierGoodID)
	if err != nil {
		return err
	}
	for i := range e.Counts {
		if e.Counts[i].ID == count.ID {
			e.Counts[i] = count
			return nil
		}
	}
	return apperror.NewNotFound("count", count.ID.String())
}

func (r *fakeCycleRepo) UpdateEntryStats(_ context.Context, cycleID, supplierGoodID id.ID, systemCount types.Quantity, avgDeviationPercent float64) error {
	e, err := r.entry(cycleID, supplierGoodID)
	if err != nil {
		return err
	}
	e.DynamicSystemCount = systemCount
	e.AverageDeviationPercent = avgDeviationPercent
	return nil
}

func (r *fakeCycleRepo) IncrementEntryCount(_ context.Context, cycleID, supplierGoodID id.ID, delta types.Quantity) (bool, error) {
	e, err := r.entry(cycleID, supplierGoodID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	e.DynamicSystemCount += delta
	return true, nil
}

func (r *fakeCycleRepo) MarkFinalized(_ context.Context, cycleID id.ID, countedDate time.Time, doneBy []id.ID) (bool, error) {
	c, ok := r.cycles[cycleID]
	if !ok {
		return false, apperror.NewNotFound("inventory cycle", cycleID.String())
	}
	if c.SetFinalCount {
		return false, nil
	}
	c.SetFinalCount = true
	c.CountedDate = &countedDate
	if len(doneBy) > 0 {
		c.DoneBy = doneBy
	}
	return true, nil
}

type fakeGoodsRepo struct {
	goods map[id.ID]*suppliergood.SupplierGood

	// failFinalizeOn makes SetFinalCount fail for one good to exercise
	// the all-or-nothing finalization path.
	failFinalizeOn id.ID
}

func (r *fakeGoodsRepo) snapshot() func() {
	saved := make(map[id.ID]*suppliergood.SupplierGood, len(r.goods))
	for gid, g := range r.goods {
		copied := *g
		saved[gid] = &copied
	}
	return func() { r.goods = saved }
}

func (r *fakeGoodsRepo) GetByID(_ context.Context, goodID id.ID) (*suppliergood.SupplierGood, error) {
	g, ok := r.goods[goodID]
	if !ok {
		return nil, apperror.NewNotFound("supplier good", goodID.String())
	}
	copied := *g
	return &copied, nil
}

func (r *fakeGoodsRepo) GetByIDs(ctx context.Context, goodIDs []id.ID) ([]*suppliergood.SupplierGood, error) {
	var out []*suppliergood.SupplierGood
	for _, gid := range goodIDs {
		if g, err := r.GetByID(ctx, gid); err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeGoodsRepo) ListByBusiness(_ context.Context, _ id.ID) ([]*suppliergood.SupplierGood, error) {
	return nil, nil
}

func (r *fakeGoodsRepo) AdjustDynamicCount(_ context.Context, goodID id.ID, delta types.Quantity) error {
	g, ok := r.goods[goodID]
	if !ok {
		return apperror.NewNotFound("supplier good", goodID.String())
	}
	g.DynamicCount += delta
	return nil
}

func (r *fakeGoodsRepo) SetFinalCount(_ context.Context, goodID id.ID, counted types.Quantity, countedAt time.Time) error {
	if goodID == r.failFinalizeOn {
		return apperror.NewInternal(errors.New("storage unavailable"))
	}
	g, ok := r.goods[goodID]
	if !ok {
		return apperror.NewNotFound("supplier good", goodID.String())
	}
	g.DynamicCount = counted
	g.LastInventoryCountDate = &countedAt
	return nil
}

type engineFixture struct {
	engine    *Engine
	cycleRepo *fakeCycleRepo
	goodsRepo *fakeGoodsRepo
}

func newEngineFixture(goods ...*suppliergood.SupplierGood) *engineFixture {
	goodsRepo := &fakeGoodsRepo{goods: make(map[id.ID]*suppliergood.SupplierGood)}
	for _, g := range goods {
		goodsRepo.goods[g.ID] = g
	}
	cycleRepo := newFakeCycleRepo()
	manager := &fakeTx{participants: []snapshotter{cycleRepo, goodsRepo}}
	return &engineFixture{
		engine:    NewEngine(cycleRepo, suppliergood.NewLedger(goodsRepo), manager),
		cycleRepo: cycleRepo,
		goodsRepo: goodsRepo,
	}
}

func testGood(businessID id.ID, count, par float64) *suppliergood.SupplierGood {
	return &suppliergood.SupplierGood{
		ID:              id.New(),
		BusinessID:      businessID,
		Name:            "good",
		MeasurementUnit: measure.Kilogram,
		ParLevel:        qty(par),
		DynamicCount:    qty(count),
	}
}

func TestEngineCreate_SeedsEntriesFromLedger(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	milk := testGood(businessID, 40, 60)
	fix := newEngineFixture(flour, milk)

	c, err := fix.engine.Create(context.Background(), businessID, "August", []id.ID{flour.ID, milk.ID}, nil, "")
	require.NoError(t, err)

	require.Len(t, c.Goods, 2)
	assert.Equal(t, qty(70), c.Goods[0].DynamicSystemCount)
	assert.Equal(t, qty(40), c.Goods[1].DynamicSystemCount)
	assert.False(t, c.SetFinalCount)

	stored, err := fix.engine.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, stored.ID)
}

func TestEngineCreate_RejectsUnknownGood(t *testing.T) {
	businessID := id.New()
	fix := newEngineFixture(testGood(businessID, 70, 100))

	_, err := fix.engine.Create(context.Background(), businessID, "August", []id.ID{id.New()}, nil, "")
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEngineCreate_RejectsClaimedGood(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)

	_, err := fix.engine.Create(context.Background(), businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)

	_, err = fix.engine.Create(context.Background(), businessID, "August again", []id.ID{flour.ID}, nil, "")
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeConflict, appErr.Code)
}

func TestEngineRecordCount_PersistsCountAndStats(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)

	count, err := fix.engine.RecordCount(ctx, c.ID, flour.ID, qty(65), id.New(), "dry storage")
	require.NoError(t, err)
	assert.InDelta(t, (70.0-65.0)/70.0*100, count.DeviationPercent, 1e-9)
	assert.Equal(t, qty(35), count.QuantityNeeded)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	require.Len(t, entry.Counts, 1)
	assert.Equal(t, qty(65), entry.DynamicSystemCount)
	assert.InDelta(t, count.DeviationPercent, entry.AverageDeviationPercent, 1e-9)
}

func TestEngineRecordCount_RejectsFinalizedCycle(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)
	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(65)}, nil, id.New())
	require.NoError(t, err)

	_, err = fix.engine.RecordCount(ctx, c.ID, flour.ID, qty(60), id.New(), "")
	require.Error(t, err)
	assert.True(t, apperror.IsCycleLocked(err))
}

func TestEngineReeditCount_AuditsOriginal(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)
	count, err := fix.engine.RecordCount(ctx, c.ID, flour.ID, qty(65), id.New(), "")
	require.NoError(t, err)

	editor := id.New()
	edited, err := fix.engine.ReeditCount(ctx, c.ID, flour.ID, count.ID, qty(68), "misread the scale", editor)
	require.NoError(t, err)
	require.NotNil(t, edited.Reedited)
	assert.Equal(t, qty(65), edited.Reedited.OriginalQuantity)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	require.Len(t, entry.Counts, 1)
	assert.Equal(t, qty(68), entry.Counts[0].CurrentCountQuantity)
	require.NotNil(t, entry.Counts[0].Reedited)
	assert.Equal(t, editor, entry.Counts[0].Reedited.ReeditedByUserID)
}

func TestEngineReeditCount_WithoutReasonLeavesStateUnchanged(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)
	count, err := fix.engine.RecordCount(ctx, c.ID, flour.ID, qty(65), id.New(), "")
	require.NoError(t, err)

	_, err = fix.engine.ReeditCount(ctx, c.ID, flour.ID, count.ID, qty(68), "", id.New())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingReason, appErr.Code)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	assert.Equal(t, qty(65), entry.Counts[0].CurrentCountQuantity)
	assert.Nil(t, entry.Counts[0].Reedited)
}

func TestEngineFinalize_ResyncsLedger(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	milk := testGood(businessID, 40, 60)
	fix := newEngineFixture(flour, milk)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID, milk.ID}, nil, "")
	require.NoError(t, err)

	finalized, err := fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{
		flour.ID: qty(65),
		milk.ID:  qty(38),
	}, nil, id.New())
	require.NoError(t, err)
	assert.True(t, finalized.SetFinalCount)
	require.NotNil(t, finalized.CountedDate)

	assert.Equal(t, qty(65), fix.goodsRepo.goods[flour.ID].DynamicCount)
	assert.Equal(t, qty(38), fix.goodsRepo.goods[milk.ID].DynamicCount)
	require.NotNil(t, fix.goodsRepo.goods[flour.ID].LastInventoryCountDate)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	require.Len(t, entry.Counts, 1)
	assert.Equal(t, KindFinal, entry.Counts[0].Kind)
	// Final deviation uses the par level: (70-65)/100*100.
	assert.InDelta(t, 5.0, entry.Counts[0].DeviationPercent, 1e-9)
}

func TestEngineFinalize_MissingFinalCountMutatesNothing(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	milk := testGood(businessID, 40, 60)
	fix := newEngineFixture(flour, milk)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID, milk.ID}, nil, "")
	require.NoError(t, err)

	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(65)}, nil, id.New())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, stored.SetFinalCount)
	assert.Equal(t, qty(70), fix.goodsRepo.goods[flour.ID].DynamicCount)
}

func TestEngineFinalize_RollsBackOnLedgerFailure(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	milk := testGood(businessID, 40, 60)
	fix := newEngineFixture(flour, milk)
	fix.goodsRepo.failFinalizeOn = milk.ID
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID, milk.ID}, nil, "")
	require.NoError(t, err)

	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{
		flour.ID: qty(65),
		milk.ID:  qty(38),
	}, nil, id.New())
	require.Error(t, err)

	// The transaction rolled back: cycle reopened, no good resynced, no
	// final count row persisted.
	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, stored.SetFinalCount)
	assert.Equal(t, qty(70), fix.goodsRepo.goods[flour.ID].DynamicCount)
	assert.Equal(t, qty(40), fix.goodsRepo.goods[milk.ID].DynamicCount)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	assert.Empty(t, entry.Counts)
}

func TestEngineFinalize_SecondAttemptIsLocked(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)
	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(65)}, nil, id.New())
	require.NoError(t, err)

	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(60)}, nil, id.New())
	require.Error(t, err)
	assert.True(t, apperror.IsCycleLocked(err))
	assert.Equal(t, qty(65), fix.goodsRepo.goods[flour.ID].DynamicCount)
}

func TestEngineReset_AppendsCorrectionAndResyncsLedger(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)
	_, err = fix.engine.Finalize(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(65)}, nil, id.New())
	require.NoError(t, err)

	_, err = fix.engine.ResetFinalizedCounts(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(63)}, "scale recalibrated", id.New())
	require.NoError(t, err)

	assert.Equal(t, qty(63), fix.goodsRepo.goods[flour.ID].DynamicCount)

	stored, err := fix.engine.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, stored.SetFinalCount)
	entry, err := stored.EntryFor(flour.ID)
	require.NoError(t, err)
	require.Len(t, entry.Counts, 2)
	assert.Equal(t, KindFinal, entry.Counts[0].Kind)
	assert.Equal(t, KindCorrection, entry.Counts[1].Kind)
	assert.Equal(t, "scale recalibrated", entry.Counts[1].Comments)
}

func TestEngineReset_RequiresReasonAndFinalizedCycle(t *testing.T) {
	businessID := id.New()
	flour := testGood(businessID, 70, 100)
	fix := newEngineFixture(flour)
	ctx := context.Background()

	c, err := fix.engine.Create(ctx, businessID, "August", []id.ID{flour.ID}, nil, "")
	require.NoError(t, err)

	_, err = fix.engine.ResetFinalizedCounts(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(63)}, "", id.New())
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeMissingReason, appErr.Code)

	// Open cycle: reset does not apply.
	_, err = fix.engine.ResetFinalizedCounts(ctx, c.ID, map[id.ID]types.Quantity{flour.ID: qty(63)}, "fix", id.New())
	require.Error(t, err)
	appErr, ok = apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
}
