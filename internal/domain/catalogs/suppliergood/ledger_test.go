package suppliergood

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/measure"
)

var errNotFound = apperror.NewNotFound("supplier good", nil)

// fakeRepo keeps counts in memory and applies deltas under a mutex, the
// in-memory equivalent of the storage-level atomic increment.
type fakeRepo struct {
	mu    sync.Mutex
	goods map[id.ID]*SupplierGood
}

func newFakeRepo(goods ...*SupplierGood) *fakeRepo {
	m := make(map[id.ID]*SupplierGood, len(goods))
	for _, g := range goods {
		m[g.ID] = g
	}
	return &fakeRepo{goods: m}
}

func (r *fakeRepo) GetByID(_ context.Context, goodID id.ID) (*SupplierGood, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goods[goodID]
	if !ok {
		return nil, errNotFound
	}
	copied := *g
	return &copied, nil
}

func (r *fakeRepo) GetByIDs(ctx context.Context, goodIDs []id.ID) ([]*SupplierGood, error) {
	var out []*SupplierGood
	for _, gid := range goodIDs {
		if g, err := r.GetByID(ctx, gid); err == nil {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListByBusiness(_ context.Context, businessID id.ID) ([]*SupplierGood, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*SupplierGood
	for _, g := range r.goods {
		if g.BusinessID == businessID {
			copied := *g
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeRepo) AdjustDynamicCount(_ context.Context, goodID id.ID, delta types.Quantity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goods[goodID]
	if !ok {
		return errNotFound
	}
	g.DynamicCount += delta
	return nil
}

func (r *fakeRepo) SetFinalCount(_ context.Context, goodID id.ID, counted types.Quantity, countedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goods[goodID]
	if !ok {
		return errNotFound
	}
	g.DynamicCount = counted
	t := countedAt
	g.LastInventoryCountDate = &t
	return nil
}

func newGood(businessID id.ID, count float64) *SupplierGood {
	return &SupplierGood{
		ID:              id.New(),
		BusinessID:      businessID,
		Name:            "flour",
		MeasurementUnit: measure.Kilogram,
		ParLevel:        types.NewQuantityFromFloat64(100),
		DynamicCount:    types.NewQuantityFromFloat64(count),
	}
}

func TestLedgerAdjust_ConcurrentIncrementsCommute(t *testing.T) {
	business := id.New()
	good := newGood(business, 1000)
	repo := newFakeRepo(good)
	ledger := NewLedger(repo)
	ctx := context.Background()

	const workers = 20
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		sign := types.Quantity(1)
		if w%2 == 1 {
			sign = -1
		}
		go func(sign types.Quantity) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				delta := sign * types.NewQuantityFromFloat64(0.5)
				require.NoError(t, ledger.Adjust(ctx, good.ID, delta))
			}
		}(sign)
	}
	wg.Wait()

	// Equal numbers of +0.5 and -0.5 adjustments: net zero.
	got, err := ledger.GetByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(1000), got.DynamicCount)
}

func TestLedgerAdjust_ZeroDeltaIsNoop(t *testing.T) {
	good := newGood(id.New(), 50)
	repo := newFakeRepo(good)
	ledger := NewLedger(repo)

	require.NoError(t, ledger.Adjust(context.Background(), good.ID, 0))

	got, err := ledger.GetByID(context.Background(), good.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(50), got.DynamicCount)
}

func TestLedgerFinalize_OverwritesAndStamps(t *testing.T) {
	good := newGood(id.New(), 70)
	repo := newFakeRepo(good)
	ledger := NewLedger(repo)
	ctx := context.Background()

	require.NoError(t, ledger.Finalize(ctx, good.ID, types.NewQuantityFromFloat64(65)))

	got, err := ledger.GetByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NewQuantityFromFloat64(65), got.DynamicCount)
	require.NotNil(t, got.LastInventoryCountDate)
}

func TestLedgerGetByIDs(t *testing.T) {
	business := id.New()
	a := newGood(business, 10)
	b := newGood(business, 20)
	ledger := NewLedger(newFakeRepo(a, b))

	byID, err := ledger.GetByIDs(context.Background(), []id.ID{a.ID, b.ID, id.New()})
	require.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Contains(t, byID, a.ID)
	assert.Contains(t, byID, b.ID)
}
