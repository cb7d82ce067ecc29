// Package document_repo provides PostgreSQL implementations for document
// repositories.
package document_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/documents/cycle"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	cyclesTable      = "doc_inventory_cycles"
	cycleGoodsTable  = "doc_inventory_cycle_goods"
	cycleCountsTable = "doc_inventory_cycle_counts"
)

const pgUniqueViolation = "23505"

var cycleColumns = []string{
	"id", "business_id", "title", "set_final_count",
	"comments", "counted_date", "done_by", "created_at", "updated_at",
}

// CycleRepo implements cycle.Repository.
type CycleRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewCycleRepo creates a new inventory cycle repository.
func NewCycleRepo(txManager *postgres.TxManager) *CycleRepo {
	return &CycleRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a cycle with its seeded good entries. The partial
// unique index on open cycles turns a duplicate open cycle into a
// conflict here instead of a race further up.
func (r *CycleRepo) Create(ctx context.Context, c *cycle.Cycle) error {
	querier := r.txManager.GetQuerier(ctx)

	q := r.builder.Insert(cyclesTable).
		Columns(cycleColumns...).
		Values(
			c.ID, c.BusinessID, c.Title, c.SetFinalCount,
			c.Comments, c.CountedDate, c.DoneBy, c.CreatedAt, c.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperror.NewConflict("an open inventory cycle already exists for this business").
				WithDetail("business_id", c.BusinessID.String()).
				WithCause(err)
		}
		return fmt.Errorf("insert cycle: %w", err)
	}

	if len(c.Goods) == 0 {
		return nil
	}

	gq := r.builder.Insert(cycleGoodsTable).
		Columns("cycle_id", "supplier_good_id", "dynamic_system_count", "average_deviation_percent")
	for _, e := range c.Goods {
		gq = gq.Values(c.ID, e.SupplierGoodID, e.DynamicSystemCount.Int64Scaled(), e.AverageDeviationPercent)
	}

	sql, args, err = gq.ToSql()
	if err != nil {
		return fmt.Errorf("build insert entries: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert cycle entries: %w", err)
	}

	return nil
}

// GetByID loads a cycle with entries and count history.
func (r *CycleRepo) GetByID(ctx context.Context, cycleID id.ID) (*cycle.Cycle, error) {
	q := r.builder.Select(cycleColumns...).
		From(cyclesTable).
		Where(squirrel.Eq{"id": cycleID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c cycle.Cycle
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("inventory cycle", cycleID.String())
		}
		return nil, fmt.Errorf("get cycle: %w", err)
	}

	if err := r.loadGoods(ctx, []*cycle.Cycle{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListByBusiness returns a business's cycles with their full histories,
// newest first.
func (r *CycleRepo) ListByBusiness(ctx context.Context, businessID id.ID) ([]*cycle.Cycle, error) {
	q := r.builder.Select(cycleColumns...).
		From(cyclesTable).
		Where(squirrel.Eq{"business_id": businessID}).
		OrderBy("created_at DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var cycles []*cycle.Cycle
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &cycles, sql, args...); err != nil {
		return nil, fmt.Errorf("select cycles: %w", err)
	}

	if err := r.loadGoods(ctx, cycles); err != nil {
		return nil, err
	}
	return cycles, nil
}

// GetOpenByBusiness returns the business's single open cycle, or
// (nil, nil) when none exists.
func (r *CycleRepo) GetOpenByBusiness(ctx context.Context, businessID id.ID) (*cycle.Cycle, error) {
	q := r.builder.Select(cycleColumns...).
		From(cyclesTable).
		Where(squirrel.Eq{"business_id": businessID, "set_final_count": false}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var c cycle.Cycle
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &c, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get open cycle: %w", err)
	}

	if err := r.loadGoods(ctx, []*cycle.Cycle{&c}); err != nil {
		return nil, err
	}
	return &c, nil
}

// ClaimedSupplierGoodIDs returns supplier goods already tracked by an
// open cycle of the business.
func (r *CycleRepo) ClaimedSupplierGoodIDs(ctx context.Context, businessID id.ID) ([]id.ID, error) {
	sql := `
		SELECT g.supplier_good_id
		FROM doc_inventory_cycle_goods g
		JOIN doc_inventory_cycles c ON c.id = g.cycle_id
		WHERE c.business_id = $1 AND NOT c.set_final_count
	`

	var ids []id.ID
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &ids, sql, businessID); err != nil {
		return nil, fmt.Errorf("select claimed goods: %w", err)
	}
	return ids, nil
}

// AppendCount inserts a count row for an entry.
func (r *CycleRepo) AppendCount(ctx context.Context, cycleID, supplierGoodID id.ID, count cycle.Count) error {
	q := r.builder.Insert(cycleCountsTable).
		Columns(
			"id", "cycle_id", "supplier_good_id", "kind",
			"system_count", "current_count_quantity", "counted_by", "counted_at",
			"quantity_needed", "deviation_percent", "comments", "reedited",
		).
		Values(
			count.ID, cycleID, supplierGoodID, count.Kind,
			count.SystemCount.Int64Scaled(), count.CurrentCountQuantity.Int64Scaled(),
			count.CountedByUserID, count.CountedAt,
			count.QuantityNeeded.Int64Scaled(), count.DeviationPercent,
			count.Comments, count.Reedited,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert count: %w", err)
	}
	return nil
}

// UpdateCount replaces a count row in place (re-edit path).
func (r *CycleRepo) UpdateCount(ctx context.Context, cycleID, supplierGoodID id.ID, count cycle.Count) error {
	q := r.builder.Update(cycleCountsTable).
		Set("current_count_quantity", count.CurrentCountQuantity.Int64Scaled()).
		Set("quantity_needed", count.QuantityNeeded.Int64Scaled()).
		Set("deviation_percent", count.DeviationPercent).
		Set("comments", count.Comments).
		Set("reedited", count.Reedited).
		Where(squirrel.Eq{
			"id":               count.ID,
			"cycle_id":         cycleID,
			"supplier_good_id": supplierGoodID,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("count", count.ID.String())
	}
	return nil
}

// UpdateEntryStats persists an entry's running count and rolling average
// deviation.
func (r *CycleRepo) UpdateEntryStats(ctx context.Context, cycleID, supplierGoodID id.ID, systemCount types.Quantity, avgDeviationPercent float64) error {
	q := r.builder.Update(cycleGoodsTable).
		Set("dynamic_system_count", systemCount.Int64Scaled()).
		Set("average_deviation_percent", avgDeviationPercent).
		Where(squirrel.Eq{"cycle_id": cycleID, "supplier_good_id": supplierGoodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update entry stats: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("inventory cycle entry", supplierGoodID.String())
	}
	return nil
}

// IncrementEntryCount applies a signed atomic increment to an entry's
// running count. Returns false when the cycle does not track the good.
func (r *CycleRepo) IncrementEntryCount(ctx context.Context, cycleID, supplierGoodID id.ID, delta types.Quantity) (bool, error) {
	q := r.builder.Update(cycleGoodsTable).
		Set("dynamic_system_count", squirrel.Expr("dynamic_system_count + ?", delta.Int64Scaled())).
		Where(squirrel.Eq{"cycle_id": cycleID, "supplier_good_id": supplierGoodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("increment entry count: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

// MarkFinalized flips set_final_count conditionally. The WHERE clause on
// the current flag makes the update a mutex: the losing finalizer sees
// zero affected rows.
func (r *CycleRepo) MarkFinalized(ctx context.Context, cycleID id.ID, countedDate time.Time, doneBy []id.ID) (bool, error) {
	q := r.builder.Update(cyclesTable).
		Set("set_final_count", true).
		Set("counted_date", countedDate).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": cycleID, "set_final_count": false})
	if len(doneBy) > 0 {
		q = q.Set("done_by", doneBy)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("mark finalized: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

type countRow struct {
	CycleID        id.ID `db:"cycle_id"`
	SupplierGoodID id.ID `db:"supplier_good_id"`
	cycle.Count
}

// loadGoods populates entries and count histories for the given cycles.
func (r *CycleRepo) loadGoods(ctx context.Context, cycles []*cycle.Cycle) error {
	if len(cycles) == 0 {
		return nil
	}

	ids := make([]id.ID, 0, len(cycles))
	byID := make(map[id.ID]*cycle.Cycle, len(cycles))
	for _, c := range cycles {
		ids = append(ids, c.ID)
		byID[c.ID] = c
		c.Goods = make([]cycle.GoodEntry, 0)
	}

	querier := r.txManager.GetQuerier(ctx)

	gq := r.builder.Select("cycle_id", "supplier_good_id", "dynamic_system_count", "average_deviation_percent").
		From(cycleGoodsTable).
		Where(squirrel.Eq{"cycle_id": ids}).
		OrderBy("cycle_id", "supplier_good_id")

	sql, args, err := gq.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	type entryRow struct {
		CycleID id.ID `db:"cycle_id"`
		cycle.GoodEntry
	}
	var entryRows []entryRow
	if err := pgxscan.Select(ctx, querier, &entryRows, sql, args...); err != nil {
		return fmt.Errorf("select cycle entries: %w", err)
	}

	entryIndex := make(map[id.ID]map[id.ID]int, len(cycles))
	for _, row := range entryRows {
		c := byID[row.CycleID]
		row.GoodEntry.Counts = make([]cycle.Count, 0)
		c.Goods = append(c.Goods, row.GoodEntry)
		if entryIndex[row.CycleID] == nil {
			entryIndex[row.CycleID] = make(map[id.ID]int)
		}
		entryIndex[row.CycleID][row.SupplierGoodID] = len(c.Goods) - 1
	}

	// UUIDv7 ids order count rows by creation time.
	cq := r.builder.Select(
		"cycle_id", "supplier_good_id", "id", "kind",
		"system_count", "current_count_quantity", "counted_by", "counted_at",
		"quantity_needed", "deviation_percent", "comments", "reedited",
	).
		From(cycleCountsTable).
		Where(squirrel.Eq{"cycle_id": ids}).
		OrderBy("cycle_id", "supplier_good_id", "id")

	sql, args, err = cq.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var countRows []countRow
	if err := pgxscan.Select(ctx, querier, &countRows, sql, args...); err != nil {
		return fmt.Errorf("select counts: %w", err)
	}

	for _, row := range countRows {
		c := byID[row.CycleID]
		idx, ok := entryIndex[row.CycleID][row.SupplierGoodID]
		if !ok {
			continue
		}
		c.Goods[idx].Counts = append(c.Goods[idx].Counts, row.Count)
	}

	return nil
}

// Ensure interface compliance.
var _ cycle.Repository = (*CycleRepo)(nil)
