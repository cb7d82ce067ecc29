// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/suppliergood"
	"mise/internal/infrastructure/storage/postgres"
)

const supplierGoodTable = "cat_supplier_goods"

var supplierGoodColumns = []string{
	"id", "business_id", "name", "measurement_unit",
	"par_level", "dynamic_count", "last_inventory_count_date",
	"created_at", "updated_at",
}

// SupplierGoodRepo implements suppliergood.Repository.
type SupplierGoodRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewSupplierGoodRepo creates a new supplier good repository.
func NewSupplierGoodRepo(txManager *postgres.TxManager) *SupplierGoodRepo {
	return &SupplierGoodRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a supplier good by id.
func (r *SupplierGoodRepo) GetByID(ctx context.Context, goodID id.ID) (*suppliergood.SupplierGood, error) {
	q := r.builder.Select(supplierGoodColumns...).
		From(supplierGoodTable).
		Where(squirrel.Eq{"id": goodID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var g suppliergood.SupplierGood
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &g, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supplier good", goodID.String())
		}
		return nil, fmt.Errorf("get supplier good: %w", err)
	}

	return &g, nil
}

// GetByIDs retrieves multiple supplier goods. Missing ids are absent
// from the result.
func (r *SupplierGoodRepo) GetByIDs(ctx context.Context, goodIDs []id.ID) ([]*suppliergood.SupplierGood, error) {
	if len(goodIDs) == 0 {
		return nil, nil
	}

	q := r.builder.Select(supplierGoodColumns...).
		From(supplierGoodTable).
		Where(squirrel.Eq{"id": goodIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var goods []*suppliergood.SupplierGood
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &goods, sql, args...); err != nil {
		return nil, fmt.Errorf("select supplier goods: %w", err)
	}

	return goods, nil
}

// ListByBusiness returns all supplier goods of a business.
func (r *SupplierGoodRepo) ListByBusiness(ctx context.Context, businessID id.ID) ([]*suppliergood.SupplierGood, error) {
	q := r.builder.Select(supplierGoodColumns...).
		From(supplierGoodTable).
		Where(squirrel.Eq{"business_id": businessID}).
		OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var goods []*suppliergood.SupplierGood
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &goods, sql, args...); err != nil {
		return nil, fmt.Errorf("select supplier goods: %w", err)
	}

	return goods, nil
}

// AdjustDynamicCount applies a signed delta as a single atomic increment.
// The scaled BIGINT storage makes the increment race-free without a
// read-modify-write round trip.
func (r *SupplierGoodRepo) AdjustDynamicCount(ctx context.Context, goodID id.ID, delta types.Quantity) error {
	q := r.builder.Update(supplierGoodTable).
		Set("dynamic_count", squirrel.Expr("dynamic_count + ?", delta.Int64Scaled())).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": goodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("adjust dynamic count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("supplier good", goodID.String())
	}

	return nil
}

// SetFinalCount overwrites the running count with an audited physical
// count and stamps the last inventory date.
func (r *SupplierGoodRepo) SetFinalCount(ctx context.Context, goodID id.ID, counted types.Quantity, countedAt time.Time) error {
	q := r.builder.Update(supplierGoodTable).
		Set("dynamic_count", counted.Int64Scaled()).
		Set("last_inventory_count_date", countedAt).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": goodID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set final count: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("supplier good", goodID.String())
	}

	return nil
}

// Ensure interface compliance.
var _ suppliergood.Repository = (*SupplierGoodRepo)(nil)
