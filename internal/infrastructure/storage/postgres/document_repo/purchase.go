package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/documents/purchase"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	purchasesTable     = "doc_purchases"
	purchaseItemsTable = "doc_purchase_items"
)

var purchaseColumns = []string{
	"id", "business_id", "title", "purchase_date",
	"total_amount", "created_at", "updated_at",
}

// PurchaseRepo implements purchase.Repository.
type PurchaseRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewPurchaseRepo creates a new purchase repository.
func NewPurchaseRepo(txManager *postgres.TxManager) *PurchaseRepo {
	return &PurchaseRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create persists a purchase record without items.
func (r *PurchaseRepo) Create(ctx context.Context, rec *purchase.Record) error {
	q := r.builder.Insert(purchasesTable).
		Columns(purchaseColumns...).
		Values(
			rec.ID, rec.BusinessID, rec.Title, rec.PurchaseDate,
			rec.TotalAmount, rec.CreatedAt, rec.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

// GetByID loads a record with its items.
func (r *PurchaseRepo) GetByID(ctx context.Context, purchaseID id.ID) (*purchase.Record, error) {
	q := r.builder.Select(purchaseColumns...).
		From(purchasesTable).
		Where(squirrel.Eq{"id": purchaseID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rec purchase.Record
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &rec, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase record", purchaseID.String())
		}
		return nil, fmt.Errorf("get purchase: %w", err)
	}

	if err := r.loadItems(ctx, []*purchase.Record{&rec}); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByBusiness returns a business's records with items, newest first.
func (r *PurchaseRepo) ListByBusiness(ctx context.Context, businessID id.ID) ([]*purchase.Record, error) {
	q := r.builder.Select(purchaseColumns...).
		From(purchasesTable).
		Where(squirrel.Eq{"business_id": businessID}).
		OrderBy("purchase_date DESC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []*purchase.Record
	querier := r.txManager.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &records, sql, args...); err != nil {
		return nil, fmt.Errorf("select purchases: %w", err)
	}

	if err := r.loadItems(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Delete removes a record; items cascade.
func (r *PurchaseRepo) Delete(ctx context.Context, purchaseID id.ID) error {
	q := r.builder.Delete(purchasesTable).
		Where(squirrel.Eq{"id": purchaseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase record", purchaseID.String())
	}
	return nil
}

// InsertItem adds an item row to a record.
func (r *PurchaseRepo) InsertItem(ctx context.Context, purchaseID id.ID, item purchase.Item) error {
	q := r.builder.Insert(purchaseItemsTable).
		Columns("id", "purchase_id", "supplier_good_id", "quantity_purchased", "purchase_price").
		Values(item.ID, purchaseID, item.SupplierGoodID, item.QuantityPurchased.Int64Scaled(), item.PurchasePrice)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert purchase item: %w", err)
	}
	return nil
}

// UpdateItem replaces an item row.
func (r *PurchaseRepo) UpdateItem(ctx context.Context, purchaseID id.ID, item purchase.Item) error {
	q := r.builder.Update(purchaseItemsTable).
		Set("quantity_purchased", item.QuantityPurchased.Int64Scaled()).
		Set("purchase_price", item.PurchasePrice).
		Where(squirrel.Eq{"id": item.ID, "purchase_id": purchaseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update purchase item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase item", item.ID.String())
	}
	return nil
}

// DeleteItem removes an item row.
func (r *PurchaseRepo) DeleteItem(ctx context.Context, purchaseID, itemID id.ID) error {
	q := r.builder.Delete(purchaseItemsTable).
		Where(squirrel.Eq{"id": itemID, "purchase_id": purchaseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete purchase item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase item", itemID.String())
	}
	return nil
}

// IncrementTotalAmount applies a signed atomic increment to the record's
// total amount.
func (r *PurchaseRepo) IncrementTotalAmount(ctx context.Context, purchaseID id.ID, delta types.MinorUnits) error {
	q := r.builder.Update(purchasesTable).
		Set("total_amount", squirrel.Expr("total_amount + ?", int64(delta))).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": purchaseID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("increment total amount: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase record", purchaseID.String())
	}
	return nil
}

type purchaseItemRow struct {
	PurchaseID id.ID `db:"purchase_id"`
	purchase.Item
}

func (r *PurchaseRepo) loadItems(ctx context.Context, records []*purchase.Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]id.ID, 0, len(records))
	byID := make(map[id.ID]*purchase.Record, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
		byID[rec.ID] = rec
		rec.Items = make([]purchase.Item, 0)
	}

	q := r.builder.Select("purchase_id", "id", "supplier_good_id", "quantity_purchased", "purchase_price").
		From(purchaseItemsTable).
		Where(squirrel.Eq{"purchase_id": ids}).
		OrderBy("purchase_id", "id")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []purchaseItemRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select purchase items: %w", err)
	}

	for _, row := range rows {
		rec := byID[row.PurchaseID]
		rec.Items = append(rec.Items, row.Item)
	}
	return nil
}

// Ensure interface compliance.
var _ purchase.Repository = (*PurchaseRepo)(nil)
