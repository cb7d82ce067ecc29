package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/catalogs/businessgood"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	businessGoodTable           = "cat_business_goods"
	businessGoodIngredientTable = "cat_business_good_ingredients"
	businessGoodMemberTable     = "cat_business_good_members"
)

// BusinessGoodRepo implements businessgood.Repository. The catalog is
// owned by the menu service; this side only reads it to project
// ingredient consumption.
type BusinessGoodRepo struct {
	txManager *postgres.TxManager
	builder   squirrel.StatementBuilderType
}

// NewBusinessGoodRepo creates a new business good repository.
func NewBusinessGoodRepo(txManager *postgres.TxManager) *BusinessGoodRepo {
	return &BusinessGoodRepo{
		txManager: txManager,
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID retrieves a business good with its ingredient or set menu
// composition.
func (r *BusinessGoodRepo) GetByID(ctx context.Context, goodID id.ID) (*businessgood.BusinessGood, error) {
	goods, err := r.GetByIDs(ctx, []id.ID{goodID})
	if err != nil {
		return nil, err
	}
	g, ok := goods[goodID]
	if !ok {
		return nil, apperror.NewNotFound("business good", goodID.String())
	}
	return g, nil
}

// GetByIDs retrieves multiple business goods keyed by id. Missing ids
// are absent from the result.
func (r *BusinessGoodRepo) GetByIDs(ctx context.Context, goodIDs []id.ID) (map[id.ID]*businessgood.BusinessGood, error) {
	if len(goodIDs) == 0 {
		return map[id.ID]*businessgood.BusinessGood{}, nil
	}

	querier := r.txManager.GetQuerier(ctx)

	q := r.builder.Select("id", "business_id", "name", "created_at", "updated_at").
		From(businessGoodTable).
		Where(squirrel.Eq{"id": goodIDs})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var goods []*businessgood.BusinessGood
	if err := pgxscan.Select(ctx, querier, &goods, sql, args...); err != nil {
		return nil, fmt.Errorf("select business goods: %w", err)
	}
	if len(goods) == 0 {
		return map[id.ID]*businessgood.BusinessGood{}, nil
	}

	byID := make(map[id.ID]*businessgood.BusinessGood, len(goods))
	found := make([]id.ID, 0, len(goods))
	for _, g := range goods {
		byID[g.ID] = g
		found = append(found, g.ID)
	}

	if err := r.loadIngredients(ctx, found, byID); err != nil {
		return nil, err
	}
	if err := r.loadMembers(ctx, found, byID); err != nil {
		return nil, err
	}

	return byID, nil
}

type ingredientRow struct {
	BusinessGoodID id.ID `db:"business_good_id"`
	businessgood.Ingredient
}

func (r *BusinessGoodRepo) loadIngredients(ctx context.Context, goodIDs []id.ID, byID map[id.ID]*businessgood.BusinessGood) error {
	q := r.builder.Select("business_good_id", "supplier_good_id", "measurement_unit", "required_quantity").
		From(businessGoodIngredientTable).
		Where(squirrel.Eq{"business_good_id": goodIDs}).
		OrderBy("business_good_id", "position")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []ingredientRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select ingredients: %w", err)
	}

	for _, row := range rows {
		g := byID[row.BusinessGoodID]
		g.Ingredients = append(g.Ingredients, row.Ingredient)
	}
	return nil
}

type memberRow struct {
	BusinessGoodID id.ID `db:"business_good_id"`
	MemberID       id.ID `db:"member_business_good_id"`
}

func (r *BusinessGoodRepo) loadMembers(ctx context.Context, goodIDs []id.ID, byID map[id.ID]*businessgood.BusinessGood) error {
	q := r.builder.Select("business_good_id", "member_business_good_id").
		From(businessGoodMemberTable).
		Where(squirrel.Eq{"business_good_id": goodIDs}).
		OrderBy("business_good_id", "position")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	var rows []memberRow
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return fmt.Errorf("select set menu members: %w", err)
	}

	for _, row := range rows {
		g := byID[row.BusinessGoodID]
		g.SetMenuIDs = append(g.SetMenuIDs, row.MemberID)
	}
	return nil
}

// Ensure interface compliance.
var _ businessgood.Repository = (*BusinessGoodRepo)(nil)
