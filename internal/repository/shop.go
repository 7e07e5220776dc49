package repository

import (
	"context"
	"strconv"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

// ShopRepo serves the shop/brand/category entity family.
type ShopRepo struct {
	ch *supa.Channel
}

func NewShopRepo(ch *supa.Channel) *ShopRepo {
	return &ShopRepo{ch: ch}
}

func (r *ShopRepo) FindShopByID(ctx context.Context, id int64) (*Shop, error) {
	return findOne[Shop](ctx, r.ch, "shops", func(q *supa.QueryBuilder) {
		q.Eq("id", strconv.FormatInt(id, 10))
	})
}

func (r *ShopRepo) FindShopsPage(ctx context.Context, page model.PageRequest) (model.PageResult[Shop], error) {
	return findPage[Shop](ctx, r.ch, "shops", page, model.Order{Column: "created_at", Descending: true}, nil)
}

func (r *ShopRepo) CreateShop(ctx context.Context, shop Shop) (*Shop, error) {
	var created Shop
	if err := r.ch.From("shops").Insert(ctx, shop, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *ShopRepo) FindBrandByID(ctx context.Context, id int64) (*Brand, error) {
	return findOne[Brand](ctx, r.ch, "brands", func(q *supa.QueryBuilder) {
		q.Eq("id", strconv.FormatInt(id, 10))
	})
}

func (r *ShopRepo) FindBrandsPage(ctx context.Context, page model.PageRequest) (model.PageResult[Brand], error) {
	return findPage[Brand](ctx, r.ch, "brands", page, model.Order{Column: "created_at", Descending: true}, nil)
}

func (r *ShopRepo) FindCategoryByID(ctx context.Context, id int64) (*Category, error) {
	return findOne[Category](ctx, r.ch, "categories", func(q *supa.QueryBuilder) {
		q.Eq("id", strconv.FormatInt(id, 10))
	})
}

// FindCategoriesByParent lists child categories; a nil parent lists the
// root categories.
func (r *ShopRepo) FindCategoriesByParent(ctx context.Context, parentID *int64) ([]Category, error) {
	query := r.ch.From("categories").Order("name", false)
	if parentID != nil {
		query.Eq("parent_id", strconv.FormatInt(*parentID, 10))
	} else {
		query.Is("parent_id", "null")
	}
	var categories []Category
	if err := query.Execute(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}
