package repository

import (
	"context"
	"strconv"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

// ProductRepo serves the product entity family. Soft-deleted rows are
// excluded from every read path.
type ProductRepo struct {
	ch *supa.Channel
}

func NewProductRepo(ch *supa.Channel) *ProductRepo {
	return &ProductRepo{ch: ch}
}

func notDeleted(q *supa.QueryBuilder) {
	q.Eq("is_deleted", "false")
}

func (r *ProductRepo) FindByID(ctx context.Context, id int64) (*Product, error) {
	return findOne[Product](ctx, r.ch, "products", func(q *supa.QueryBuilder) {
		q.Eq("id", strconv.FormatInt(id, 10))
		notDeleted(q)
	})
}

func (r *ProductRepo) FindPage(ctx context.Context, page model.PageRequest) (model.PageResult[Product], error) {
	return findPage[Product](ctx, r.ch, "products", page,
		model.Order{Column: "created_at", Descending: true}, notDeleted)
}

func (r *ProductRepo) FindByShopPage(ctx context.Context, shopID int64, page model.PageRequest) (model.PageResult[Product], error) {
	return findPage[Product](ctx, r.ch, "products", page,
		model.Order{Column: "created_at", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Eq("shop_id", strconv.FormatInt(shopID, 10))
			notDeleted(q)
		})
}

func (r *ProductRepo) FindByBrandPage(ctx context.Context, brandID int64, page model.PageRequest) (model.PageResult[Product], error) {
	return findPage[Product](ctx, r.ch, "products", page,
		model.Order{Column: "created_at", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Eq("brand_id", strconv.FormatInt(brandID, 10))
			notDeleted(q)
		})
}

func (r *ProductRepo) FindByCategoryPage(ctx context.Context, categoryID int64, page model.PageRequest) (model.PageResult[Product], error) {
	return findPage[Product](ctx, r.ch, "products", page,
		model.Order{Column: "created_at", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Eq("category_id", strconv.FormatInt(categoryID, 10))
			notDeleted(q)
		})
}

// FindPopularPage orders by the click-count ranking column rather than
// recency.
func (r *ProductRepo) FindPopularPage(ctx context.Context, page model.PageRequest) (model.PageResult[Product], error) {
	return findPage[Product](ctx, r.ch, "products", page,
		model.Order{Column: "click_count", Descending: true}, notDeleted)
}

func (r *ProductRepo) Create(ctx context.Context, product Product) (*Product, error) {
	var created Product
	if err := r.ch.From("products").Insert(ctx, product, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *ProductRepo) Update(ctx context.Context, id int64, product Product) (*Product, error) {
	var updated Product
	err := r.ch.From("products").
		Eq("id", strconv.FormatInt(id, 10)).
		Update(ctx, product, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SoftDelete flags the row; products are never hard-deleted.
func (r *ProductRepo) SoftDelete(ctx context.Context, id int64) error {
	var updated Product
	return r.ch.From("products").
		Eq("id", strconv.FormatInt(id, 10)).
		Update(ctx, map[string]any{"is_deleted": true}, &updated)
}

func (r *ProductRepo) IncrementClickCount(ctx context.Context, id int64) error {
	product, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	clicks := 1
	if product.ClickCount != nil {
		clicks = *product.ClickCount + 1
	}
	var updated Product
	return r.ch.From("products").
		Eq("id", strconv.FormatInt(id, 10)).
		Update(ctx, map[string]any{"click_count": clicks}, &updated)
}
