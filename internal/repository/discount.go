package repository

import (
	"context"
	"strconv"
	"time"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

// DiscountRepo serves the discount entity family.
type DiscountRepo struct {
	ch *supa.Channel
}

func NewDiscountRepo(ch *supa.Channel) *DiscountRepo {
	return &DiscountRepo{ch: ch}
}

func (r *DiscountRepo) FindByID(ctx context.Context, id int64) (*DiscountInfo, error) {
	return findOne[DiscountInfo](ctx, r.ch, "discount_info", func(q *supa.QueryBuilder) {
		q.Eq("id", strconv.FormatInt(id, 10))
	})
}

func (r *DiscountRepo) FindPage(ctx context.Context, page model.PageRequest) (model.PageResult[DiscountInfo], error) {
	return findPage[DiscountInfo](ctx, r.ch, "discount_info", page,
		model.Order{Column: "created_at", Descending: true}, nil)
}

// FindActivePage lists discounts whose window has not closed, highest
// rate first.
func (r *DiscountRepo) FindActivePage(ctx context.Context, page model.PageRequest) (model.PageResult[DiscountInfo], error) {
	now := time.Now().UTC().Format(time.RFC3339)
	return findPage[DiscountInfo](ctx, r.ch, "discount_info", page,
		model.Order{Column: "discount_rate", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Gt("end_at", now)
		})
}

func (r *DiscountRepo) FindByProduct(ctx context.Context, productID int64) ([]DiscountInfo, error) {
	var discounts []DiscountInfo
	err := r.ch.From("discount_info").
		Eq("product_id", strconv.FormatInt(productID, 10)).
		Order("created_at", true).
		Execute(ctx, &discounts)
	if err != nil {
		return nil, err
	}
	return discounts, nil
}
