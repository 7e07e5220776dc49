package repository

import (
	"context"
	"strconv"
	"time"

	"dealstream/internal/supa"
)

// UserRepo serves profiles and the four subscription tables.
type UserRepo struct {
	ch *supa.Channel
}

func NewUserRepo(ch *supa.Channel) *UserRepo {
	return &UserRepo{ch: ch}
}

func (r *UserRepo) FindProfile(ctx context.Context, userID string) (*Profile, error) {
	return findOne[Profile](ctx, r.ch, "profiles", func(q *supa.QueryBuilder) {
		q.Eq("user_id", userID)
	})
}

func (r *UserRepo) UpdateProfile(ctx context.Context, profile Profile) (*Profile, error) {
	profile.UpdatedAt = time.Now().UTC()
	var updated Profile
	err := r.ch.From("profiles").
		Eq("user_id", profile.UserID).
		Update(ctx, profile, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *UserRepo) AddProductSubscription(ctx context.Context, userID string, productID int64) (*ProductSubscription, error) {
	sub := ProductSubscription{UserID: userID, ProductID: productID, CreatedAt: time.Now().UTC()}
	var created ProductSubscription
	if err := r.ch.From("product_subscriptions").Insert(ctx, sub, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepo) RemoveProductSubscription(ctx context.Context, userID string, productID int64) error {
	return r.ch.From("product_subscriptions").
		Eq("user_id", userID).
		Eq("product_id", strconv.FormatInt(productID, 10)).
		Delete(ctx)
}

func (r *UserRepo) AddBrandSubscription(ctx context.Context, userID string, brandID int64) (*BrandSubscription, error) {
	sub := BrandSubscription{UserID: userID, BrandID: brandID, CreatedAt: time.Now().UTC()}
	var created BrandSubscription
	if err := r.ch.From("brand_subscriptions").Insert(ctx, sub, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepo) RemoveBrandSubscription(ctx context.Context, userID string, brandID int64) error {
	return r.ch.From("brand_subscriptions").
		Eq("user_id", userID).
		Eq("brand_id", strconv.FormatInt(brandID, 10)).
		Delete(ctx)
}

func (r *UserRepo) AddShopSubscription(ctx context.Context, userID string, shopID int64, notify bool) (*ShopSubscription, error) {
	now := time.Now().UTC()
	sub := ShopSubscription{
		UserID:              userID,
		ShopID:              shopID,
		NotificationEnabled: notify,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	var created ShopSubscription
	if err := r.ch.From("shop_subscriptions").Insert(ctx, sub, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepo) RemoveShopSubscription(ctx context.Context, userID string, shopID int64) error {
	return r.ch.From("shop_subscriptions").
		Eq("user_id", userID).
		Eq("shop_id", strconv.FormatInt(shopID, 10)).
		Delete(ctx)
}

func (r *UserRepo) AddCategorySubscription(ctx context.Context, userID string, categoryID int64) (*CategorySubscription, error) {
	sub := CategorySubscription{UserID: userID, CategoryID: categoryID, CreatedAt: time.Now().UTC()}
	var created CategorySubscription
	if err := r.ch.From("category_subscriptions").Insert(ctx, sub, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *UserRepo) RemoveCategorySubscription(ctx context.Context, userID string, categoryID int64) error {
	return r.ch.From("category_subscriptions").
		Eq("user_id", userID).
		Eq("category_id", strconv.FormatInt(categoryID, 10)).
		Delete(ctx)
}

// FindProductSubscribers lists the users subscribed to a product.
func (r *UserRepo) FindProductSubscribers(ctx context.Context, productID int64) ([]ProductSubscription, error) {
	var subs []ProductSubscription
	err := r.ch.From("product_subscriptions").
		Eq("product_id", strconv.FormatInt(productID, 10)).
		Execute(ctx, &subs)
	return subs, err
}

// FindBrandSubscribers lists the users subscribed to a brand.
func (r *UserRepo) FindBrandSubscribers(ctx context.Context, brandID int64) ([]BrandSubscription, error) {
	var subs []BrandSubscription
	err := r.ch.From("brand_subscriptions").
		Eq("brand_id", strconv.FormatInt(brandID, 10)).
		Execute(ctx, &subs)
	return subs, err
}

// FindShopSubscribers lists the users subscribed to a shop who left the
// per-subscription notification switch on.
func (r *UserRepo) FindShopSubscribers(ctx context.Context, shopID int64) ([]ShopSubscription, error) {
	var subs []ShopSubscription
	err := r.ch.From("shop_subscriptions").
		Eq("shop_id", strconv.FormatInt(shopID, 10)).
		Eq("notification_enabled", "true").
		Execute(ctx, &subs)
	return subs, err
}

// FindCategorySubscribers lists the users subscribed to a category.
func (r *UserRepo) FindCategorySubscribers(ctx context.Context, categoryID int64) ([]CategorySubscription, error) {
	var subs []CategorySubscription
	err := r.ch.From("category_subscriptions").
		Eq("category_id", strconv.FormatInt(categoryID, 10)).
		Execute(ctx, &subs)
	return subs, err
}

// ListSubscriptions gathers one user's subscriptions across all four
// tables. A failed read of one table empties that slice rather than
// failing the aggregate.
func (r *UserRepo) ListSubscriptions(ctx context.Context, userID string) (*Subscriptions, error) {
	subs := &Subscriptions{}

	byUser := func(q *supa.QueryBuilder) { q.Eq("user_id", userID) }

	query := r.ch.From("product_subscriptions").Order("created_at", true)
	byUser(query)
	if err := query.Execute(ctx, &subs.Products); err != nil {
		subs.Products = nil
	}

	query = r.ch.From("brand_subscriptions").Order("created_at", true)
	byUser(query)
	if err := query.Execute(ctx, &subs.Brands); err != nil {
		subs.Brands = nil
	}

	query = r.ch.From("shop_subscriptions").Order("created_at", true)
	byUser(query)
	if err := query.Execute(ctx, &subs.Shops); err != nil {
		subs.Shops = nil
	}

	query = r.ch.From("category_subscriptions").Order("created_at", true)
	byUser(query)
	if err := query.Execute(ctx, &subs.Categories); err != nil {
		subs.Categories = nil
	}

	return subs, nil
}
