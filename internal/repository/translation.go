package repository

import (
	"context"
	"strconv"

	"dealstream/internal/supa"
)

// TranslationRepo serves the locale catalog and the per-entity
// translation tables.
type TranslationRepo struct {
	ch *supa.Channel
}

func NewTranslationRepo(ch *supa.Channel) *TranslationRepo {
	return &TranslationRepo{ch: ch}
}

// FindActiveLanguages lists the locales currently offered, ordered by
// display name.
func (r *TranslationRepo) FindActiveLanguages(ctx context.Context) ([]Language, error) {
	var languages []Language
	err := r.ch.From("languages").
		Eq("is_active", "true").
		Order("name", false).
		Execute(ctx, &languages)
	if err != nil {
		return nil, err
	}
	return languages, nil
}

func (r *TranslationRepo) FindLanguage(ctx context.Context, code string) (*Language, error) {
	return findOne[Language](ctx, r.ch, "languages", func(q *supa.QueryBuilder) {
		q.Eq("code", code)
	})
}

// findTranslation fetches the single (entity, locale) row of one
// translation table.
func findTranslation[T any](ctx context.Context, ch *supa.Channel, table, fkColumn, fkValue, locale string) (*T, error) {
	return findOne[T](ctx, ch, table, func(q *supa.QueryBuilder) {
		q.Eq(fkColumn, fkValue)
		q.Eq("locale", locale)
	})
}

// listTranslations fetches every locale's row for one entity.
func listTranslations[T any](ctx context.Context, ch *supa.Channel, table, fkColumn, fkValue string) ([]T, error) {
	var rows []T
	err := ch.From(table).Eq(fkColumn, fkValue).Order("locale", false).Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func createTranslation[T any](ctx context.Context, ch *supa.Channel, table string, row T) (*T, error) {
	var created T
	if err := ch.From(table).Insert(ctx, row, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *TranslationRepo) FindShopTranslation(ctx context.Context, shopID int64, locale string) (*ShopTranslation, error) {
	return findTranslation[ShopTranslation](ctx, r.ch, "shop_translations",
		"shop_id", strconv.FormatInt(shopID, 10), locale)
}

func (r *TranslationRepo) FindShopTranslations(ctx context.Context, shopID int64) ([]ShopTranslation, error) {
	return listTranslations[ShopTranslation](ctx, r.ch, "shop_translations",
		"shop_id", strconv.FormatInt(shopID, 10))
}

func (r *TranslationRepo) CreateShopTranslation(ctx context.Context, t ShopTranslation) (*ShopTranslation, error) {
	return createTranslation(ctx, r.ch, "shop_translations", t)
}

func (r *TranslationRepo) FindBrandTranslation(ctx context.Context, brandID int64, locale string) (*BrandTranslation, error) {
	return findTranslation[BrandTranslation](ctx, r.ch, "brand_translations",
		"brand_id", strconv.FormatInt(brandID, 10), locale)
}

func (r *TranslationRepo) FindBrandTranslations(ctx context.Context, brandID int64) ([]BrandTranslation, error) {
	return listTranslations[BrandTranslation](ctx, r.ch, "brand_translations",
		"brand_id", strconv.FormatInt(brandID, 10))
}

func (r *TranslationRepo) CreateBrandTranslation(ctx context.Context, t BrandTranslation) (*BrandTranslation, error) {
	return createTranslation(ctx, r.ch, "brand_translations", t)
}

func (r *TranslationRepo) FindCategoryTranslation(ctx context.Context, categoryID int64, locale string) (*CategoryTranslation, error) {
	return findTranslation[CategoryTranslation](ctx, r.ch, "category_translations",
		"category_id", strconv.FormatInt(categoryID, 10), locale)
}

func (r *TranslationRepo) FindCategoryTranslations(ctx context.Context, categoryID int64) ([]CategoryTranslation, error) {
	return listTranslations[CategoryTranslation](ctx, r.ch, "category_translations",
		"category_id", strconv.FormatInt(categoryID, 10))
}

func (r *TranslationRepo) CreateCategoryTranslation(ctx context.Context, t CategoryTranslation) (*CategoryTranslation, error) {
	return createTranslation(ctx, r.ch, "category_translations", t)
}

func (r *TranslationRepo) FindProductTranslation(ctx context.Context, productID int64, locale string) (*ProductTranslation, error) {
	return findTranslation[ProductTranslation](ctx, r.ch, "product_translations",
		"product_id", strconv.FormatInt(productID, 10), locale)
}

func (r *TranslationRepo) FindProductTranslations(ctx context.Context, productID int64) ([]ProductTranslation, error) {
	return listTranslations[ProductTranslation](ctx, r.ch, "product_translations",
		"product_id", strconv.FormatInt(productID, 10))
}

func (r *TranslationRepo) CreateProductTranslation(ctx context.Context, t ProductTranslation) (*ProductTranslation, error) {
	return createTranslation(ctx, r.ch, "product_translations", t)
}

func (r *TranslationRepo) FindDiscountTranslation(ctx context.Context, discountID int64, locale string) (*DiscountTranslation, error) {
	return findTranslation[DiscountTranslation](ctx, r.ch, "discount_info_translations",
		"discount_info_id", strconv.FormatInt(discountID, 10), locale)
}

func (r *TranslationRepo) FindDiscountTranslations(ctx context.Context, discountID int64) ([]DiscountTranslation, error) {
	return listTranslations[DiscountTranslation](ctx, r.ch, "discount_info_translations",
		"discount_info_id", strconv.FormatInt(discountID, 10))
}

func (r *TranslationRepo) FindNotificationTranslation(ctx context.Context, notificationID, locale string) (*NotificationTranslation, error) {
	return findTranslation[NotificationTranslation](ctx, r.ch, "notification_translations",
		"notification_id", notificationID, locale)
}

func (r *TranslationRepo) CreateNotificationTranslation(ctx context.Context, t NotificationTranslation) (*NotificationTranslation, error) {
	return createTranslation(ctx, r.ch, "notification_translations", t)
}
