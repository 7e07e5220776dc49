// Package repository exposes the application's entity families over the
// credential-tiered query channel: shops/brands/categories, products,
// discounts, user profiles and subscriptions, notifications and their
// settings. Every paginated read issues a logically-paired data fetch
// and row count against the same filter set.
package repository

import "time"

type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	Platform  string    `json:"platform"`
	LogoURL   *string   `json:"logo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Brand struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ImageURL  *string   `json:"image_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Icon      *string   `json:"icon,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Product struct {
	ID         int64     `json:"id"`
	ShopID     int64     `json:"shop_id"`
	BrandID    *int64    `json:"brand_id,omitempty"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Name       string    `json:"name"`
	SKU        *string   `json:"sku,omitempty"`
	ClickCount *int      `json:"click_count,omitempty"`
	IsDeleted  bool      `json:"is_deleted"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type DiscountInfo struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	OriginalPrice float64   `json:"original_price"`
	DiscountPrice float64   `json:"discount_price"`
	DiscountRate  float64   `json:"discount_rate"`
	StartAt       time.Time `json:"start_at"`
	EndAt         time.Time `json:"end_at"`
	InfoURL       *string   `json:"info_url,omitempty"`
	ThumbnailURL  *string   `json:"thumbnail_url,omitempty"`
	ClickCount    *int      `json:"click_count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Profile struct {
	UserID           string    `json:"user_id"`
	AvatarURL        *string   `json:"avatar_url,omitempty"`
	Email            string    `json:"email"`
	PreferredCountry *string   `json:"preferred_country,omitempty"`
	DetectedCountry  *string   `json:"detected_country,omitempty"`
	Language         *string   `json:"language,omitempty"`
	Timezone         *string   `json:"timezone,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type ProductSubscription struct {
	UserID    string    `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type BrandSubscription struct {
	UserID    string    `json:"user_id"`
	BrandID   int64     `json:"brand_id"`
	CreatedAt time.Time `json:"created_at"`
}

type ShopSubscription struct {
	UserID              string    `json:"user_id"`
	ShopID              int64     `json:"shop_id"`
	NotificationEnabled bool      `json:"notification_enabled"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CategorySubscription struct {
	UserID     string    `json:"user_id"`
	CategoryID int64     `json:"category_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subscriptions aggregates one user's subscription records across the
// three subscription tables plus products.
type Subscriptions struct {
	Products   []ProductSubscription  `json:"product_subscriptions"`
	Brands     []BrandSubscription    `json:"brand_subscriptions"`
	Shops      []ShopSubscription     `json:"shop_subscriptions"`
	Categories []CategorySubscription `json:"category_subscriptions"`
}

// Notification is created only after passing the filter gate and is
// never hard-deleted; ReadAt is its only mutable field.
type Notification struct {
	ID         string     `json:"id,omitempty"`
	UserID     string     `json:"user_id"`
	ActorID    *string    `json:"actor_id,omitempty"`
	Type       string     `json:"type"`
	TargetType *string    `json:"target_type,omitempty"`
	TargetID   *string    `json:"target_id,omitempty"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// NotificationSettings is the per-user toggle record. It is lazily
// created all-enabled on first read and never deleted.
type NotificationSettings struct {
	UserID                string    `json:"user_id"`
	PushEnabled           bool      `json:"push_enabled"`
	DiscountNotifications bool      `json:"discount_notifications"`
	ShopNotifications     bool      `json:"shop_notifications"`
	BrandNotifications    bool      `json:"brand_notifications"`
	CategoryNotifications bool      `json:"category_notifications"`
	CreatedAt             time.Time `json:"created_at,omitempty"`
	UpdatedAt             time.Time `json:"updated_at,omitempty"`
}

type NotificationLog struct {
	ID               string    `json:"id,omitempty"`
	UserID           string    `json:"user_id"`
	SubscriptionType string    `json:"subscription_type"`
	TargetID         string    `json:"target_id"`
	Message          string    `json:"message"`
	IsRead           bool      `json:"is_read"`
	CreatedAt        time.Time `json:"created_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// Language is one row of the supported-locale catalog.
type Language struct {
	Code       string    `json:"code"`
	Name       string    `json:"name"`
	NativeName string    `json:"native_name"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Per-entity translation rows. Each catalog entity has its own table
// keyed by (entity id, locale).
type ShopTranslation struct {
	ID          int64     `json:"id,omitempty"`
	ShopID      int64     `json:"shop_id"`
	Locale      string    `json:"locale"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type BrandTranslation struct {
	ID          int64     `json:"id,omitempty"`
	BrandID     int64     `json:"brand_id"`
	Locale      string    `json:"locale"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type CategoryTranslation struct {
	ID          int64     `json:"id,omitempty"`
	CategoryID  int64     `json:"category_id"`
	Locale      string    `json:"locale"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type ProductTranslation struct {
	ID          int64     `json:"id,omitempty"`
	ProductID   int64     `json:"product_id"`
	Locale      string    `json:"locale"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

type DiscountTranslation struct {
	ID              int64     `json:"id,omitempty"`
	DiscountInfoID  int64     `json:"discount_info_id"`
	Locale          string    `json:"locale"`
	Description     *string   `json:"description,omitempty"`
	TermsConditions *string   `json:"terms_conditions,omitempty"`
	CreatedAt       time.Time `json:"created_at,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty"`
}

type NotificationTranslation struct {
	ID             int64     `json:"id,omitempty"`
	NotificationID string    `json:"notification_id"`
	Locale         string    `json:"locale"`
	Title          *string   `json:"title,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// Notification type tags and the settings categories they map to.
const (
	NotificationTypeDiscount = "discount_update"
	NotificationTypeShop     = "shop_subscription"
	NotificationTypeBrand    = "brand_subscription"
	NotificationTypeCategory = "category_subscription"
)
