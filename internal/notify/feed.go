package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"dealstream/internal/realtime"
	"dealstream/internal/repository"
)

// SubscriberSource answers "who follows this target".
type SubscriberSource interface {
	FindProductSubscribers(ctx context.Context, productID int64) ([]repository.ProductSubscription, error)
	FindBrandSubscribers(ctx context.Context, brandID int64) ([]repository.BrandSubscription, error)
	FindShopSubscribers(ctx context.Context, shopID int64) ([]repository.ShopSubscription, error)
	FindCategorySubscribers(ctx context.Context, categoryID int64) ([]repository.CategorySubscription, error)
}

// ProductSource resolves products referenced by change events.
type ProductSource interface {
	FindByID(ctx context.Context, id int64) (*repository.Product, error)
}

// Feed connects the change stream to the filter gate: it watches the
// discount, product and subscription tables and turns row changes into
// notification candidates for every affected subscriber.
type Feed struct {
	manager  *realtime.Manager
	gate     *Gate
	users    SubscriberSource
	products ProductSource
	subs     []*realtime.Subscription
}

func NewFeed(manager *realtime.Manager, gate *Gate, users SubscriberSource, products ProductSource) *Feed {
	return &Feed{manager: manager, gate: gate, users: users, products: products}
}

// Start joins the watched topics. All topics share the manager's single
// socket; a slow fanout on one never stalls the others.
func (f *Feed) Start(ctx context.Context) error {
	topics := []struct {
		topic   realtime.Topic
		handler realtime.Handler
	}{
		{realtime.Topic{Table: "discount_info", Event: "INSERT"}, func(ev realtime.ChangeEvent) {
			f.onDiscount(context.Background(), ev)
		}},
		{realtime.Topic{Table: "products", Event: "INSERT"}, func(ev realtime.ChangeEvent) {
			f.onNewProduct(context.Background(), ev)
		}},
		{realtime.Topic{Table: "shop_subscriptions", Event: "INSERT"}, f.onNewSubscriber},
		{realtime.Topic{Table: "brand_subscriptions", Event: "INSERT"}, f.onNewSubscriber},
		{realtime.Topic{Table: "category_subscriptions", Event: "INSERT"}, f.onNewSubscriber},
	}

	for _, t := range topics {
		sub, err := f.manager.Subscribe(ctx, t.topic, t.handler)
		if err != nil {
			f.Stop()
			return err
		}
		f.subs = append(f.subs, sub)
		go f.watchLost(sub)
	}
	return nil
}

// Stop detaches all feed subscriptions.
func (f *Feed) Stop() {
	for _, sub := range f.subs {
		sub.Unsubscribe()
	}
	f.subs = nil
}

func (f *Feed) watchLost(sub *realtime.Subscription) {
	if err, ok := <-sub.Lost(); ok && err != nil {
		slog.Error("feed topic lost", "table", sub.Topic().Table, "error", err)
	}
}

// onDiscount fans a new discount out to everyone following the product
// or its brand, shop or category. The gate decides per user whether the
// notification lands.
func (f *Feed) onDiscount(ctx context.Context, ev realtime.ChangeEvent) {
	discountID, _ := recordInt64(ev.Record, "id")
	productID, ok := recordInt64(ev.Record, "product_id")
	if !ok {
		slog.Warn("discount event without product_id", "topic", ev.Topic)
		return
	}
	rate, _ := recordFloat(ev.Record, "discount_rate")

	product, err := f.products.FindByID(ctx, productID)
	if err != nil {
		slog.Warn("discount event for unknown product", "product_id", productID, "error", err)
		return
	}

	targetID := strconv.FormatInt(discountID, 10)
	message := fmt.Sprintf("%s is %.0f%% off", product.Name, rate)

	if subs, err := f.users.FindProductSubscribers(ctx, productID); err == nil {
		for _, s := range subs {
			f.admit(ctx, Candidate{
				UserID:     s.UserID,
				Type:       repository.NotificationTypeDiscount,
				TargetType: "discount",
				TargetID:   targetID,
				Message:    message,
			})
		}
	} else {
		slog.Warn("product subscriber lookup failed", "product_id", productID, "error", err)
	}

	if product.BrandID != nil {
		if subs, err := f.users.FindBrandSubscribers(ctx, *product.BrandID); err == nil {
			for _, s := range subs {
				f.admit(ctx, Candidate{
					UserID:     s.UserID,
					Type:       repository.NotificationTypeBrand,
					TargetType: "discount",
					TargetID:   targetID,
					Message:    message,
				})
			}
		}
	}

	if subs, err := f.users.FindShopSubscribers(ctx, product.ShopID); err == nil {
		for _, s := range subs {
			f.admit(ctx, Candidate{
				UserID:     s.UserID,
				Type:       repository.NotificationTypeShop,
				TargetType: "discount",
				TargetID:   targetID,
				Message:    message,
			})
		}
	}

	if product.CategoryID != nil {
		if subs, err := f.users.FindCategorySubscribers(ctx, *product.CategoryID); err == nil {
			for _, s := range subs {
				f.admit(ctx, Candidate{
					UserID:     s.UserID,
					Type:       repository.NotificationTypeCategory,
					TargetType: "discount",
					TargetID:   targetID,
					Message:    message,
				})
			}
		}
	}
}

// onNewProduct tells shop, brand and category followers about a new
// listing.
func (f *Feed) onNewProduct(ctx context.Context, ev realtime.ChangeEvent) {
	productID, ok := recordInt64(ev.Record, "id")
	if !ok {
		return
	}
	name, _ := recordString(ev.Record, "name")
	targetID := strconv.FormatInt(productID, 10)
	message := fmt.Sprintf("New product: %s", name)

	if shopID, ok := recordInt64(ev.Record, "shop_id"); ok {
		if subs, err := f.users.FindShopSubscribers(ctx, shopID); err == nil {
			for _, s := range subs {
				f.admit(ctx, Candidate{
					UserID:     s.UserID,
					Type:       repository.NotificationTypeShop,
					TargetType: "product",
					TargetID:   targetID,
					Message:    message,
				})
			}
		}
	}
	if brandID, ok := recordInt64(ev.Record, "brand_id"); ok {
		if subs, err := f.users.FindBrandSubscribers(ctx, brandID); err == nil {
			for _, s := range subs {
				f.admit(ctx, Candidate{
					UserID:     s.UserID,
					Type:       repository.NotificationTypeBrand,
					TargetType: "product",
					TargetID:   targetID,
					Message:    message,
				})
			}
		}
	}
	if categoryID, ok := recordInt64(ev.Record, "category_id"); ok {
		if subs, err := f.users.FindCategorySubscribers(ctx, categoryID); err == nil {
			for _, s := range subs {
				f.admit(ctx, Candidate{
					UserID:     s.UserID,
					Type:       repository.NotificationTypeCategory,
					TargetType: "product",
					TargetID:   targetID,
					Message:    message,
				})
			}
		}
	}
}

// onNewSubscriber makes sure a first-time subscriber has a settings
// record before any notification for them reaches the gate.
func (f *Feed) onNewSubscriber(ev realtime.ChangeEvent) {
	userID, ok := recordString(ev.Record, "user_id")
	if !ok {
		return
	}
	if err := f.gate.Warm(context.Background(), userID); err != nil {
		slog.Warn("settings warm-up failed", "user_id", userID, "error", err)
	}
}

func (f *Feed) admit(ctx context.Context, c Candidate) {
	if _, err := f.gate.Admit(ctx, c); err != nil {
		slog.Warn("notification admit failed", "user_id", c.UserID, "type", c.Type, "error", err)
	}
}

// JSON numbers decode as float64; the record helpers normalize that.
func recordInt64(record map[string]any, key string) (int64, bool) {
	switch v := record[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func recordFloat(record map[string]any, key string) (float64, bool) {
	switch v := record[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func recordString(record map[string]any, key string) (string, bool) {
	s, ok := record[key].(string)
	return s, ok && s != ""
}
