// Package notify decides whether proposed notifications reach a user.
// Every candidate passes through the filter gate, which consults the
// user's settings record (lazily created all-enabled on first contact)
// before persisting and handing off to a deliverer.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

// SettingsStore loads (and lazily creates) per-user settings records.
type SettingsStore interface {
	EnsureSettings(ctx context.Context, userID string) (*repository.NotificationSettings, error)
}

// NotificationStore persists admitted notifications and their logs.
type NotificationStore interface {
	Create(ctx context.Context, n repository.Notification) (*repository.Notification, error)
	CreateLog(ctx context.Context, entry repository.NotificationLog) (*repository.NotificationLog, error)
}

// Candidate is a notification proposal entering the gate.
type Candidate struct {
	UserID     string
	Type       string
	TargetType string
	TargetID   string
	ActorID    *string
	Message    string
}

// Gate applies the per-user notification filter. Settings are cached
// with a short TTL; concurrent first-contact reads for the same user
// collapse into a single settings fetch so only one default record is
// ever created.
type Gate struct {
	settings      SettingsStore
	notifications NotificationStore
	deliverer     Deliverer
	cache         *ttlcache.Cache[string, repository.NotificationSettings]
	group         singleflight.Group
}

func NewGate(settings SettingsStore, notifications NotificationStore, deliverer Deliverer, cacheTTL time.Duration) *Gate {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cache := ttlcache.New(
		ttlcache.WithTTL[string, repository.NotificationSettings](cacheTTL),
		ttlcache.WithDisableTouchOnHit[string, repository.NotificationSettings](),
	)
	go cache.Start()
	return &Gate{
		settings:      settings,
		notifications: notifications,
		deliverer:     deliverer,
		cache:         cache,
	}
}

// Close stops the settings cache's expiry loop.
func (g *Gate) Close() { g.cache.Stop() }

// Invalidate drops a user's cached settings, forcing the next admit to
// re-read the persisted record. Call it after a settings update.
func (g *Gate) Invalidate(userID string) { g.cache.Delete(userID) }

// Warm ensures a user's settings record exists, creating the default
// all-enabled record if needed.
func (g *Gate) Warm(ctx context.Context, userID string) error {
	_, err := g.settingsFor(ctx, userID)
	return err
}

func (g *Gate) settingsFor(ctx context.Context, userID string) (repository.NotificationSettings, error) {
	if item := g.cache.Get(userID); item != nil {
		return item.Value(), nil
	}
	v, err, _ := g.group.Do(userID, func() (any, error) {
		settings, err := g.settings.EnsureSettings(ctx, userID)
		if err != nil {
			return nil, err
		}
		g.cache.Set(userID, *settings, ttlcache.DefaultTTL)
		return *settings, nil
	})
	if err != nil {
		return repository.NotificationSettings{}, err
	}
	return v.(repository.NotificationSettings), nil
}

// Admit runs a candidate through the filter. It returns the persisted
// notification, or nil when the user's settings suppress it. Log and
// delivery failures do not undo an admitted notification.
func (g *Gate) Admit(ctx context.Context, c Candidate) (*repository.Notification, error) {
	if c.UserID == "" {
		return nil, model.Validationf("notification candidate requires a user id")
	}

	settings, err := g.settingsFor(ctx, c.UserID)
	if err != nil {
		return nil, err
	}
	if !settings.PushEnabled {
		slog.Debug("notification suppressed, push disabled", "user_id", c.UserID, "type", c.Type)
		return nil, nil
	}
	enabled, err := categoryEnabled(settings, c.Type)
	if err != nil {
		return nil, err
	}
	if !enabled {
		slog.Debug("notification suppressed by category toggle", "user_id", c.UserID, "type", c.Type)
		return nil, nil
	}

	n := repository.Notification{
		UserID:  c.UserID,
		ActorID: c.ActorID,
		Type:    c.Type,
	}
	if c.TargetType != "" {
		n.TargetType = &c.TargetType
	}
	if c.TargetID != "" {
		n.TargetID = &c.TargetID
	}

	created, err := g.notifications.Create(ctx, n)
	if err != nil {
		return nil, err
	}

	if _, err := g.notifications.CreateLog(ctx, repository.NotificationLog{
		UserID:           c.UserID,
		SubscriptionType: c.Type,
		TargetID:         c.TargetID,
		Message:          c.Message,
	}); err != nil {
		slog.Warn("notification log write failed", "user_id", c.UserID, "error", err)
	}

	if g.deliverer != nil {
		if err := g.deliverer.Deliver(ctx, *created); err != nil {
			slog.Warn("notification persisted but delivery failed",
				"user_id", c.UserID, "notification_id", created.ID, "error", err)
		}
	}
	return created, nil
}

// categoryEnabled maps a notification type tag to its settings toggle.
func categoryEnabled(s repository.NotificationSettings, notificationType string) (bool, error) {
	switch notificationType {
	case repository.NotificationTypeDiscount:
		return s.DiscountNotifications, nil
	case repository.NotificationTypeShop:
		return s.ShopNotifications, nil
	case repository.NotificationTypeBrand:
		return s.BrandNotifications, nil
	case repository.NotificationTypeCategory:
		return s.CategoryNotifications, nil
	default:
		return false, model.Validationf("unknown notification type %q", notificationType)
	}
}
