package repository

import (
	"context"
	"errors"
	"time"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

// NotificationRepo serves notifications, notification logs and the
// per-user settings record.
type NotificationRepo struct {
	ch *supa.Channel
}

func NewNotificationRepo(ch *supa.Channel) *NotificationRepo {
	return &NotificationRepo{ch: ch}
}

func (r *NotificationRepo) FindPage(ctx context.Context, userID string, page model.PageRequest) (model.PageResult[Notification], error) {
	return findPage[Notification](ctx, r.ch, "notifications", page,
		model.Order{Column: "created_at", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Eq("user_id", userID)
		})
}

func (r *NotificationRepo) FindUnread(ctx context.Context, userID string) ([]Notification, error) {
	var notifications []Notification
	err := r.ch.From("notifications").
		Eq("user_id", userID).
		Is("read_at", "null").
		Order("created_at", true).
		Execute(ctx, &notifications)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead sets read_at; notifications are never hard-deleted.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID string) (*Notification, error) {
	var updated Notification
	err := r.ch.From("notifications").
		Eq("id", notificationID).
		Update(ctx, map[string]any{"read_at": time.Now().UTC().Format(time.RFC3339)}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (r *NotificationRepo) Create(ctx context.Context, n Notification) (*Notification, error) {
	var created Notification
	if err := r.ch.From("notifications").Insert(ctx, n, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// DefaultSettings returns the all-enabled record a user starts with.
func DefaultSettings(userID string) NotificationSettings {
	now := time.Now().UTC()
	return NotificationSettings{
		UserID:                userID,
		PushEnabled:           true,
		DiscountNotifications: true,
		ShopNotifications:     true,
		BrandNotifications:    true,
		CategoryNotifications: true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// GetSettings reads the user's settings record without creating it.
func (r *NotificationRepo) GetSettings(ctx context.Context, userID string) (*NotificationSettings, error) {
	return findOne[NotificationSettings](ctx, r.ch, "notification_settings", func(q *supa.QueryBuilder) {
		q.Eq("user_id", userID)
	})
}

// EnsureSettings reads the user's settings, creating the default record
// on first read. A concurrent creator winning the insert race is folded
// into a re-read, so at most one default record exists per user.
func (r *NotificationRepo) EnsureSettings(ctx context.Context, userID string) (*NotificationSettings, error) {
	settings, err := r.GetSettings(ctx, userID)
	if err == nil {
		return settings, nil
	}
	if !model.IsNotFound(err) {
		return nil, err
	}

	var created NotificationSettings
	insertErr := r.ch.From("notification_settings").Insert(ctx, DefaultSettings(userID), &created)
	if insertErr == nil {
		return &created, nil
	}
	var typed *model.Error
	if errors.As(insertErr, &typed) && typed.Kind == model.KindConflict {
		// First writer won; read the record back.
		return r.GetSettings(ctx, userID)
	}
	return nil, insertErr
}

func (r *NotificationRepo) UpdateSettings(ctx context.Context, settings NotificationSettings) (*NotificationSettings, error) {
	settings.UpdatedAt = time.Now().UTC()
	var updated NotificationSettings
	err := r.ch.From("notification_settings").
		Eq("user_id", settings.UserID).
		Update(ctx, settings, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// ToggleSetting flips one category toggle via read-modify-write.
func (r *NotificationRepo) ToggleSetting(ctx context.Context, userID, category string, enabled bool) (*NotificationSettings, error) {
	settings, err := r.EnsureSettings(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch category {
	case "push":
		settings.PushEnabled = enabled
	case "discount":
		settings.DiscountNotifications = enabled
	case "shop":
		settings.ShopNotifications = enabled
	case "brand":
		settings.BrandNotifications = enabled
	case "category":
		settings.CategoryNotifications = enabled
	default:
		return nil, model.Validationf("unknown notification category %q", category)
	}
	return r.UpdateSettings(ctx, *settings)
}

func (r *NotificationRepo) CreateLog(ctx context.Context, entry NotificationLog) (*NotificationLog, error) {
	var created NotificationLog
	if err := r.ch.From("notification_logs").Insert(ctx, entry, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *NotificationRepo) FindLogsPage(ctx context.Context, userID string, page model.PageRequest) (model.PageResult[NotificationLog], error) {
	return findPage[NotificationLog](ctx, r.ch, "notification_logs", page,
		model.Order{Column: "created_at", Descending: true},
		func(q *supa.QueryBuilder) {
			q.Eq("user_id", userID)
		})
}
