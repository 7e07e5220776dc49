package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

const settingsBody = `{"user_id":"u1","push_enabled":true,"discount_notifications":true,` +
	`"shop_notifications":true,"brand_notifications":true,"category_notifications":true}`

// settingsService simulates the settings table: reads miss until a row
// exists, inserts can be forced to lose the creation race.
type settingsService struct {
	mu           sync.Mutex
	exists       bool
	conflictOnce bool
	gets         int
	inserts      int
}

func (s *settingsService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			s.gets++
			if !s.exists {
				w.WriteHeader(http.StatusNotAcceptable)
				return
			}
			w.Write([]byte(settingsBody))
		case http.MethodPost:
			s.inserts++
			if s.conflictOnce {
				// Another writer created the row between the miss and
				// this insert.
				s.conflictOnce = false
				s.exists = true
				w.WriteHeader(http.StatusConflict)
				return
			}
			s.exists = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(settingsBody))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func newSettingsRepo(t *testing.T, svc *settingsService) *NotificationRepo {
	t.Helper()
	server := httptest.NewServer(svc.handler())
	t.Cleanup(server.Close)

	factory, err := supa.NewFactory(supa.FactoryConfig{URL: server.URL, AnonKey: "anon"})
	require.NoError(t, err)
	ch, err := factory.Channel(supa.Public())
	require.NoError(t, err)
	return NewNotificationRepo(ch)
}

func TestDefaultSettingsAllEnabled(t *testing.T) {
	s := DefaultSettings("u1")
	assert.Equal(t, "u1", s.UserID)
	assert.True(t, s.PushEnabled)
	assert.True(t, s.DiscountNotifications)
	assert.True(t, s.ShopNotifications)
	assert.True(t, s.BrandNotifications)
	assert.True(t, s.CategoryNotifications)
}

func TestEnsureSettingsCreatesOnFirstRead(t *testing.T) {
	svc := &settingsService{}
	repo := newSettingsRepo(t, svc)

	settings, err := repo.EnsureSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, settings.PushEnabled)
	assert.Equal(t, 1, svc.inserts)

	// Second call reads the existing row, no new insert.
	_, err = repo.EnsureSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.inserts)
}

func TestEnsureSettingsLosingRaceReadsWinner(t *testing.T) {
	svc := &settingsService{conflictOnce: true}
	repo := newSettingsRepo(t, svc)

	settings, err := repo.EnsureSettings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", settings.UserID)
	assert.Equal(t, 1, svc.inserts, "losing insert is folded into a re-read, not retried")
}

func TestToggleSettingUnknownCategory(t *testing.T) {
	svc := &settingsService{exists: true}
	repo := newSettingsRepo(t, svc)

	_, err := repo.ToggleSetting(context.Background(), "u1", "bogus", true)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
