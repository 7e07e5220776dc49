package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

type fakeSettingsStore struct {
	mu       sync.Mutex
	ensures  int32
	delay    time.Duration
	settings map[string]repository.NotificationSettings
	err      error
}

func (s *fakeSettingsStore) EnsureSettings(_ context.Context, userID string) (*repository.NotificationSettings, error) {
	atomic.AddInt32(&s.ensures, 1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok := s.settings[userID]; ok {
		return &settings, nil
	}
	settings := repository.DefaultSettings(userID)
	if s.settings == nil {
		s.settings = make(map[string]repository.NotificationSettings)
	}
	s.settings[userID] = settings
	return &settings, nil
}

type fakeNotificationStore struct {
	mu            sync.Mutex
	notifications []repository.Notification
	logs          []repository.NotificationLog
	createErr     error
}

func (s *fakeNotificationStore) Create(_ context.Context, n repository.Notification) (*repository.Notification, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = "n1"
	s.notifications = append(s.notifications, n)
	return &n, nil
}

func (s *fakeNotificationStore) CreateLog(_ context.Context, entry repository.NotificationLog) (*repository.NotificationLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return &entry, nil
}

func newTestGate(t *testing.T, settings *fakeSettingsStore, store *fakeNotificationStore, deliverer Deliverer) *Gate {
	t.Helper()
	gate := NewGate(settings, store, deliverer, time.Minute)
	t.Cleanup(gate.Close)
	return gate
}

func TestAdmitDefaultSettingsDeliver(t *testing.T) {
	settings := &fakeSettingsStore{}
	store := &fakeNotificationStore{}
	var delivered []repository.Notification
	gate := newTestGate(t, settings, store, NewCallbackDeliverer(func(n repository.Notification) {
		delivered = append(delivered, n)
	}))

	created, err := gate.Admit(context.Background(), Candidate{
		UserID:   "u1",
		Type:     repository.NotificationTypeDiscount,
		TargetID: "42",
		Message:  "Widget is 50% off",
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "u1", created.UserID)
	assert.Nil(t, created.ReadAt, "new notifications start unread")

	require.Len(t, store.notifications, 1)
	require.Len(t, store.logs, 1)
	assert.Equal(t, "Widget is 50% off", store.logs[0].Message)
	require.Len(t, delivered, 1)
	assert.Equal(t, "n1", delivered[0].ID)
}

func TestAdmitSuppressedByCategoryToggle(t *testing.T) {
	disabled := repository.DefaultSettings("u1")
	disabled.DiscountNotifications = false
	settings := &fakeSettingsStore{settings: map[string]repository.NotificationSettings{"u1": disabled}}
	store := &fakeNotificationStore{}
	gate := newTestGate(t, settings, store, nil)

	created, err := gate.Admit(context.Background(), Candidate{
		UserID:   "u1",
		Type:     repository.NotificationTypeDiscount,
		TargetID: "42",
	})
	require.NoError(t, err)
	assert.Nil(t, created)
	assert.Empty(t, store.notifications, "suppressed candidates are never persisted")

	// Other categories still pass.
	created, err = gate.Admit(context.Background(), Candidate{
		UserID:   "u1",
		Type:     repository.NotificationTypeShop,
		TargetID: "7",
	})
	require.NoError(t, err)
	assert.NotNil(t, created)
}

func TestAdmitSuppressedByPushMaster(t *testing.T) {
	off := repository.DefaultSettings("u1")
	off.PushEnabled = false
	settings := &fakeSettingsStore{settings: map[string]repository.NotificationSettings{"u1": off}}
	store := &fakeNotificationStore{}
	gate := newTestGate(t, settings, store, nil)

	for _, typ := range []string{
		repository.NotificationTypeDiscount,
		repository.NotificationTypeShop,
		repository.NotificationTypeBrand,
		repository.NotificationTypeCategory,
	} {
		created, err := gate.Admit(context.Background(), Candidate{UserID: "u1", Type: typ, TargetID: "1"})
		require.NoError(t, err)
		assert.Nil(t, created, "type %s", typ)
	}
	assert.Empty(t, store.notifications)
}

func TestAdmitUnknownType(t *testing.T) {
	gate := newTestGate(t, &fakeSettingsStore{}, &fakeNotificationStore{}, nil)

	_, err := gate.Admit(context.Background(), Candidate{UserID: "u1", Type: "mystery"})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	_, err = gate.Admit(context.Background(), Candidate{Type: repository.NotificationTypeShop})
	assert.True(t, model.IsValidation(err))
}

// Concurrent first-contact admits for one user collapse into a single
// settings fetch.
func TestAdmitConcurrentFirstContact(t *testing.T) {
	settings := &fakeSettingsStore{delay: 20 * time.Millisecond}
	store := &fakeNotificationStore{}
	gate := newTestGate(t, settings, store, nil)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.Admit(context.Background(), Candidate{
				UserID:   "u1",
				Type:     repository.NotificationTypeDiscount,
				TargetID: "42",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&settings.ensures))
	assert.Len(t, store.notifications, workers)
}

func TestInvalidateForcesReRead(t *testing.T) {
	settings := &fakeSettingsStore{}
	gate := newTestGate(t, settings, &fakeNotificationStore{}, nil)

	require.NoError(t, gate.Warm(context.Background(), "u1"))
	require.NoError(t, gate.Warm(context.Background(), "u1"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&settings.ensures), "second warm served from cache")

	gate.Invalidate("u1")
	require.NoError(t, gate.Warm(context.Background(), "u1"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&settings.ensures))
}

func TestAdmitSettingsFetchFailure(t *testing.T) {
	settings := &fakeSettingsStore{err: model.Databasef(500, "settings table down")}
	store := &fakeNotificationStore{}
	gate := newTestGate(t, settings, store, nil)

	_, err := gate.Admit(context.Background(), Candidate{
		UserID: "u1", Type: repository.NotificationTypeDiscount, TargetID: "1",
	})
	require.Error(t, err)
	assert.Equal(t, model.KindDatabase, model.KindOf(err))
	assert.Empty(t, store.notifications)
}
