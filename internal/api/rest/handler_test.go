package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dealstream/internal/supa"
)

// fakeDataService plays the downstream tables the handlers query.
type fakeDataService struct {
	mu       sync.Mutex
	requests []*http.Request
	routes   map[string]http.HandlerFunc
}

func (s *fakeDataService) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Clone(r.Context()))
		s.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if route, ok := s.routes[key]; ok {
			route(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestAPI(t *testing.T, svc *fakeDataService) *http.ServeMux {
	t.Helper()
	downstream := httptest.NewServer(svc.handler())
	t.Cleanup(downstream.Close)

	factory, err := supa.NewFactory(supa.FactoryConfig{
		URL:        downstream.URL,
		AnonKey:    "anon-key",
		ServiceKey: "service-key",
	})
	require.NoError(t, err)

	mux := http.NewServeMux()
	NewHandler(factory, nil).RegisterRoutes(mux)
	return mux
}

func callerToken(t *testing.T, subject string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": subject}).
		SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestListShopsReturnsPageEnvelope(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/shops": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"id":1,"name":"A"},{"id":2,"name":"B"}]`))
		},
		"HEAD /rest/v1/shops": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Range", "0-1/12")
		},
	}}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops?page=1&limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"total":12`)
	assert.Contains(t, body, `"total_pages":6`)
	assert.Contains(t, body, `"has_next":true`)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestListShopsInvalidPagination(t *testing.T) {
	svc := &fakeDataService{}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops?page=0", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	assert.Empty(t, svc.requests, "invalid paging never reaches the data service")
}

func TestGetShopNotFound(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/shops": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotAcceptable)
		},
	}}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/shops/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestDownstreamFailureMapsToDatabaseError(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/products": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("downstream stack trace"))
		},
	}}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?page=1&limit=10", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "DATABASE_ERROR")
	assert.NotContains(t, rec.Body.String(), "downstream stack trace")
}

func TestNotificationsRequireAuthentication(t *testing.T) {
	svc := &fakeDataService{}
	mux := newTestAPI(t, svc)

	for _, target := range []string{
		"/api/v1/me/notifications",
		"/api/v1/me/notification-settings",
		"/api/v1/me/subscriptions",
		"/api/v1/me/profile",
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "AUTHENTICATION_ERROR", target)
	}
	assert.Empty(t, svc.requests)
}

func TestGetSettingsUsesCallerCredentials(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/notification_settings": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user_id":"u1","push_enabled":true,"discount_notifications":true,` +
				`"shop_notifications":true,"brand_notifications":true,"category_notifications":true}`))
		},
	}}
	mux := newTestAPI(t, svc)
	token := callerToken(t, "u1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/notification-settings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"push_enabled":true`)

	require.NotEmpty(t, svc.requests)
	downstream := svc.requests[0]
	// The caller's token travels as the bearer; the service key never
	// appears on a caller-driven path.
	assert.Equal(t, "Bearer "+token, downstream.Header.Get("Authorization"))
	assert.Equal(t, "anon-key", downstream.Header.Get("apikey"))
	assert.Contains(t, downstream.URL.RawQuery, "user_id=eq.u1")
}

func TestToggleSettingValidation(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/notification_settings": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"user_id":"u1","push_enabled":true,"discount_notifications":true,` +
				`"shop_notifications":true,"brand_notifications":true,"category_notifications":true}`))
		},
	}}
	mux := newTestAPI(t, svc)
	token := callerToken(t, "u1")

	// Missing enabled field.
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/me/notification-settings/discount",
		strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown category.
	req = httptest.NewRequest(http.MethodPatch, "/api/v1/me/notification-settings/bogus",
		strings.NewReader(`{"enabled":false}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestAddSubscriptionUnknownKind(t *testing.T) {
	svc := &fakeDataService{}
	mux := newTestAPI(t, svc)
	token := callerToken(t, "u1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/me/subscriptions/widgets/5", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestListLanguages(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/languages": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[{"code":"en","name":"English","native_name":"English","is_active":true}]`))
		},
	}}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/languages", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"en"`)

	require.NotEmpty(t, svc.requests)
	assert.Contains(t, svc.requests[0].URL.RawQuery, "is_active=eq.true")
}

func TestEntityTranslationsByLocale(t *testing.T) {
	svc := &fakeDataService{routes: map[string]http.HandlerFunc{
		"GET /rest/v1/product_translations": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id":7,"product_id":42,"locale":"ko","name":"위젯"}`))
		},
	}}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translations/products/42?locale=ko", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locale":"ko"`)

	require.NotEmpty(t, svc.requests)
	query := svc.requests[0].URL.RawQuery
	assert.Contains(t, query, "product_id=eq.42")
	assert.Contains(t, query, "locale=eq.ko")
}

func TestEntityTranslationsUnknownKind(t *testing.T) {
	svc := &fakeDataService{}
	mux := newTestAPI(t, svc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/translations/widgets/42", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	assert.Empty(t, svc.requests)
}

func TestHealth(t *testing.T) {
	mux := newTestAPI(t, &fakeDataService{})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
