// Package rest exposes the catalog, subscription and notification
// surfaces over HTTP. Handlers run their queries through a channel for
// the caller's credential tier; admin channels are never built from
// request input.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/schema"

	"dealstream/internal/notify"
	"dealstream/internal/repository"
	"dealstream/internal/supa"
	"dealstream/pkg/model"
)

type contextKey string

const contextKeyRequestID contextKey = "request_id"

const (
	DefaultMaxBodySize    = 1 << 20
	DefaultRequestTimeout = 30 * time.Second
)

// APIError is the structured error body every failure returns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var queryDecoder = newQueryDecoder()

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

type Handler struct {
	factory *supa.Factory
	gate    *notify.Gate
}

func NewHandler(factory *supa.Factory, gate *notify.Gate) *Handler {
	if factory == nil {
		panic("channel factory cannot be nil")
	}
	return &Handler{factory: factory, gate: gate}
}

// tierOf derives the caller's credential tier from the Authorization
// header. No request input can yield the admin tier.
func tierOf(r *http.Request) supa.Tier {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return supa.Public()
	}
	return supa.Authenticated(token)
}

func (h *Handler) channel(r *http.Request) (*supa.Channel, error) {
	return h.factory.Channel(tierOf(r))
}

// userOf extracts the caller's subject from the bearer token. Requests
// without an authenticated identity get an authentication error.
func userOf(r *http.Request) (string, error) {
	tier := tierOf(r)
	if tier.Kind() != supa.TierAuthenticated {
		return "", model.Authenticationf("authenticated request required")
	}
	return supa.SubjectOf(tier.Token())
}

func decodePage(r *http.Request) (model.PageRequest, error) {
	page := model.PageRequest{Page: 1, Limit: 20}
	if err := queryDecoder.Decode(&page, r.URL.Query()); err != nil {
		return page, model.Validationf("invalid pagination parameters: %v", err)
	}
	return page, nil
}

func decodeBody(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return model.Validationf("invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(APIError{Code: code, Message: message}); err != nil {
		slog.Warn("Failed to encode error response", "error", err)
	}
}

// writeModelError maps typed service errors onto HTTP statuses.
func writeModelError(w http.ResponseWriter, err error) {
	kind := model.KindOf(err)
	switch kind {
	case model.KindValidation:
		writeError(w, http.StatusBadRequest, kind.Code(), err.Error())
	case model.KindAuthentication:
		writeError(w, http.StatusUnauthorized, kind.Code(), err.Error())
	case model.KindAuthorization:
		writeError(w, http.StatusForbidden, kind.Code(), err.Error())
	case model.KindNotFound:
		writeError(w, http.StatusNotFound, kind.Code(), err.Error())
	case model.KindConflict:
		writeError(w, http.StatusConflict, kind.Code(), err.Error())
	case model.KindTransport:
		writeError(w, http.StatusBadGateway, kind.Code(), "Upstream data service unavailable")
	default:
		writeError(w, http.StatusInternalServerError, kind.Code(), "Internal server error")
	}
}

func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		next(w, r.WithContext(ctx))
	}
}

func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

func withRecover(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("Panic recovered",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
					"stack", string(debug.Stack()),
					"request_id", getRequestID(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, model.KindInternal.Code(), "Internal server error")
			}
		}()
		next(w, r)
	}
}

func withTimeout(next http.HandlerFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next(w, r.WithContext(ctx))
	}
}

func maxBodySize(next http.HandlerFunc, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		next(w, r)
	}
}

func std(next http.HandlerFunc) http.HandlerFunc {
	return withRequestID(withRecover(withTimeout(next, DefaultRequestTimeout)))
}

func stdBody(next http.HandlerFunc) http.HandlerFunc {
	return std(maxBodySize(next, DefaultMaxBodySize))
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Catalog
	mux.HandleFunc("GET /api/v1/shops", std(h.handleListShops))
	mux.HandleFunc("GET /api/v1/shops/{id}", std(h.handleGetShop))
	mux.HandleFunc("GET /api/v1/brands", std(h.handleListBrands))
	mux.HandleFunc("GET /api/v1/categories", std(h.handleListCategories))
	mux.HandleFunc("GET /api/v1/products", std(h.handleListProducts))
	mux.HandleFunc("GET /api/v1/products/popular", std(h.handleListPopularProducts))
	mux.HandleFunc("GET /api/v1/products/{id}", std(h.handleGetProduct))
	mux.HandleFunc("POST /api/v1/products/{id}/click", std(h.handleProductClick))
	mux.HandleFunc("GET /api/v1/discounts", std(h.handleListDiscounts))
	mux.HandleFunc("GET /api/v1/discounts/active", std(h.handleListActiveDiscounts))
	mux.HandleFunc("GET /api/v1/discounts/{id}", std(h.handleGetDiscount))

	// Localization
	mux.HandleFunc("GET /api/v1/languages", std(h.handleListLanguages))
	mux.HandleFunc("GET /api/v1/translations/{kind}/{id}", std(h.handleEntityTranslations))

	// Profile and subscriptions
	mux.HandleFunc("GET /api/v1/me/profile", std(h.handleGetProfile))
	mux.HandleFunc("PUT /api/v1/me/profile", stdBody(h.handleUpdateProfile))
	mux.HandleFunc("GET /api/v1/me/subscriptions", std(h.handleListSubscriptions))
	mux.HandleFunc("POST /api/v1/me/subscriptions/{kind}/{id}", stdBody(h.handleAddSubscription))
	mux.HandleFunc("DELETE /api/v1/me/subscriptions/{kind}/{id}", std(h.handleRemoveSubscription))

	// Notifications
	mux.HandleFunc("GET /api/v1/me/notifications", std(h.handleListNotifications))
	mux.HandleFunc("GET /api/v1/me/notifications/unread", std(h.handleUnreadNotifications))
	mux.HandleFunc("POST /api/v1/me/notifications/{id}/read", std(h.handleMarkNotificationRead))
	mux.HandleFunc("GET /api/v1/me/notification-settings", std(h.handleGetSettings))
	mux.HandleFunc("PUT /api/v1/me/notification-settings", stdBody(h.handleUpdateSettings))
	mux.HandleFunc("PATCH /api/v1/me/notification-settings/{category}", stdBody(h.handleToggleSetting))

	// Health
	mux.HandleFunc("GET /health", withRequestID(withRecover(withTimeout(h.handleHealth, 5*time.Second))))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// notificationRepo builds a notification repo on the caller's channel.
func (h *Handler) notificationRepo(r *http.Request) (*repository.NotificationRepo, string, error) {
	userID, err := userOf(r)
	if err != nil {
		return nil, "", err
	}
	ch, err := h.channel(r)
	if err != nil {
		return nil, "", err
	}
	return repository.NewNotificationRepo(ch), userID, nil
}

func (h *Handler) userRepo(r *http.Request) (*repository.UserRepo, string, error) {
	userID, err := userOf(r)
	if err != nil {
		return nil, "", err
	}
	ch, err := h.channel(r)
	if err != nil {
		return nil, "", err
	}
	return repository.NewUserRepo(ch), userID, nil
}
