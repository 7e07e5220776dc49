package rest

import (
	"net/http"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	result, err := repo.FindPage(r.Context(), userID, page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUnreadNotifications(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	notifications, err := repo.FindUnread(r.Context(), userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	repo, _, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	updated, err := repo.MarkRead(r.Context(), r.PathValue("id"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleGetSettings reads the caller's settings, creating the default
// all-enabled record on first contact.
func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	settings, err := repo.EnsureSettings(r.Context(), userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *Handler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	var settings repository.NotificationSettings
	if err := decodeBody(r, &settings); err != nil {
		writeModelError(w, err)
		return
	}
	settings.UserID = userID
	updated, err := repo.UpdateSettings(r.Context(), settings)
	if err != nil {
		writeModelError(w, err)
		return
	}
	if h.gate != nil {
		h.gate.Invalidate(userID)
	}
	writeJSON(w, http.StatusOK, updated)
}

type toggleSettingRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleToggleSetting flips one toggle: push, discount, shop, brand or
// category.
func (h *Handler) handleToggleSetting(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.notificationRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	var body toggleSettingRequest
	if err := decodeBody(r, &body); err != nil {
		writeModelError(w, err)
		return
	}
	if body.Enabled == nil {
		writeModelError(w, model.Validationf("enabled field is required"))
		return
	}
	updated, err := repo.ToggleSetting(r.Context(), userID, r.PathValue("category"), *body.Enabled)
	if err != nil {
		writeModelError(w, err)
		return
	}
	if h.gate != nil {
		h.gate.Invalidate(userID)
	}
	writeJSON(w, http.StatusOK, updated)
}
