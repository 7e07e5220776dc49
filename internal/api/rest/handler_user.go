package rest

import (
	"net/http"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.userRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	profile, err := repo.FindProfile(r.Context(), userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.userRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	var profile repository.Profile
	if err := decodeBody(r, &profile); err != nil {
		writeModelError(w, err)
		return
	}
	// The profile row a caller can write is always their own.
	profile.UserID = userID
	updated, err := repo.UpdateProfile(r.Context(), profile)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.userRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	subs, err := repo.ListSubscriptions(r.Context(), userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

type addShopSubscriptionRequest struct {
	NotificationEnabled *bool `json:"notification_enabled"`
}

func (h *Handler) handleAddSubscription(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.userRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	targetID, err := pathID(r, "id")
	if err != nil {
		writeModelError(w, err)
		return
	}

	var created any
	switch kind := r.PathValue("kind"); kind {
	case "products":
		created, err = repo.AddProductSubscription(r.Context(), userID, targetID)
	case "brands":
		created, err = repo.AddBrandSubscription(r.Context(), userID, targetID)
	case "shops":
		notifyEnabled := true
		if r.ContentLength > 0 {
			var body addShopSubscriptionRequest
			if decodeErr := decodeBody(r, &body); decodeErr != nil {
				writeModelError(w, decodeErr)
				return
			}
			if body.NotificationEnabled != nil {
				notifyEnabled = *body.NotificationEnabled
			}
		}
		created, err = repo.AddShopSubscription(r.Context(), userID, targetID, notifyEnabled)
	case "categories":
		created, err = repo.AddCategorySubscription(r.Context(), userID, targetID)
	default:
		writeModelError(w, model.Validationf("unknown subscription kind %q", kind))
		return
	}
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleRemoveSubscription(w http.ResponseWriter, r *http.Request) {
	repo, userID, err := h.userRepo(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	targetID, err := pathID(r, "id")
	if err != nil {
		writeModelError(w, err)
		return
	}

	switch kind := r.PathValue("kind"); kind {
	case "products":
		err = repo.RemoveProductSubscription(r.Context(), userID, targetID)
	case "brands":
		err = repo.RemoveBrandSubscription(r.Context(), userID, targetID)
	case "shops":
		err = repo.RemoveShopSubscription(r.Context(), userID, targetID)
	case "categories":
		err = repo.RemoveCategorySubscription(r.Context(), userID, targetID)
	default:
		writeModelError(w, model.Validationf("unknown subscription kind %q", kind))
		return
	}
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
