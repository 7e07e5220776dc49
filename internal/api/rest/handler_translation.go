package rest

import (
	"net/http"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

func (h *Handler) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	languages, err := repository.NewTranslationRepo(ch).FindActiveLanguages(r.Context())
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, languages)
}

// handleEntityTranslations serves one entity's translation rows. With
// ?locale= it returns the single row for that locale; without it, every
// locale's row.
func (h *Handler) handleEntityTranslations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	repo := repository.NewTranslationRepo(ch)
	locale := r.URL.Query().Get("locale")

	var out any
	switch kind := r.PathValue("kind"); kind {
	case "shops":
		if locale != "" {
			out, err = repo.FindShopTranslation(r.Context(), id, locale)
		} else {
			out, err = repo.FindShopTranslations(r.Context(), id)
		}
	case "brands":
		if locale != "" {
			out, err = repo.FindBrandTranslation(r.Context(), id, locale)
		} else {
			out, err = repo.FindBrandTranslations(r.Context(), id)
		}
	case "categories":
		if locale != "" {
			out, err = repo.FindCategoryTranslation(r.Context(), id, locale)
		} else {
			out, err = repo.FindCategoryTranslations(r.Context(), id)
		}
	case "products":
		if locale != "" {
			out, err = repo.FindProductTranslation(r.Context(), id, locale)
		} else {
			out, err = repo.FindProductTranslations(r.Context(), id)
		}
	case "discounts":
		if locale != "" {
			out, err = repo.FindDiscountTranslation(r.Context(), id, locale)
		} else {
			out, err = repo.FindDiscountTranslations(r.Context(), id)
		}
	default:
		writeModelError(w, model.Validationf("unknown translation kind %q", kind))
		return
	}
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
