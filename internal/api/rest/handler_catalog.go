package rest

import (
	"net/http"
	"strconv"

	"dealstream/internal/repository"
	"dealstream/pkg/model"
)

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		return 0, model.Validationf("invalid %s %q", name, r.PathValue(name))
	}
	return id, nil
}

func (h *Handler) handleListShops(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	result, err := repository.NewShopRepo(ch).FindShopsPage(r.Context(), page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetShop(w http.ResponseWriter, r *http.Request) {
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
	shop, err := repository.NewShopRepo(ch).FindShopByID(r.Context(), id)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, shop)
}

func (h *Handler) handleListBrands(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	result, err := repository.NewShopRepo(ch).FindBrandsPage(r.Context(), page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleListCategories lists children of ?parent_id, or the roots when
// the parameter is absent.
func (h *Handler) handleListCategories(w http.ResponseWriter, r *http.Request) {
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	var parentID *int64
	if raw := r.URL.Query().Get("parent_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeModelError(w, model.Validationf("invalid parent_id %q", raw))
			return
		}
		parentID = &id
	}
	categories, err := repository.NewShopRepo(ch).FindCategoriesByParent(r.Context(), parentID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// handleListProducts lists products, optionally narrowed to one shop,
// brand or category via query parameters.
func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	repo := repository.NewProductRepo(ch)

	var result model.PageResult[repository.Product]
	query := r.URL.Query()
	switch {
	case query.Get("shop_id") != "":
		id, convErr := strconv.ParseInt(query.Get("shop_id"), 10, 64)
		if convErr != nil {
			writeModelError(w, model.Validationf("invalid shop_id"))
			return
		}
		result, err = repo.FindByShopPage(r.Context(), id, page)
	case query.Get("brand_id") != "":
		id, convErr := strconv.ParseInt(query.Get("brand_id"), 10, 64)
		if convErr != nil {
			writeModelError(w, model.Validationf("invalid brand_id"))
			return
		}
		result, err = repo.FindByBrandPage(r.Context(), id, page)
	case query.Get("category_id") != "":
		id, convErr := strconv.ParseInt(query.Get("category_id"), 10, 64)
		if convErr != nil {
			writeModelError(w, model.Validationf("invalid category_id"))
			return
		}
		result, err = repo.FindByCategoryPage(r.Context(), id, page)
	default:
		result, err = repo.FindPage(r.Context(), page)
	}
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListPopularProducts(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	result, err := repository.NewProductRepo(ch).FindPopularPage(r.Context(), page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
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
	product, err := repository.NewProductRepo(ch).FindByID(r.Context(), id)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (h *Handler) handleProductClick(w http.ResponseWriter, r *http.Request) {
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
	if err := repository.NewProductRepo(ch).IncrementClickCount(r.Context(), id); err != nil {
		writeModelError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListDiscounts(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	repo := repository.NewDiscountRepo(ch)

	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, convErr := strconv.ParseInt(raw, 10, 64)
		if convErr != nil {
			writeModelError(w, model.Validationf("invalid product_id"))
			return
		}
		discounts, err := repo.FindByProduct(r.Context(), id)
		if err != nil {
			writeModelError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, discounts)
		return
	}

	result, err := repo.FindPage(r.Context(), page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListActiveDiscounts(w http.ResponseWriter, r *http.Request) {
	page, err := decodePage(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	ch, err := h.channel(r)
	if err != nil {
		writeModelError(w, err)
		return
	}
	result, err := repository.NewDiscountRepo(ch).FindActivePage(r.Context(), page)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleGetDiscount(w http.ResponseWriter, r *http.Request) {
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
	discount, err := repository.NewDiscountRepo(ch).FindByID(r.Context(), id)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, discount)
}
