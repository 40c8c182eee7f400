package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"stockapp/m/domain"
	"stockapp/m/internal/store"
)

type createItemRequest struct {
	Name        string          `json:"name"`
	Description *string         `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
}

type updateItemRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int64           `json:"stock"`
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	items, err := store.New(h.db).Items.List(r.Context(), store.ItemFilter{
		Page:      page,
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) lowStockItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.stock.LowStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		h.fail(w, r, domain.Invalid("name", "is required"))
		return
	}
	if req.Price.IsNegative() || !domain.IsMoney(req.Price) {
		h.fail(w, r, domain.Invalid("price", "must be a non-negative amount with at most 2 decimal places"))
		return
	}
	it := &domain.Item{
		Name:        name,
		Description: nullIfEmpty(req.Description),
		Price:       req.Price,
		Stock:       req.Stock,
	}
	if err := store.New(h.db).Items.Create(r.Context(), it); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, it)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	it, err := store.New(h.db).Items.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}

// updateItem edits the catalogue fields. Stock only moves through sales and
// stock updates.
func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.Stock != nil {
		h.fail(w, r, domain.Invalid("stock", "use /stock-updates/ to change stock"))
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		h.fail(w, r, domain.Invalid("name", "must not be empty"))
		return
	}
	if req.Price != nil && (req.Price.IsNegative() || !domain.IsMoney(*req.Price)) {
		h.fail(w, r, domain.Invalid("price", "must be a non-negative amount with at most 2 decimal places"))
		return
	}
	it, err := store.New(h.db).Items.Update(r.Context(), id, store.ItemUpdate{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	items := store.New(h.db).Items
	it, err := items.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := items.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, it)
}
