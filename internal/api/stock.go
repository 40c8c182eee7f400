package api

import (
	"net/http"

	"stockapp/m/domain"
)

type stockUpdateRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int64 `json:"quantity"`
}

type thresholdBody struct {
	Threshold int64 `json:"threshold"`
}

func (h *Handler) listStockUpdates(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	updates, err := h.stock.List(r.Context(), page)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updates)
}

// createStockUpdate applies a signed manual adjustment.
func (h *Handler) createStockUpdate(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.ItemID <= 0 {
		h.fail(w, r, domain.Invalid("item_id", "must be positive"))
		return
	}
	su, err := h.stock.Adjust(r.Context(), req.ItemID, req.Quantity)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, su)
}

func (h *Handler) getLowStockThreshold(w http.ResponseWriter, r *http.Request) {
	threshold, err := h.stock.Threshold(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, thresholdBody{Threshold: threshold})
}

func (h *Handler) setLowStockThreshold(w http.ResponseWriter, r *http.Request) {
	var req thresholdBody
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	threshold, err := h.stock.SetThreshold(r.Context(), req.Threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, thresholdBody{Threshold: threshold})
}
