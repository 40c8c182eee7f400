package api

import "net/http"

// Reports never fail; a broken query yields an empty result.

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.TopProducts(r.Context()))
}

func (h *Handler) monthlyStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.Monthly(r.Context()))
}

func (h *Handler) topDebtors(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stats.TopDebtors(r.Context()))
}
