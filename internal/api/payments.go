package api

import (
	"net/http"

	"stockapp/m/internal/payments"
	"stockapp/m/internal/store"
)

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	customerID, err := queryID(r, "customer_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	saleID, err := queryID(r, "sale_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.payments.List(r.Context(), store.PaymentFilter{Page: page, CustomerID: customerID, SaleID: saleID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var in payments.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.Description = nullIfEmpty(in.Description)
	p, err := h.payments.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}
