package api

import (
	"net/http"

	"go.uber.org/zap"

	"stockapp/m/internal/auth"
)

func (h *Handler) loadDummyData(w http.ResponseWriter, r *http.Request) {
	u := auth.UserFromContext(r.Context())
	h.log.Warn("replacing business data with dummy data", zap.String("requested_by", u.Username))
	summary, err := h.dummy.Run(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}
