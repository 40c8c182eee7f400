package api

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/auth"
)

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	User        domain.User `json:"user"`
}

// login takes the OAuth2 password form.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	u, err := auth.Authenticate(r.Context(), h.db, username, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInactiveUser):
		h.log.Info("login refused", zap.String("username", username), zap.Error(err))
		unauthorized(w, err.Error())
		return
	case err != nil:
		h.fail(w, r, err)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer", User: *u})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, auth.UserFromContext(r.Context()))
}
