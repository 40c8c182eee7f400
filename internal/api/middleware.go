package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"stockapp/m/domain"
	"stockapp/m/internal/auth"
	"stockapp/m/internal/store"
)

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			h.log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			unauthorized(w, "not authenticated")
			return
		}
		tokenString := strings.TrimSpace(header[len("Bearer "):])
		claims, err := h.tokens.Parse(tokenString)
		if err != nil {
			unauthorized(w, auth.ErrInvalidToken.Error())
			return
		}

		u, err := store.New(h.db).Users.Get(r.Context(), claims.UserID)
		if errors.Is(err, domain.ErrNotFound) || (err == nil && u.Username != claims.Subject) {
			unauthorized(w, auth.ErrInvalidToken.Error())
			return
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		if !u.IsActive {
			unauthorized(w, auth.ErrInactiveUser.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), u)))
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u == nil {
			unauthorized(w, "not authenticated")
			return
		}
		if !u.IsAdmin {
			respondError(w, http.StatusForbidden, "insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondError(w, http.StatusUnauthorized, message)
}
