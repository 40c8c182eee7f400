package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"stockapp/m/internal/auth"
	"stockapp/m/internal/payments"
	"stockapp/m/internal/sales"
	"stockapp/m/internal/seed"
	"stockapp/m/internal/stats"
	"stockapp/m/internal/stock"
)

// Deps are the services the HTTP layer delegates to.
type Deps struct {
	DB          *sqlx.DB
	Tokens      *auth.Tokens
	Sales       *sales.Manager
	Stock       *stock.Service
	Payments    *payments.Service
	Stats       *stats.Service
	Dummy       *seed.Generator
	Log         *zap.Logger
	CORSOrigins []string
	Timeout     time.Duration
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	db       *sqlx.DB
	tokens   *auth.Tokens
	sales    *sales.Manager
	stock    *stock.Service
	payments *payments.Service
	stats    *stats.Service
	dummy    *seed.Generator
	log      *zap.Logger
	origins  []string
	timeout  time.Duration
}

// New constructs a Handler.
func New(d Deps) *Handler {
	return &Handler{
		db:       d.DB,
		tokens:   d.Tokens,
		sales:    d.Sales,
		stock:    d.Stock,
		payments: d.Payments,
		stats:    d.Stats,
		dummy:    d.Dummy,
		log:      d.Log,
		origins:  d.CORSOrigins,
		timeout:  d.Timeout,
	}
}

// Router wires up the HTTP API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key"},
		AllowCredentials: true,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.Get("/", h.welcome)
	r.Get("/health", h.health)
	r.Post("/token", h.login)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/users/me", h.me)

		pr.Route("/customers", func(r chi.Router) {
			r.Get("/", h.listCustomers)
			r.Post("/", h.createCustomer)
			r.Get("/{id}", h.getCustomer)
			r.Put("/{id}", h.updateCustomer)
			r.Delete("/{id}", h.deleteCustomer)
			r.Get("/{id}/statement", h.customerStatement)
		})

		pr.Route("/items", func(r chi.Router) {
			r.Get("/", h.listItems)
			r.Post("/", h.createItem)
			r.Get("/low-stock", h.lowStockItems)
			r.Get("/{id}", h.getItem)
			r.Put("/{id}", h.updateItem)
			r.Delete("/{id}", h.deleteItem)
		})

		pr.Route("/sales", func(r chi.Router) {
			r.Get("/", h.listSales)
			r.Post("/", h.createSale)
			r.Get("/{id}", h.getSale)
			r.Put("/{id}", h.updateSale)
			r.Delete("/{id}", h.deleteSale)
		})

		pr.Route("/stock-updates", func(r chi.Router) {
			r.Get("/", h.listStockUpdates)
			r.Post("/", h.createStockUpdate)
		})

		pr.Route("/payments", func(r chi.Router) {
			r.Get("/", h.listPayments)
			r.Post("/", h.createPayment)
		})

		pr.Route("/stats", func(r chi.Router) {
			r.Get("/top-products", h.topProducts)
			r.Get("/monthly", h.monthlyStats)
			r.Get("/top-debtors", h.topDebtors)
		})

		pr.Route("/config", func(r chi.Router) {
			r.Get("/low-stock-threshold", h.getLowStockThreshold)
			r.Post("/low-stock-threshold", h.setLowStockThreshold)
		})

		pr.Group(func(ar chi.Router) {
			ar.Use(h.requireAdmin)

			ar.Route("/users", func(r chi.Router) {
				r.Get("/", h.listUsers)
				r.Post("/", h.createUser)
				r.Get("/{id}", h.getUser)
				r.Put("/{id}", h.updateUser)
				r.Delete("/{id}", h.deleteUser)
			})

			ar.Post("/load-dummy-data", h.loadDummyData)
		})
	})

	return r
}

func (h *Handler) welcome(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Stock App API"})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
