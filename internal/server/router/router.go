package router

import (
	"log/slog"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"

	"github.com/andymarkow/accountmart/internal/auth"
	"github.com/andymarkow/accountmart/internal/market"
	"github.com/andymarkow/accountmart/internal/server/handlers"
	"github.com/andymarkow/accountmart/internal/storage"
)

type Options struct {
	log    *slog.Logger
	secret []byte
}

func NewRouter(store storage.Storage, engine *market.Engine, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:    slog.New(slog.DiscardHandler),
		secret: []byte(""),
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	tokenAuth := auth.NewJWTAuth(rOpts.secret).TokenAuth()

	r.Use(
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.RequestID,
		middleware.Logger,
	)

	h := handlers.NewHandlers(store, engine,
		handlers.WithLogger(rOpts.log),
	)

	r.Get("/ping", h.Ping)

	// Browsing works without a token, a valid one unlocks owner views.
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(tokenAuth))

		r.Get("/api/accounts", h.ListAccounts)
		r.Get("/api/accounts/{id}", h.GetAccount)
	})

	r.Group(func(r chi.Router) {
		r.Use(
			jwtauth.Verifier(tokenAuth),
			jwtauth.Authenticator(tokenAuth),
		)

		r.Post("/api/user/profile", h.EnsureUserProfile)
		r.Get("/api/user/balance", h.GetUserBalance)

		r.Post("/api/accounts", h.CreateAccount)
		r.Get("/api/accounts/{id}/credentials", h.GetAccountCredentials)
		r.Get("/api/accounts/{id}/orders", h.GetAccountOrders)
		r.Post("/api/accounts/{id}/reclaim", h.ReclaimAccount)

		r.Post("/api/orders", h.CreateOrder)
		r.Post("/api/orders/checkout", h.CheckoutOrder)
		r.Get("/api/orders", h.GetUserOrders)
		r.Patch("/api/orders/{id}/status", h.UpdateOrderStatus)

		r.Post("/api/wallet/transactions", h.CreateTransaction)
		r.Get("/api/wallet/transactions", h.GetUserTransactions)

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/wallet/transactions", h.GetPendingTransactions)
			r.Post("/wallet/transactions/{id}/approve", h.ApproveTransaction)
			r.Post("/wallet/transactions/{id}/reject", h.RejectTransaction)
			r.Patch("/accounts/{id}/visibility", h.SetAccountVisibility)
			r.Post("/users/{id}/balance", h.UpdateUserBalance)
		})
	})

	return r
}

type Option func(r *Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}
