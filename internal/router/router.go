package router

import (
	"net/http"

	"github.com/antonminaichev/cashback-ledger/internal/ledger"
	"github.com/antonminaichev/cashback-ledger/internal/link"
	"github.com/antonminaichev/cashback-ledger/internal/logger"
	"github.com/antonminaichev/cashback-ledger/internal/middleware"
	"github.com/antonminaichev/cashback-ledger/internal/order"
	"github.com/antonminaichev/cashback-ledger/internal/ratelimit"
	"github.com/antonminaichev/cashback-ledger/internal/user"
	"github.com/antonminaichev/cashback-ledger/internal/user/admin"
	"github.com/antonminaichev/cashback-ledger/internal/withdrawal"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	User       *user.Handler
	Ledger     *ledger.Handler
	Withdrawal *withdrawal.Handler
	Link       *link.Handler
	Order      *order.Handler
	Users      *admin.Handler
}

func NewRouter(
	h Handlers,
	limiter *ratelimit.Limiter,
	jwtSecret []byte,
	userRepo user.UserRepository,
) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logger.WithLogging)
	r.Use(chiMiddleware.Recoverer)

	r.Use(middleware.GzipHandler)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/r/{code}", h.Link.Redirect)

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.User.Register)
		r.Post("/login", h.User.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTMiddleware(jwtSecret, userRepo))

		r.Get("/api/user/balance", h.Ledger.GetBalance)
		r.Get("/api/user/ledger", h.Ledger.History)

		r.With(limiter.Middleware("withdrawals")).Post("/api/user/withdrawals", h.Withdrawal.Request)
		r.Get("/api/user/withdrawals", h.Withdrawal.ListMine)

		r.With(limiter.Middleware("links")).Post("/api/user/links", h.Link.Generate)
		r.Get("/api/user/links", h.Link.List)

		r.Post("/api/user/orders", h.Order.SubmitOrder)
		r.Get("/api/user/orders", h.Order.ListOrders)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Get("/withdrawals", h.Withdrawal.List)
			r.Post("/withdrawals/{id}/approve", h.Withdrawal.Approve)
			r.Post("/withdrawals/{id}/reject", h.Withdrawal.Reject)
			r.Post("/withdrawals/{id}/processing", h.Withdrawal.MarkProcessing)

			r.Get("/accounts/{id}/balance", h.Ledger.AccountBalance)
			r.Post("/accounts/{id}/payout", h.Ledger.Payout)
			r.Post("/accounts/{id}/bonus", h.Ledger.Bonus)

			r.Get("/users", h.Users.List)
			r.Patch("/users/{id}", h.Users.Update)
			r.Post("/users/{id}/ban", h.Users.Ban)
			r.Post("/users/{id}/password", h.Users.ResetPassword)
		})
	})

	return r
}
