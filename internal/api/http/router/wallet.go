package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/handler"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
)

func (r *Router) registerWalletRoutes(api fiber.Router, h *handler.WalletHandler, g guards) {
	// Auth required only (user-scoped wallet)
	w := api.Group("/wallet", g.user, g.requireSelf(authorize.ResourceWallet, authorize.ActionManage))
	w.Get("/", h.Get)
	w.Get("/transactions", h.History)

	// Mutations replay on a repeated X-Idempotency-Key
	w.Post("/deposit", g.idempotent, h.Deposit)
	w.Post("/withdraw", g.idempotent, h.Withdraw)
	w.Post("/hold", g.idempotent, h.Hold)
	w.Post("/release", g.idempotent, h.Release)
	w.Post("/transfer", g.idempotent, h.Transfer)
}
