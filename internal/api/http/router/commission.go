package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/handler"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
)

func (r *Router) registerCommissionRoutes(api fiber.Router, h *handler.CommissionHandler, g guards) {
	comm := api.Group("/commission", g.user)

	// Any account holder may price a fee
	comm.Post("/quote", h.Quote)

	comm.Get("/tiers", g.requirePerm(authorize.ResourceCommissionTier, authorize.ActionList), h.ListTiers)
	comm.Post("/tiers", g.requirePerm(authorize.ResourceCommissionTier, authorize.ActionCreate), h.CreateTier)
	comm.Post("/tiers/:id/deactivate", g.requirePerm(authorize.ResourceCommissionTier, authorize.ActionUpdate), h.DeactivateTier)
	comm.Post("/special-rates", g.requirePerm(authorize.ResourceSpecialRate, authorize.ActionCreate), h.CreateSpecialRate)
	comm.Get("/summary", g.requirePerm(authorize.ResourceCommission, authorize.ActionRead), h.Summary)

	api.Post("/commissions/:id/discount", g.user,
		g.requirePerm(authorize.ResourceCommission, authorize.ActionUpdate), h.ApplyDiscount)
}
