package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/handler"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
)

func (r *Router) registerMilestoneRoutes(api fiber.Router, h *handler.MilestoneHandler, g guards) {
	units := api.Group("/units", g.agent)
	units.Get("/:id", h.GetUnit)
	units.Get("/:id/milestones", h.ListMilestones)
	units.Post("/", g.requirePerm(authorize.ResourceWorkUnit, authorize.ActionCreate), h.RegisterUnit)
	units.Post("/:id/status", g.requirePerm(authorize.ResourceWorkUnit, authorize.ActionUpdate), h.UnitStatus)

	ms := api.Group("/milestones", g.agent)
	ms.Get("/:id", h.GetMilestone)
	ms.Post("/", g.requirePerm(authorize.ResourceMilestone, authorize.ActionCreate), h.CreateMilestone)
	ms.Post("/:id/approve", g.requirePerm(authorize.ResourceMilestone, authorize.ActionUpdate), h.Approve)
	ms.Post("/:id/pay", g.requirePerm(authorize.ResourceMilestone, authorize.ActionExecute), h.MarkPaid)
}
