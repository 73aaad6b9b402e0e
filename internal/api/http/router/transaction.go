package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/internal/api/http/handler"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/authorize"
)

func (r *Router) registerTransactionRoutes(api fiber.Router, h *handler.TransactionHandler, g guards) {
	txns := api.Group("/transactions", g.user)

	// Payer/payee views
	txns.Get("/", g.requireSelf(authorize.ResourceTransaction, authorize.ActionRead), h.List)
	txns.Get("/:id", g.requireSelf(authorize.ResourceTransaction, authorize.ActionRead), h.Get)
	txns.Post("/", g.requireSelf(authorize.ResourceTransaction, authorize.ActionCreate), g.idempotent, h.Create)

	// Finance admin corrections
	txns.Post("/:id/refund", g.requirePerm(authorize.ResourceTransaction, authorize.ActionRefund), g.idempotent, h.Refund)
	txns.Post("/:id/verify-proof", g.requirePerm(authorize.ResourceTransaction, authorize.ActionVerify), h.VerifyProof)
	txns.Post("/:id/verify-id", g.requirePerm(authorize.ResourceTransaction, authorize.ActionVerify), h.VerifyID)
	txns.Post("/:id/complete", g.requirePerm(authorize.ResourceTransaction, authorize.ActionUpdate), h.Complete)
	txns.Post("/:id/fail", g.requirePerm(authorize.ResourceTransaction, authorize.ActionUpdate), h.Fail)
	txns.Post("/:id/dispute", g.requirePerm(authorize.ResourceTransaction, authorize.ActionUpdate), h.Dispute)
}
