package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/freelancehub_ledger/internal/service/milestone"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
)

type MilestoneHandler struct {
	svc milestone.Service
}

func NewMilestoneHandler(svc milestone.Service) *MilestoneHandler {
	return &MilestoneHandler{svc: svc}
}

func mapMilestoneError(c fiber.Ctx, err error) error {
	var invalid *milestone.ValidationError
	if errors.As(err, &invalid) {
		return badRequest(c, err.Error())
	}
	switch {
	case errors.Is(err, milestone.ErrUnitNotFound),
		errors.Is(err, milestone.ErrMilestoneNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, milestone.ErrDoublePaymentChannel),
		errors.Is(err, milestone.ErrNotApproved):
		return conflict(c, err.Error())
	case errors.Is(err, milestone.ErrNoAssignee):
		return unprocessable(c, err.Error(), nil)
	default:
		// settlement errors surface from the payment service
		return mapPaymentError(c, err)
	}
}

// POST /units
func (h *MilestoneHandler) RegisterUnit(c fiber.Ctx) error {
	var body milestone.UnitInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	u, err := h.svc.RegisterUnit(c.Context(), body)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return created(c, u)
}

// GET /units/:id
func (h *MilestoneHandler) GetUnit(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid unit id")
	}
	u, err := h.svc.GetUnit(c.Context(), id)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return ok(c, u)
}

// POST /units/:id/status
// Applies a lifecycle change; completing a lump_sum unit pays it.
func (h *MilestoneHandler) UnitStatus(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid unit id")
	}
	var body struct {
		NewStatus string `json:"new_status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	u, err := h.svc.GetUnit(c.Context(), id)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	out, err := h.svc.HandleUnitStatus(c.Context(), events.UnitStatusSignal{
		UnitType:  string(u.Kind),
		UnitID:    id,
		NewStatus: body.NewStatus,
	})
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return ok(c, out)
}

// GET /units/:id/milestones
func (h *MilestoneHandler) ListMilestones(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid unit id")
	}
	ms, err := h.svc.ListMilestones(c.Context(), id)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return ok(c, ms)
}

// POST /milestones
func (h *MilestoneHandler) CreateMilestone(c fiber.Ctx) error {
	var body milestone.MilestoneInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	m, err := h.svc.CreateMilestone(c.Context(), body)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return created(c, m)
}

// GET /milestones/:id
func (h *MilestoneHandler) GetMilestone(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid milestone id")
	}
	m, err := h.svc.GetMilestone(c.Context(), id)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return ok(c, m)
}

// POST /milestones/:id/approve
// A failed automated payment leaves the milestone approved and answers 422
// with the failed transaction; MarkPaid can be retried.
func (h *MilestoneHandler) Approve(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid milestone id")
	}
	out, err := h.svc.Approve(c.Context(), id)
	if err != nil {
		slog.WarnContext(c.Context(), "milestone approval did not settle", "milestone_id", id, "err", err)
		return mapMilestoneError(c, err)
	}
	return ok(c, out)
}

// POST /milestones/:id/pay
func (h *MilestoneHandler) MarkPaid(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid milestone id")
	}
	out, err := h.svc.MarkPaid(c.Context(), id)
	if err != nil {
		return mapMilestoneError(c, err)
	}
	return ok(c, out)
}
