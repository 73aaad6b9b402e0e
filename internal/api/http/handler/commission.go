package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/payment"
)

type CommissionHandler struct {
	svc      commission.Service
	payments payment.Service
}

func NewCommissionHandler(svc commission.Service, payments payment.Service) *CommissionHandler {
	return &CommissionHandler{svc: svc, payments: payments}
}

func mapCommissionError(c fiber.Ctx, err error) error {
	var invalid *commission.ValidationError
	if errors.As(err, &invalid) {
		return badRequest(c, err.Error())
	}

	switch {
	case errors.Is(err, commission.ErrTierNotFound),
		errors.Is(err, commission.ErrCommissionNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, commission.ErrInvalidAmount),
		errors.Is(err, commission.ErrInvalidPercentage),
		errors.Is(err, commission.ErrInvalidTier),
		errors.Is(err, commission.ErrSpecialRateTarget):
		return badRequest(c, err.Error())
	case errors.Is(err, commission.ErrOverlappingTierRange),
		errors.Is(err, commission.ErrAlreadyDiscounted):
		return conflict(c, err.Error())
	case errors.Is(err, commission.ErrNoApplicableTier),
		errors.Is(err, commission.ErrAmbiguousTier),
		errors.Is(err, commission.ErrCommissionExceedsAmount):
		return unprocessable(c, err.Error(), nil)
	default:
		slog.ErrorContext(c.Context(), "commission operation failed", "err", err)
		return internalError(c)
	}
}

// GET /commission/tiers
func (h *CommissionHandler) ListTiers(c fiber.Ctx) error {
	activeOnly := fiber.Query[bool](c, "active", false)
	tiers, err := h.svc.ListTiers(c.Context(), activeOnly)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return ok(c, tiers)
}

// POST /commission/tiers
func (h *CommissionHandler) CreateTier(c fiber.Ctx) error {
	var body commission.TierInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	tier, err := h.svc.CreateTier(c.Context(), body)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return created(c, tier)
}

// POST /commission/tiers/:id/deactivate
func (h *CommissionHandler) DeactivateTier(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid tier id")
	}
	tier, err := h.svc.DeactivateTier(c.Context(), id)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return ok(c, tier)
}

// POST /commission/special-rates
func (h *CommissionHandler) CreateSpecialRate(c fiber.Ctx) error {
	var body commission.SpecialRateInput
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	rate, err := h.svc.CreateSpecialRate(c.Context(), body)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return created(c, rate)
}

// POST /commission/quote
// Prices the fee the caller would bear on a payment of the given amount.
func (h *CommissionHandler) Quote(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		Amount     decimal.Decimal     `json:"amount"`
		Currency   string              `json:"currency"`
		CategoryID uuid.NullUUID       `json:"category_id"`
		UserType   commission.UserType `json:"user_type"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	q, err := h.svc.Quote(c.Context(), commission.QuoteRequest{
		Amount:     body.Amount,
		Currency:   body.Currency,
		UserID:     userID,
		CategoryID: body.CategoryID,
		UserType:   body.UserType,
		At:         time.Now(),
	})
	if err != nil {
		return mapCommissionError(c, err)
	}
	return ok(c, fiber.Map{"quote": q, "source": q.Source()})
}

// GET /commission/summary?from=&to=
func (h *CommissionHandler) Summary(c fiber.Ctx) error {
	var q listQuery
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	from, to, valid := q.bounds()
	if !valid {
		return badRequest(c, "from and to must be RFC 3339 timestamps")
	}

	totals, err := h.svc.Summary(c.Context(), from, to)
	if err != nil {
		return mapCommissionError(c, err)
	}
	revenue, err := h.payments.Revenue(c.Context(), from, to)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return ok(c, fiber.Map{
		"commission_total": totals.Total,
		"commission_count": totals.Count,
		"revenue":          revenue,
	})
}

// POST /commissions/:id/discount
func (h *CommissionHandler) ApplyDiscount(c fiber.Ctx) error {
	id, valid := paramUUID(c, "id")
	if !valid {
		return badRequest(c, "invalid commission id")
	}
	var body struct {
		Percentage decimal.Decimal `json:"percentage"`
		Reason     string          `json:"reason"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	comm, err := h.svc.ApplyDiscount(c.Context(), id, body.Percentage, body.Reason)
	if err != nil {
		return mapCommissionError(c, err)
	}
	return ok(c, comm)
}
