package handler

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/payment"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
)

type TransactionHandler struct {
	svc payment.Service
}

func NewTransactionHandler(svc payment.Service) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

func mapPaymentError(c fiber.Ctx, err error) error {
	var failed *payment.FailedError
	if errors.As(err, &failed) {
		return unprocessable(c, err.Error(), failed.Transaction)
	}

	switch {
	case errors.Is(err, payment.ErrTransactionNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrInvalidTax),
		errors.Is(err, payment.ErrSameParty),
		errors.Is(err, payment.ErrInvalidPaymentType),
		errors.Is(err, payment.ErrInvalidMethod),
		errors.Is(err, payment.ErrHoldRequiresWallet),
		errors.Is(err, payment.ErrVerificationMethod):
		return badRequest(c, err.Error())
	case errors.Is(err, payment.ErrNotRefundable),
		errors.Is(err, payment.ErrInvalidTransition):
		return conflict(c, err.Error())
	case errors.Is(err, commission.ErrCommissionNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, commission.ErrNoApplicableTier),
		errors.Is(err, commission.ErrAmbiguousTier),
		errors.Is(err, commission.ErrCommissionExceedsAmount),
		errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, wallet.ErrWalletInactive):
		return unprocessable(c, err.Error(), nil)
	default:
		slog.ErrorContext(c.Context(), "transaction operation failed", "err", err)
		return internalError(c)
	}
}

// lookup resolves :id as either the row id or the TXN- business id.
func (h *TransactionHandler) lookup(c fiber.Ctx) (*repo.Transaction, error) {
	raw := c.Params("id")
	if id, err := uuid.Parse(raw); err == nil {
		return h.svc.Get(c.Context(), id)
	}
	return h.svc.GetByTransactionID(c.Context(), strings.ToUpper(raw))
}

// GET /transactions
func (h *TransactionHandler) List(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q listQuery
	var kind struct {
		Status      string `query:"status"`
		PaymentType string `query:"payment_type"`
	}
	if err := c.Bind().Query(&q); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Bind().Query(&kind); err != nil {
		return badRequest(c, "invalid query")
	}
	from, to, valid := q.bounds()
	if !valid {
		return badRequest(c, "from and to must be RFC 3339 timestamps")
	}

	rows, total, err := h.svc.ListForUser(c.Context(), userID, repo.TransactionFilter{
		Status:      repo.TransactionStatus(kind.Status),
		PaymentType: repo.PaymentType(kind.PaymentType),
		From:        from,
		To:          to,
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return page(c, rows, total)
}

// GET /transactions/:id
// Only the payer or the payee may read a transaction.
func (h *TransactionHandler) Get(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	if t.FromUserID != userID && t.ToUserID != userID {
		return notFound(c, payment.ErrTransactionNotFound.Error())
	}

	out := fiber.Map{"transaction": t}
	comm, err := h.svc.CommissionFor(c.Context(), t.ID)
	switch {
	case err == nil:
		out["commission"] = comm
	case !errors.Is(err, commission.ErrCommissionNotFound):
		return mapPaymentError(c, err)
	}
	return ok(c, out)
}

// POST /transactions
// The caller is always the payer.
func (h *TransactionHandler) Create(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		ToUser      uuid.UUID           `json:"to_user"`
		Amount      decimal.Decimal     `json:"amount"`
		Currency    string              `json:"currency"`
		PaymentType repo.PaymentType    `json:"payment_type"`
		Method      repo.PaymentMethod  `json:"payment_method"`
		TaxAmount   decimal.Decimal     `json:"tax_amount"`
		ProjectID   uuid.NullUUID       `json:"project_id"`
		TaskID      uuid.NullUUID       `json:"task_id"`
		CategoryID  uuid.NullUUID       `json:"category_id"`
		UserType    commission.UserType `json:"user_type"`
		Description string              `json:"description"`
		Metadata    map[string]any      `json:"metadata"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ToUser == uuid.Nil {
		return badRequest(c, "to_user is required")
	}

	t, err := h.svc.Create(c.Context(), payment.CreateRequest{
		From:        userID,
		To:          body.ToUser,
		Amount:      body.Amount,
		Currency:    body.Currency,
		PaymentType: body.PaymentType,
		Method:      body.Method,
		TaxAmount:   body.TaxAmount,
		ProjectID:   body.ProjectID,
		TaskID:      body.TaskID,
		CategoryID:  body.CategoryID,
		UserType:    body.UserType,
		Description: body.Description,
		Metadata:    body.Metadata,
	})
	if err != nil {
		return mapPaymentError(c, err)
	}
	return created(c, t)
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// POST /transactions/:id/refund
func (h *TransactionHandler) Refund(c fiber.Ctx) error {
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	var body reasonBody
	_ = c.Bind().JSON(&body)

	res, err := h.svc.Refund(c.Context(), t.ID, body.Reason)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return created(c, res)
}

// POST /transactions/:id/complete
func (h *TransactionHandler) Complete(c fiber.Ctx) error {
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	t, err = h.svc.Complete(c.Context(), t.ID)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, t)
}

// POST /transactions/:id/fail
func (h *TransactionHandler) Fail(c fiber.Ctx) error {
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	var body reasonBody
	_ = c.Bind().JSON(&body)

	t, err = h.svc.Fail(c.Context(), t.ID, body.Reason)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, t)
}

// POST /transactions/:id/dispute
func (h *TransactionHandler) Dispute(c fiber.Ctx) error {
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	var body reasonBody
	_ = c.Bind().JSON(&body)

	t, err = h.svc.Dispute(c.Context(), t.ID, body.Reason)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, t)
}

// POST /transactions/:id/verify-proof
func (h *TransactionHandler) VerifyProof(c fiber.Ctx) error {
	actor, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	t, err = h.svc.VerifyProof(c.Context(), t.ID, actor)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, t)
}

// POST /transactions/:id/verify-id
func (h *TransactionHandler) VerifyID(c fiber.Ctx) error {
	actor, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	var body struct {
		Method string `json:"method"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	t, err := h.lookup(c)
	if err != nil {
		return mapPaymentError(c, err)
	}
	t, err = h.svc.VerifyID(c.Context(), t.ID, body.Method, actor)
	if err != nil {
		return mapPaymentError(c, err)
	}
	return ok(c, t)
}
