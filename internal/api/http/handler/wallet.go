package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/reqctx"
)

type WalletHandler struct {
	svc wallet.Service
}

func NewWalletHandler(svc wallet.Service) *WalletHandler {
	return &WalletHandler{svc: svc}
}

func mapWalletError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, wallet.ErrHoldNotFound):
		return notFound(c, err.Error())
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrSameWallet),
		errors.Is(err, wallet.ErrCurrencyMismatch):
		return badRequest(c, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, wallet.ErrInvalidHoldAmount),
		errors.Is(err, wallet.ErrWalletInactive):
		return unprocessable(c, err.Error(), nil)
	case errors.Is(err, wallet.ErrIdempotencyConflict):
		return conflict(c, err.Error())
	default:
		slog.ErrorContext(c.Context(), "wallet operation failed", "err", err)
		return internalError(c)
	}
}

type movementBody struct {
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	HoldReference string          `json:"hold_reference"`
	Metadata      map[string]any  `json:"metadata"`
}

func (b movementBody) options(c fiber.Ctx) wallet.Options {
	return wallet.Options{
		Description:    b.Description,
		IdempotencyKey: reqctx.IdempotencyKeyFromContext(c.Context()),
		Metadata:       b.Metadata,
		HoldReference:  b.HoldReference,
	}
}

type walletOp func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts wallet.Options) (*wallet.Result, error)

func (h *WalletHandler) mutate(c fiber.Ctx, op walletOp) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	var body movementBody
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	res, err := op(c.Context(), userID, body.Amount, body.options(c))
	if err != nil {
		return mapWalletError(c, err)
	}
	if res.Replayed {
		return ok(c, res)
	}
	return created(c, res)
}

// GET /wallet
func (h *WalletHandler) Get(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}
	s, err := h.svc.Summary(c.Context(), userID)
	if err != nil {
		return mapWalletError(c, err)
	}
	return ok(c, s)
}

// GET /wallet/transactions
func (h *WalletHandler) History(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var q listQuery
	var kind struct {
		Type   string `query:"type"`
		Status string `query:"status"`
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

	rows, total, err := h.svc.History(c.Context(), userID, repo.WalletTxFilter{
		Type:   repo.WalletTxType(kind.Type),
		Status: repo.WalletTxStatus(kind.Status),
		From:   from,
		To:     to,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		return mapWalletError(c, err)
	}
	return page(c, rows, total)
}

// POST /wallet/deposit
func (h *WalletHandler) Deposit(c fiber.Ctx) error {
	return h.mutate(c, h.svc.Deposit)
}

// POST /wallet/withdraw
func (h *WalletHandler) Withdraw(c fiber.Ctx) error {
	return h.mutate(c, h.svc.Withdraw)
}

// POST /wallet/hold
func (h *WalletHandler) Hold(c fiber.Ctx) error {
	return h.mutate(c, h.svc.Hold)
}

// POST /wallet/release
func (h *WalletHandler) Release(c fiber.Ctx) error {
	return h.mutate(c, h.svc.Release)
}

// POST /wallet/transfer
func (h *WalletHandler) Transfer(c fiber.Ctx) error {
	userID, found := userIDFromClaims(c)
	if !found {
		return unauthorized(c)
	}

	var body struct {
		movementBody
		ToUser uuid.UUID `json:"to_user"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ToUser == uuid.Nil {
		return badRequest(c, "to_user is required")
	}

	res, err := h.svc.Transfer(c.Context(), userID, body.ToUser, body.Amount, body.options(c))
	if err != nil {
		return mapWalletError(c, err)
	}
	if res.Replayed {
		return ok(c, res)
	}
	return created(c, res)
}
