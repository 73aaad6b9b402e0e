package wallet

import "errors"

var (
	ErrInsufficientFunds   = errors.New("insufficient wallet balance")
	ErrInvalidAmount       = errors.New("amount must be positive and representable in the wallet currency")
	ErrInvalidHoldAmount   = errors.New("release exceeds held funds")
	ErrWalletInactive      = errors.New("wallet is deactivated")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrCurrencyMismatch    = errors.New("wallet currencies differ")
	ErrSameWallet          = errors.New("cannot transfer to the same wallet")
	ErrIdempotencyConflict = errors.New("idempotency key already used for a different operation")
	ErrHoldNotFound        = errors.New("hold not found")
)
