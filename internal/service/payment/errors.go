package payment

import (
	"errors"
	"fmt"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be positive and representable in the currency")
	ErrInvalidTax          = errors.New("tax must be non-negative and leave a non-negative net amount")
	ErrSameParty           = errors.New("payer and payee must differ")
	ErrInvalidPaymentType  = errors.New("invalid payment type")
	ErrInvalidMethod       = errors.New("invalid payment method")
	ErrHoldRequiresWallet  = errors.New("releasing a hold requires the wallet payment method")
	ErrNotRefundable       = errors.New("only completed payments can be refunded")
	ErrInvalidTransition   = errors.New("transaction is already in a terminal state")
	ErrVerificationMethod  = errors.New("verification method is required")
)

// FailedError is returned when a payment could not settle. Transaction is
// the failed row appended in place of the rolled-back attempt.
type FailedError struct {
	Transaction *repo.Transaction
	Err         error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Transaction.TransactionID, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }
