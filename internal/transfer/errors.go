package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientFunds means the source wallet held less than the
	// requested amount at CheckBalance time.
	ErrInsufficientFunds = errors.New("transfer: insufficient funds")

	// ErrDebitFailed means the source debit never happened; nothing was
	// written and no compensation is needed.
	ErrDebitFailed = errors.New("transfer: debit failed")

	// ErrCreditRolledBack means the target credit failed after a successful
	// debit and the compensating credit restored the source balance. Money
	// was conserved; the transfer did not happen.
	ErrCreditRolledBack = errors.New("transfer: credit failed, source balance restored")

	// ErrCompensationFailed means the target credit failed AND the
	// compensating source credit also failed: the ledgers are inconsistent
	// and an operator must reconcile them by hand. Never retried.
	ErrCompensationFailed = errors.New("transfer: compensation failed, ledgers inconsistent")
)

// ValidationError is a fail-fast rejection of the request itself. No ledger
// call is ever made for a request that fails validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transfer: invalid %s: %s", e.Field, e.Reason)
}

// AsValidation unwraps err into a *ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}
