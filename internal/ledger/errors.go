package ledger

import "errors"

var (
	// ErrAccountNotFound means the remote ledger has no record for the
	// economy/user pair. Terminal, never retried.
	ErrAccountNotFound = errors.New("ledger: account not found")

	// ErrForbidden means the ledger rejected our credentials for this
	// economy. Terminal, never retried; the economy's admin has to
	// re-grant API access.
	ErrForbidden = errors.New("ledger: access forbidden")

	// ErrUnavailable covers network failures, unexpected statuses and
	// throttling that outlasted the retry budget.
	ErrUnavailable = errors.New("ledger: remote unavailable")

	// ErrNegativeResult means a balance modification would drive a wallet
	// below zero. The write is never attempted.
	ErrNegativeResult = errors.New("ledger: modification would produce negative balance")
)
