package economy

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status is an application's position in the approval lifecycle. The only
// legal transitions are pending→approved and pending→rejected; everything
// else requires removal and a fresh application.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

var (
	ErrDuplicate         = errors.New("economy: id already registered")
	ErrNotFound          = errors.New("economy: not found")
	ErrInvalidTransition = errors.New("economy: status transition only allowed from pending")
)

// Economy is one enrolled community with its declared currency and USD rate.
type Economy struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CurrencyName   string          `json:"currency_name"`
	CurrencySymbol string          `json:"currency_symbol"`
	RateUSD        decimal.Decimal `json:"rate_usd"` // local units per 1 USD, always > 0
	Status         Status          `json:"status"`
	Note           string          `json:"note,omitempty"`
	AppliedBy      string          `json:"applied_by"`
	AppliedAt      time.Time       `json:"applied_at"`
	ApprovedBy     *string         `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
}
