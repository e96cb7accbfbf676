// Package audit is the write-only persistence collaborator: completed
// transfers and administrative actions are recorded through it, never read
// back by the engine. Records travel through an asynq queue so a slow or
// down sink can never hold up (or undo) a finished transfer.
package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Task type names routed through asynq.
const (
	TaskTransferRecord = "audit:transfer_record"
	TaskEntry          = "audit:entry"

	queueRecords = "records"
)

// TransferRecord is the immutable log row for one completed transfer.
type TransferRecord struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	FromEconomy  string          `json:"from_economy"`
	ToEconomy    string          `json:"to_economy"`
	AmountSource decimal.Decimal `json:"amount_source"`
	AmountTarget decimal.Decimal `json:"amount_target"`
	RateUsed     decimal.Decimal `json:"rate_used"`
	Wallet       string          `json:"wallet"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Entry is one audit-log line: who did what, optionally to which economy.
type Entry struct {
	Action    string    `json:"action"`
	UserID    string    `json:"user_id"`
	EconomyID string    `json:"economy_id,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recorder is what the engine sees. Both methods are fire-and-forget:
// implementations surface failures as warnings and never return them,
// so a logging problem cannot fail a completed transfer.
type Recorder interface {
	TransferRecord(rec TransferRecord)
	AuditEntry(action, userID, economyID, details string)
}
