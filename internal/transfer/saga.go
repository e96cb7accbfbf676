// Package transfer implements the cross-economy transfer saga: debit the
// source ledger, credit the target ledger at the pivot-converted amount, and
// compensate the debit when the credit fails. The two ledgers share no
// transaction, so the saga is the only thing standing between a partial
// failure and destroyed or duplicated funds.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sudo-init-do/worldbank/internal/audit"
	"github.com/sudo-init-do/worldbank/internal/economy"
	"github.com/sudo-init-do/worldbank/internal/exchange"
	"github.com/sudo-init-do/worldbank/internal/ledger"
	"github.com/sudo-init-do/worldbank/internal/logger"
)

// Wallet selects which balance bucket a transfer moves.
type Wallet string

const (
	WalletCash Wallet = "cash"
	WalletBank Wallet = "bank"
)

func (w Wallet) Valid() bool {
	return w == WalletCash || w == WalletBank
}

// Step is the saga's position. Each run moves strictly forward except for
// StepCompensate, reachable only from a failed credit.
type Step int

const (
	StepValidate Step = iota
	StepCheckBalance
	StepDebit
	StepCredit
	StepCompensate
	StepComplete
)

func (s Step) String() string {
	switch s {
	case StepValidate:
		return "validate"
	case StepCheckBalance:
		return "check_balance"
	case StepDebit:
		return "debit"
	case StepCredit:
		return "credit"
	case StepCompensate:
		return "compensate"
	case StepComplete:
		return "complete"
	}
	return "unknown"
}

// Ledger is the slice of the ledger client the saga needs.
type Ledger interface {
	GetBalance(ctx context.Context, economyID, userID string) (*ledger.Balance, error)
	ModifyBalance(ctx context.Context, economyID, userID string, cashDelta, bankDelta *decimal.Decimal, reason string) (*ledger.Balance, error)
}

// Registry is the slice of the economy store the saga needs.
type Registry interface {
	Lookup(ctx context.Context, id string) (*economy.Economy, error)
}

// Request is one validated transfer intent from the presentation layer.
type Request struct {
	UserID      string
	FromEconomy string
	ToEconomy   string
	Amount      decimal.Decimal
	Wallet      Wallet
}

// Result reports a completed transfer.
type Result struct {
	TransferID   string          `json:"transfer_id"`
	AmountSource decimal.Decimal `json:"amount_source"`
	AmountTarget decimal.Decimal `json:"amount_target"`
	RateUsed     decimal.Decimal `json:"rate_used"`
	Wallet       Wallet          `json:"wallet"`
}

// Bounds are the configured transfer limits, enforced at Validate.
type Bounds struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// Engine runs transfer sagas. One engine serves all callers; the keyed
// mutex inside serializes sagas that touch the same account.
type Engine struct {
	registry Registry
	ledger   Ledger
	audit    audit.Recorder
	locks    *KeyedMutex
	bounds   Bounds
}

func NewEngine(registry Registry, lc Ledger, rec audit.Recorder, bounds Bounds) *Engine {
	return &Engine{
		registry: registry,
		ledger:   lc,
		audit:    rec,
		locks:    NewKeyedMutex(),
		bounds:   bounds,
	}
}

// Saga is one run's inspectable state: the step it reached, the amounts it
// captured, and (after Run) its outcome. It exists so a run can be logged
// and asserted on instead of being buried in control flow.
type Saga struct {
	req          Request
	step         Step
	source       *economy.Economy
	target       *economy.Economy
	targetAmount decimal.Decimal
	rateUsed     decimal.Decimal
	result       *Result
	err          error
}

func (s *Saga) Step() Step      { return s.step }
func (s *Saga) Err() error      { return s.err }
func (s *Saga) Result() *Result { return s.result }

// Execute runs exactly one saga for the request. It never re-runs the
// debit/credit pair: an ambiguous partial failure surfaces as an error and
// the caller must re-query balances before trying again.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	s := &Saga{req: req, step: StepValidate}
	s.run(ctx, e)

	logger.L().Infow("saga finished",
		"user", req.UserID,
		"from", req.FromEconomy,
		"to", req.ToEconomy,
		"step", s.step.String(),
		"err", s.err,
	)
	return s.result, s.err
}

func (s *Saga) run(ctx context.Context, e *Engine) {
	if s.err = s.validate(ctx, e); s.err != nil {
		return
	}

	// Hold both account keys for the whole debit/credit window; without
	// this, two sagas can interleave reads and writes on the same account
	// and lose an update.
	srcKey := AccountKey(s.req.FromEconomy, s.req.UserID)
	dstKey := AccountKey(s.req.ToEconomy, s.req.UserID)
	e.locks.LockPair(srcKey, dstKey)
	defer e.locks.UnlockPair(srcKey, dstKey)

	// Don't spend a paced ledger call on a caller that already gave up.
	if err := ctx.Err(); err != nil {
		s.err = fmt.Errorf("transfer: aborted before balance check: %w", err)
		return
	}

	s.step = StepCheckBalance
	if s.err = s.checkBalance(ctx, e); s.err != nil {
		return
	}

	// Last cancellation point: after this the saga runs to Complete or
	// Compensate no matter what happens to the caller's context.
	if err := ctx.Err(); err != nil {
		s.err = fmt.Errorf("transfer: aborted before debit: %w", err)
		return
	}
	detached := context.WithoutCancel(ctx)

	s.step = StepDebit
	if s.err = s.debit(detached, e); s.err != nil {
		return
	}

	s.step = StepCredit
	if err := s.credit(detached, e); err != nil {
		s.step = StepCompensate
		s.err = s.compensate(detached, e, err)
		return
	}

	s.step = StepComplete
	s.complete(e)
}

func (s *Saga) validate(ctx context.Context, e *Engine) error {
	if !s.req.Wallet.Valid() {
		return &ValidationError{Field: "wallet", Reason: "must be cash or bank"}
	}
	if s.req.Amount.LessThan(e.bounds.MinAmount) || s.req.Amount.GreaterThan(e.bounds.MaxAmount) {
		return &ValidationError{
			Field:  "amount",
			Reason: fmt.Sprintf("must be between %s and %s", e.bounds.MinAmount, e.bounds.MaxAmount),
		}
	}
	if s.req.FromEconomy == s.req.ToEconomy {
		return &ValidationError{Field: "to_economy", Reason: "source and target must differ"}
	}

	source, err := e.registry.Lookup(ctx, s.req.FromEconomy)
	if err != nil {
		return err
	}
	target, err := e.registry.Lookup(ctx, s.req.ToEconomy)
	if err != nil {
		return err
	}
	if source.Status != economy.StatusApproved {
		return &ValidationError{Field: "from_economy", Reason: "economy is not approved"}
	}
	if target.Status != economy.StatusApproved {
		return &ValidationError{Field: "to_economy", Reason: "economy is not approved"}
	}

	targetAmount, err := exchange.Convert(s.req.Amount, source.RateUSD, target.RateUSD)
	if err != nil {
		return &ValidationError{Field: "rate", Reason: err.Error()}
	}
	rateUsed, err := exchange.RateUsed(source.RateUSD, target.RateUSD)
	if err != nil {
		return &ValidationError{Field: "rate", Reason: err.Error()}
	}

	s.source = source
	s.target = target
	s.targetAmount = targetAmount
	s.rateUsed = rateUsed
	return nil
}

func (s *Saga) checkBalance(ctx context.Context, e *Engine) error {
	bal, err := e.ledger.GetBalance(ctx, s.req.FromEconomy, s.req.UserID)
	if err != nil {
		return err
	}

	available := bal.Cash
	if s.req.Wallet == WalletBank {
		available = bal.Bank
	}
	if available.LessThan(s.req.Amount) {
		return fmt.Errorf("%w: have %s, need %s %s", ErrInsufficientFunds, available, s.req.Amount, s.req.Wallet)
	}
	return nil
}

func (s *Saga) debit(ctx context.Context, e *Engine) error {
	delta := s.req.Amount.Neg()
	_, err := s.modifyWallet(ctx, e, s.req.FromEconomy, delta, "Transfer to "+s.target.Name)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDebitFailed, err)
	}
	return nil
}

func (s *Saga) credit(ctx context.Context, e *Engine) error {
	_, err := s.modifyWallet(ctx, e, s.req.ToEconomy, s.targetAmount, "Transfer from "+s.source.Name)
	return err
}

// compensate restores the source balance after a failed credit. Its own
// failure is the one condition this system cannot recover from on its own.
func (s *Saga) compensate(ctx context.Context, e *Engine, creditErr error) error {
	_, err := s.modifyWallet(ctx, e, s.req.FromEconomy, s.req.Amount, "Transfer rollback")
	if err != nil {
		logger.L().Errorw("COMPENSATION FAILED, manual reconciliation required",
			"user", s.req.UserID,
			"source_economy", s.req.FromEconomy,
			"target_economy", s.req.ToEconomy,
			"amount", s.req.Amount,
			"wallet", s.req.Wallet,
			"credit_err", creditErr,
			"compensation_err", err,
		)
		return fmt.Errorf("%w: credit: %v, rollback: %v", ErrCompensationFailed, creditErr, err)
	}

	e.audit.AuditEntry("transfer_rolled_back", s.req.UserID, s.req.FromEconomy,
		fmt.Sprintf("credit to %s failed: %v", s.req.ToEconomy, creditErr))
	return fmt.Errorf("%w: %v", ErrCreditRolledBack, creditErr)
}

func (s *Saga) complete(e *Engine) {
	rec := audit.TransferRecord{
		ID:           uuid.New().String(),
		UserID:       s.req.UserID,
		FromEconomy:  s.req.FromEconomy,
		ToEconomy:    s.req.ToEconomy,
		AmountSource: s.req.Amount,
		AmountTarget: s.targetAmount.Round(2),
		RateUsed:     s.rateUsed,
		Wallet:       string(s.req.Wallet),
		CreatedAt:    time.Now().UTC(),
	}
	e.audit.TransferRecord(rec)
	e.audit.AuditEntry("transfer", s.req.UserID, s.req.FromEconomy,
		fmt.Sprintf("transferred %s to %s", s.req.Amount, s.req.ToEconomy))

	s.result = &Result{
		TransferID:   rec.ID,
		AmountSource: rec.AmountSource,
		AmountTarget: rec.AmountTarget,
		RateUsed:     rec.RateUsed,
		Wallet:       s.req.Wallet,
	}
}

// modifyWallet applies delta to the request's wallet on one economy.
func (s *Saga) modifyWallet(ctx context.Context, e *Engine, economyID string, delta decimal.Decimal, reason string) (*ledger.Balance, error) {
	if s.req.Wallet == WalletBank {
		return e.ledger.ModifyBalance(ctx, economyID, s.req.UserID, nil, &delta, reason)
	}
	return e.ledger.ModifyBalance(ctx, economyID, s.req.UserID, &delta, nil, reason)
}
