package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "riskgate/pkg/domain-errors"
)

// Status tracks a payout in the history ledger. Failed payouts no longer count
// toward rolling totals.
type Status string

const (
	StatusProcessed       Status = "processed"
	StatusPendingApproval Status = "pending_approval"
	StatusReleased        Status = "released"
	StatusFailed          Status = "failed"
)

// Outcome is what the validator tells the caller.
type Outcome string

const (
	OutcomeProcessed       Outcome = "processed"
	OutcomePendingApproval Outcome = "pending_approval"
	OutcomeRejected        Outcome = "rejected"
)

// Rejection reason codes.
const (
	ReasonTransactionCeiling = "per_transaction_limit"
	ReasonNewAccountCeiling  = "new_account_limit"
	ReasonDailyCount         = "daily_count_limit"
	ReasonRolling24h         = "rolling_24h_limit"
	ReasonMonthly            = "monthly_limit"
	ReasonCountUnavailable   = "daily_count_unavailable"
)

// Payout is one entry in a subject's payout history.
type Payout struct {
	ID        string          `json:"id"`
	Subject   string          `json:"subject"`
	Amount    decimal.Decimal `json:"amount"`
	Status    Status          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidateRequest carries the payout and the account facts the caller holds.
type ValidateRequest struct {
	PayoutID         string          `json:"payout_id"`
	Subject          string          `json:"subject"`
	Amount           decimal.Decimal `json:"amount"`
	AccountCreatedAt time.Time       `json:"account_created_at"`
	LifetimeEarnings decimal.Decimal `json:"lifetime_earnings"`
	TrustTier        string          `json:"trust_tier"`
}

func (r *ValidateRequest) Normalize() {
	r.PayoutID = strings.TrimSpace(r.PayoutID)
	r.Subject = strings.TrimSpace(r.Subject)
	r.TrustTier = strings.ToLower(strings.TrimSpace(r.TrustTier))
}

func (r *ValidateRequest) Validate() error {
	if r.PayoutID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "payout_id is required")
	}
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if r.Amount.Exponent() < -2 && !r.Amount.Equal(r.Amount.Round(2)) {
		return dErrors.New(dErrors.CodeInvalidInput, "amount supports at most two decimal places")
	}
	if r.AccountCreatedAt.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "account_created_at is required")
	}
	if r.LifetimeEarnings.IsNegative() {
		return dErrors.New(dErrors.CodeInvalidInput, "lifetime_earnings must not be negative")
	}
	return nil
}

// AccountAge is measured at now and never negative.
func (r *ValidateRequest) AccountAge(now time.Time) time.Duration {
	return max(0, now.Sub(r.AccountCreatedAt))
}

// Result is returned for payouts that were not rejected.
type Result struct {
	PayoutID   string  `json:"payout_id"`
	Outcome    Outcome `json:"outcome"`
	ApprovalID string  `json:"approval_id,omitempty"`
	Message    string  `json:"message"`
}

// Usage summarises a subject's recent payouts ahead of the current one.
type Usage struct {
	Count24h      int
	Amount24h     decimal.Decimal
	AmountMonth   decimal.Decimal
	LifetimeCount int
}
