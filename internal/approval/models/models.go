package models

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	dErrors "riskgate/pkg/domain-errors"
)

// Status of an approval. Approved and rejected are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Decision is a reviewer's verdict.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Status maps a decision to the terminal status it produces.
func (d Decision) Status() (Status, bool) {
	switch d {
	case DecisionApprove:
		return StatusApproved, true
	case DecisionReject:
		return StatusRejected, true
	}
	return "", false
}

// Flag is a machine-readable review trigger.
type Flag string

const (
	FlagHighValue        Flag = "high_value"
	FlagPayoutFrequency  Flag = "payout_frequency"
	FlagOutsizedFraction Flag = "outsized_fraction"
	FlagLargeFirstPayout Flag = "large_first_payout"
)

// Snapshot freezes the context a reviewer needs at decision time.
type Snapshot struct {
	TrustTier      string          `json:"trust_tier"`
	AccountAgeDays int             `json:"account_age_days"`
	Payouts24h     int             `json:"payouts_24h"`
	Amount24h      decimal.Decimal `json:"amount_24h"`
	AmountMonth    decimal.Decimal `json:"amount_month"`
	Lifetime       decimal.Decimal `json:"lifetime_earnings"`
}

// Record is one payout awaiting or having received review.
type Record struct {
	ID          string          `json:"id"`
	PayoutID    string          `json:"payout_id"`
	Subject     string          `json:"subject"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Flags       []Flag          `json:"flags"`
	Snapshot    Snapshot        `json:"snapshot"`
	Status      Status          `json:"status"`
	RequestedAt time.Time       `json:"requested_at"`
	ReviewedAt  *time.Time      `json:"reviewed_at,omitempty"`
	ReviewedBy  string          `json:"reviewed_by,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

func (r *Record) Clone() *Record {
	cp := *r
	cp.Flags = slices.Clone(r.Flags)
	if r.ReviewedAt != nil {
		t := *r.ReviewedAt
		cp.ReviewedAt = &t
	}
	return &cp
}

// EnqueueRequest is what the payout validator hands over.
type EnqueueRequest struct {
	PayoutID string
	Subject  string
	Amount   decimal.Decimal
	Reason   string
	Flags    []Flag
	Snapshot Snapshot
}

func (r EnqueueRequest) Validate() error {
	if r.PayoutID == "" || r.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "payout id and subject are required")
	}
	if !r.Amount.IsPositive() {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if len(r.Flags) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one review flag is required")
	}
	return nil
}

// ResolveRequest is the admin's review submission.
type ResolveRequest struct {
	Decision Decision `json:"decision"`
	Notes    string   `json:"notes"`
}

func (r *ResolveRequest) Normalize() {
	r.Decision = Decision(strings.ToLower(strings.TrimSpace(string(r.Decision))))
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *ResolveRequest) Validate() error {
	if _, ok := r.Decision.Status(); !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "decision must be approve or reject")
	}
	if r.Decision == DecisionReject && r.Notes == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "notes are required when rejecting")
	}
	return nil
}

// Resolution is the terminal transition applied by the store.
type Resolution struct {
	Status     Status
	ReviewedBy string
	Notes      string
	ReviewedAt time.Time
}

// Filter narrows listings.
type Filter struct {
	Status  Status
	Subject string
	Since   time.Time
	Until   time.Time
	Limit   int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return min(f.Limit, MaxListLimit)
}
