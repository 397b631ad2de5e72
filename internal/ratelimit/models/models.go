package models

import (
	"time"

	dErrors "riskgate/pkg/domain-errors"

	"github.com/google/uuid"
)

// FailurePolicy decides the outcome of a check when the counter store fails.
// Every limiter declares one explicitly.
type FailurePolicy string

const (
	// FailOpen admits the request; used for low-stakes limiters. Only these
	// honour the allowlist.
	FailOpen FailurePolicy = "fail_open"
	// FailClosed denies the request; used for financial operations.
	FailClosed FailurePolicy = "fail_closed"
)

func (p FailurePolicy) IsValid() bool {
	return p == FailOpen || p == FailClosed
}

// Limiter names used by the pipeline.
const (
	LimiterAPI             = "api"
	LimiterLogin           = "login"
	LimiterRegister        = "register"
	LimiterContentPublish  = "content_publish"
	LimiterChallengeVerify = "challenge_verify"
	LimiterPayoutDaily     = "payout_daily"
)

// LimiterConfig defines one independent named limiter.
type LimiterConfig struct {
	Name   string        `json:"name"`
	Limit  int           `json:"limit"`
	Window time.Duration `json:"window"`
	Policy FailurePolicy `json:"policy"`
}

// Validate enforces that a limiter is usable and declares its failure policy.
func (c LimiterConfig) Validate() error {
	if c.Name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "limiter name is required")
	}
	if c.Limit <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "limiter "+c.Name+": limit must be positive")
	}
	if c.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "limiter "+c.Name+": window must be positive")
	}
	if !c.Policy.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "limiter "+c.Name+": failure policy must be fail_open or fail_closed")
	}
	return nil
}

// DefaultLimiters returns the stock limiter set.
func DefaultLimiters() []LimiterConfig {
	return []LimiterConfig{
		{Name: LimiterAPI, Limit: 120, Window: time.Minute, Policy: FailOpen},
		{Name: LimiterLogin, Limit: 10, Window: 15 * time.Minute, Policy: FailOpen},
		{Name: LimiterRegister, Limit: 5, Window: time.Hour, Policy: FailOpen},
		{Name: LimiterContentPublish, Limit: 20, Window: time.Hour, Policy: FailOpen},
		{Name: LimiterChallengeVerify, Limit: 10, Window: 5 * time.Minute, Policy: FailOpen},
		{Name: LimiterPayoutDaily, Limit: 10, Window: 24 * time.Hour, Policy: FailClosed},
	}
}

// RateLimitResult is the outcome of a check.
type RateLimitResult struct {
	Name       string    `json:"name"`
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	Degraded   bool      `json:"degraded,omitempty"`    // counter store unavailable, policy applied
	Bypassed   bool      `json:"bypassed,omitempty"`    // allowlisted key
}

// AllowlistEntry exempts a subject key from all limiters.
type AllowlistEntry struct {
	ID         string     `json:"id"`
	Identifier string     `json:"identifier"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	CreatedBy  string     `json:"created_by"`
}

// Active reports whether the entry applies at now.
func (e *AllowlistEntry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// NewAllowlistEntry creates an entry with invariant validation.
func NewAllowlistEntry(identifier, reason, createdBy string, expiresAt *time.Time, now time.Time) (*AllowlistEntry, error) {
	if identifier == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identifier cannot be empty")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reason cannot be empty")
	}
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "expires_at must be in the future")
	}
	return &AllowlistEntry{
		ID:         uuid.NewString(),
		Identifier: identifier,
		Reason:     reason,
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		CreatedBy:  createdBy,
	}, nil
}
