package service

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	rlmodels "riskgate/internal/ratelimit/models"
)

// Policy holds the payout ceilings and review triggers. Amounts are in the
// platform currency.
type Policy struct {
	MaxPerTransaction decimal.Decimal
	NewAccountCeiling decimal.Decimal
	NewAccountAge     time.Duration
	Rolling24h        decimal.Decimal
	Monthly           decimal.Decimal

	// ApprovalThreshold suspends payouts at or above this amount.
	ApprovalThreshold decimal.Decimal
	// SuspiciousCount24h flags the payout that brings the trailing-day count to
	// this number.
	SuspiciousCount24h int
	// OutsizedFraction flags a payout above this share of lifetime earnings.
	OutsizedFraction decimal.Decimal
	LargeFirstPayout decimal.Decimal

	// DailyLimiter names the rate limiter that counts payouts per day.
	DailyLimiter string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxPerTransaction:  decimal.NewFromInt(10_000),
		NewAccountCeiling:  decimal.NewFromInt(1_000),
		NewAccountAge:      30 * 24 * time.Hour,
		Rolling24h:         decimal.NewFromInt(20_000),
		Monthly:            decimal.NewFromInt(50_000),
		ApprovalThreshold:  decimal.NewFromInt(5_000),
		SuspiciousCount24h: 5,
		OutsizedFraction:   decimal.NewFromFloat(0.5),
		LargeFirstPayout:   decimal.NewFromInt(2_000),
		DailyLimiter:       rlmodels.LimiterPayoutDaily,
	}
}

func (p Policy) Validate() error {
	for _, v := range []decimal.Decimal{p.MaxPerTransaction, p.NewAccountCeiling, p.Rolling24h, p.Monthly, p.ApprovalThreshold, p.LargeFirstPayout} {
		if !v.IsPositive() {
			return errors.New("payout ceilings and thresholds must be positive")
		}
	}
	if p.NewAccountCeiling.GreaterThan(p.MaxPerTransaction) {
		return errors.New("new account ceiling must not exceed the per-transaction ceiling")
	}
	if p.MaxPerTransaction.GreaterThan(p.Rolling24h) || p.Rolling24h.GreaterThan(p.Monthly) {
		return errors.New("ceilings must widen from transaction to day to month")
	}
	if p.NewAccountAge <= 0 {
		return errors.New("new account age must be positive")
	}
	if p.SuspiciousCount24h < 2 {
		return errors.New("suspicious daily count must be at least 2")
	}
	if !p.OutsizedFraction.IsPositive() || p.OutsizedFraction.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("outsized fraction must be in (0, 1]")
	}
	if p.DailyLimiter == "" {
		return errors.New("daily limiter name is required")
	}
	return nil
}

// monthStart is the first instant of t's calendar month in UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
