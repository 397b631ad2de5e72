// Package trust derives an account trust profile from account facts and turns
// it into a risk sub-score. Profiles are recomputed per request and never
// cached.
package trust

import (
	"context"
	"time"

	"riskgate/internal/risk/models"
)

// Per-fact caps. They sum to 100 so no single fact dominates.
const (
	maxAgePoints      = 30
	emailPoints       = 15
	maxContentPoints  = 20
	paymentPoints     = 15
	maxActivityPoints = 20

	pointsPerPublished    = 2
	penaltyPerFlagged     = 5
	penaltyPerSecurityHit = 15

	// anonymousRisk applies when there is no account behind the subject.
	anonymousRisk = 60
)

var tierFloors = []struct {
	floor int
	tier  models.TrustTier
}{
	{80, models.TierPremium},
	{60, models.TierTrusted},
	{40, models.TierVerified},
	{20, models.TierBasic},
}

// Profile computes the trust score and tier at now.
func Profile(f models.TrustFacts, now time.Time) models.TrustProfile {
	if f.AccountCreatedAt.IsZero() {
		return models.TrustProfile{Tier: models.TierNew, Reasons: []string{"no account history"}}
	}

	var (
		score   int
		reasons []string
	)
	age := max(0, now.Sub(f.AccountCreatedAt))
	days := int(age / (24 * time.Hour))
	score += min(maxAgePoints, days)
	if days < 7 {
		reasons = append(reasons, "account younger than a week")
	}

	if f.EmailVerified {
		score += emailPoints
	} else {
		reasons = append(reasons, "email not verified")
	}

	content := min(maxContentPoints, pointsPerPublished*f.PublishedItems) - penaltyPerFlagged*f.FlaggedItems
	score += content
	if f.FlaggedItems > 0 {
		reasons = append(reasons, "content previously flagged")
	}

	if f.HasPaymentMethod {
		score += paymentPoints
	}
	score += min(maxActivityPoints, max(0, f.ActiveDaysLast30))

	if f.RecentSecurityHits > 0 {
		score -= penaltyPerSecurityHit * f.RecentSecurityHits
		reasons = append(reasons, "recent security events")
	}

	score = min(100, max(0, score))
	return models.TrustProfile{
		Score:      score,
		Tier:       TierFor(score),
		AccountAge: age,
		Reasons:    reasons,
	}
}

// TierFor maps a trust score to its tier.
func TierFor(score int) models.TrustTier {
	for _, t := range tierFloors {
		if score >= t.floor {
			return t.tier
		}
	}
	return models.TierNew
}

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Category() models.Category { return models.CategoryTrust }

// Evaluate reports risk as the inverse of trust.
func (p *Provider) Evaluate(_ context.Context, in models.SignalInput) (models.SignalResult, error) {
	profile := Profile(in.Trust, in.Now)
	risk := 100 - profile.Score
	if in.Trust.AccountCreatedAt.IsZero() {
		risk = anonymousRisk
	}
	return models.SignalResult{
		Category: models.CategoryTrust,
		Score:    risk,
		Reasons:  profile.Reasons,
	}, nil
}
