// Package behavioral scores session telemetry against human interaction
// patterns.
package behavioral

import (
	"context"

	"riskgate/internal/risk/models"
)

// Thresholds tunes the heuristics.
type Thresholds struct {
	MinSessionSeconds      int
	MinFormFillMillis      int
	MaxContentPerMinute    float64
	MinInteractionsPerItem int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSessionSeconds:      3,
		MinFormFillMillis:      1500,
		MaxContentPerMinute:    3,
		MinInteractionsPerItem: 5,
	}
}

type Provider struct {
	th Thresholds
}

func New(th Thresholds) *Provider {
	return &Provider{th: th}
}

func (p *Provider) Category() models.Category { return models.CategoryBehavioral }

func (p *Provider) Evaluate(_ context.Context, in models.SignalInput) (models.SignalResult, error) {
	t := in.Telemetry
	res := models.SignalResult{Category: models.CategoryBehavioral}
	if !t.Collected {
		res.Score = models.Neutral
		res.Reasons = []string{"no behavioral telemetry"}
		return res, nil
	}

	add := func(points int, reason string) {
		res.Score += points
		res.Reasons = append(res.Reasons, reason)
	}

	if t.SessionSeconds < p.th.MinSessionSeconds {
		add(35, "session too short")
	}
	interactions := t.Interactions()
	if interactions == 0 {
		add(30, "no interaction events")
	}
	if t.FormFillMillis > 0 && t.FormFillMillis < p.th.MinFormFillMillis {
		add(25, "form completed implausibly fast")
	}
	if t.ContentThisSession > 0 {
		minutes := max(float64(t.SessionSeconds)/60, 1.0/60)
		if float64(t.ContentThisSession)/minutes > p.th.MaxContentPerMinute {
			add(30, "content output rate too high")
		}
		if interactions > 0 && interactions < p.th.MinInteractionsPerItem*t.ContentThisSession {
			add(15, "content volume inconsistent with interaction volume")
		}
	}

	res.Score = min(100, res.Score)
	return res, nil
}
