// Package velocity scores how often a subject or address repeated an action in
// a trailing window.
package velocity

import (
	"context"
	"fmt"
	"time"

	"riskgate/internal/risk/models"
	"riskgate/internal/signals"
)

// ActivityStore counts recorded actions in a trailing window.
type ActivityStore interface {
	Record(ctx context.Context, key string, at time.Time) error
	Count(ctx context.Context, key string, since, until time.Time) (int, error)
}

// Rule is the per-action threshold.
type Rule struct {
	Window time.Duration
	Max    int
}

func DefaultRules() map[models.Action]Rule {
	return map[models.Action]Rule{
		models.ActionLogin:         {Window: 15 * time.Minute, Max: 10},
		models.ActionRegister:      {Window: time.Hour, Max: 3},
		models.ActionPasswordReset: {Window: time.Hour, Max: 3},
		models.ActionCreateContent: {Window: time.Hour, Max: 10},
		models.ActionEditContent:   {Window: time.Hour, Max: 30},
		models.ActionPayoutRequest: {Window: 24 * time.Hour, Max: 4},
	}
}

// SubjectKey and IPKey name the activity series for an action.
func SubjectKey(subject string, a models.Action) string { return "sub:" + subject + ":" + string(a) }
func IPKey(ip string, a models.Action) string { return "ip:" + ip + ":" + string(a) }

const belowThresholdCeiling = 75

// Provider only reads the store; the orchestrator records activity after an
// assessment is persisted.
type Provider struct {
	store ActivityStore
	rules map[models.Action]Rule
}

func New(store ActivityStore, rules map[models.Action]Rule) *Provider {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Provider{store: store, rules: rules}
}

func (p *Provider) Category() models.Category { return models.CategoryVelocity }

func (p *Provider) Evaluate(ctx context.Context, in models.SignalInput) (models.SignalResult, error) {
	res := models.SignalResult{Category: models.CategoryVelocity}
	rule, ok := p.rules[in.Action]
	if !ok || rule.Max <= 0 {
		return res, nil
	}
	since := in.Now.Add(-rule.Window)

	series := []struct {
		label string
		key   string
	}{{"subject", SubjectKey(in.Subject, in.Action)}}
	if in.IP != "" {
		series = append(series, struct {
			label string
			key   string
		}{"address", IPKey(in.IP, in.Action)})
	}

	for _, s := range series {
		count, err := p.store.Count(ctx, s.key, since, in.Now)
		if err != nil {
			return res, fmt.Errorf("%w: %v", signals.ErrUpstreamUnavailable, err)
		}
		score := scoreFor(count, rule.Max)
		if count > rule.Max {
			res.Reasons = append(res.Reasons, fmt.Sprintf("%s %s velocity above threshold", s.label, in.Action))
		}
		res.Score = max(res.Score, score)
	}
	return res, nil
}

// scoreFor rises linearly to 75 at the threshold and jumps to 100 beyond it.
func scoreFor(count, limit int) int {
	if count > limit {
		return 100
	}
	return belowThresholdCeiling * count / limit
}

// Recorder appends an assessed action to both series.
type Recorder struct {
	store ActivityStore
}

func NewRecorder(store ActivityStore) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Record(ctx context.Context, subject, ip string, a models.Action, at time.Time) error {
	if err := r.store.Record(ctx, SubjectKey(subject, a), at); err != nil {
		return err
	}
	if ip == "" {
		return nil
	}
	return r.store.Record(ctx, IPKey(ip, a), at)
}
