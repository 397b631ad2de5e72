package models

import (
	"time"

	dErrors "riskgate/pkg/domain-errors"
)

// Action is a gated user action.
type Action string

const (
	ActionLogin         Action = "login"
	ActionRegister      Action = "register"
	ActionPasswordReset Action = "password_reset"
	ActionCreateContent Action = "create_content"
	ActionEditContent   Action = "edit_content"
	ActionPayoutRequest Action = "payout_request"
)

func (a Action) IsValid() bool {
	switch a {
	case ActionLogin, ActionRegister, ActionPasswordReset, ActionCreateContent, ActionEditContent, ActionPayoutRequest:
		return true
	}
	return false
}

// IsContent reports whether the action publishes user content.
func (a Action) IsContent() bool {
	return a == ActionCreateContent || a == ActionEditContent
}

// ParseAction validates a wire value.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action")
	}
	return a, nil
}

// Level is the risk band a score falls into.
type Level string

const (
	LevelAllow         Level = "allow"
	LevelSoftChallenge Level = "soft_challenge"
	LevelHardChallenge Level = "hard_challenge"
	LevelBlock         Level = "block"
)

// Rank orders levels by strictness.
func (l Level) Rank() int {
	switch l {
	case LevelAllow:
		return 0
	case LevelSoftChallenge:
		return 1
	case LevelHardChallenge:
		return 2
	case LevelBlock:
		return 3
	}
	return -1
}

// Stricter returns the stricter of two levels.
func Stricter(a, b Level) Level {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Decision is the outcome returned to the caller.
type Decision string

const (
	DecisionAllow     Decision = "allow"
	DecisionChallenge Decision = "challenge"
	DecisionBlock     Decision = "block"
)

// DecisionFor maps a level to its caller-facing decision.
func DecisionFor(l Level) Decision {
	switch l {
	case LevelAllow:
		return DecisionAllow
	case LevelBlock:
		return DecisionBlock
	default:
		return DecisionChallenge
	}
}

// Category identifies a signal provider.
type Category string

const (
	CategoryBot        Category = "bot"
	CategoryIP         Category = "ip_reputation"
	CategoryTrust      Category = "account_trust"
	CategoryBehavioral Category = "behavioral"
	CategoryVelocity   Category = "velocity"
)

// Categories lists every signal category in scoring order.
var Categories = []Category{CategoryBot, CategoryIP, CategoryTrust, CategoryBehavioral, CategoryVelocity}

// Neutral is the sub-score used when a signal cannot be computed.
const Neutral = 50

// SignalResult is one provider's contribution. Score is 0..100, higher is riskier.
type SignalResult struct {
	Category    Category      `json:"category"`
	Score       int           `json:"score"`
	Reasons     []string      `json:"reasons"`
	Unavailable bool          `json:"unavailable,omitempty"`
	Latency     time.Duration `json:"-"`
}

// Assessment is the immutable record of one evaluation. It is written once and
// never updated or deleted.
//
// Decision is derived from Level alone. Content screening runs later in the
// gate and can tighten the final outcome; that outcome is recorded on the
// challenge or blocked attempt that references the assessment.
type Assessment struct {
	ID        string         `json:"id"`
	Subject   string         `json:"subject"`
	Action    Action         `json:"action"`
	Score     int            `json:"score"`
	Level     Level          `json:"level"`
	Decision  Decision       `json:"decision"`
	Factors   []SignalResult `json:"factors"`
	Reasons   []string       `json:"reasons"`
	IPPrefix  string         `json:"ip_prefix,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Degraded reports whether any factor was unavailable.
func (a *Assessment) Degraded() bool {
	for _, f := range a.Factors {
		if f.Unavailable {
			return true
		}
	}
	return false
}

// Factor returns the sub-score for a category, if present.
func (a *Assessment) Factor(c Category) (SignalResult, bool) {
	for _, f := range a.Factors {
		if f.Category == c {
			return f, true
		}
	}
	return SignalResult{}, false
}

// Clone returns a deep copy so callers cannot mutate stored records.
func (a *Assessment) Clone() *Assessment {
	if a == nil {
		return nil
	}
	cp := *a
	cp.Reasons = append([]string(nil), a.Reasons...)
	cp.Factors = make([]SignalResult, len(a.Factors))
	for i, f := range a.Factors {
		f.Reasons = append([]string(nil), f.Reasons...)
		cp.Factors[i] = f
	}
	return &cp
}

// AssessmentFilter narrows history queries.
type AssessmentFilter struct {
	Subject string
	Since   time.Time
	Until   time.Time
	Limit   int
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// EffectiveLimit clamps Limit into 1..MaxHistoryLimit.
func (f AssessmentFilter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultHistoryLimit
	}
	return min(f.Limit, MaxHistoryLimit)
}
