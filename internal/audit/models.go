package audit

import "time"

// Source names the component whose decision blocked the attempt.
type Source string

const (
	SourceAssessment Source = "assessment"
	SourcePayout     Source = "payout"
	SourceContent    Source = "content"
)

// BlockedAttempt is an append-only forensic record of a denied action.
type BlockedAttempt struct {
	ID           string    `json:"id"`
	Subject      string    `json:"subject"`
	Action       string    `json:"action"`
	Source       Source    `json:"source"`
	ReasonCode   string    `json:"reason_code"`
	Message      string    `json:"message"`
	Reasons      []string  `json:"reasons"`
	Score        int       `json:"score"`
	AssessmentID string    `json:"assessment_id,omitempty"`
	PayoutID     string    `json:"payout_id,omitempty"`
	IPPrefix     string    `json:"ip_prefix,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter narrows history queries by subject and time range.
type Filter struct {
	Subject string
	Since   time.Time
	Until   time.Time
	Limit   int
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// EffectiveLimit clamps Limit into 1..MaxListLimit.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return min(f.Limit, MaxListLimit)
}

// Matches reports whether a record falls within the filter.
func (f Filter) Matches(subject string, at time.Time) bool {
	if f.Subject != "" && f.Subject != subject {
		return false
	}
	if !f.Since.IsZero() && at.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !at.Before(f.Until) {
		return false
	}
	return true
}
