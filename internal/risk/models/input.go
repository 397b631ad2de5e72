package models

import "time"

// TrustTier buckets account trust.
type TrustTier string

const (
	TierNew      TrustTier = "new"
	TierBasic    TrustTier = "basic"
	TierVerified TrustTier = "verified"
	TierTrusted  TrustTier = "trusted"
	TierPremium  TrustTier = "premium"
)

func (t TrustTier) IsValid() bool {
	switch t {
	case TierNew, TierBasic, TierVerified, TierTrusted, TierPremium:
		return true
	}
	return false
}

// TrustFacts are the account facts a trust profile is derived from. Callers
// supply them from the account system on every request.
type TrustFacts struct {
	AccountCreatedAt   time.Time `json:"account_created_at"`
	EmailVerified      bool      `json:"email_verified"`
	PublishedItems     int       `json:"published_items"`
	FlaggedItems       int       `json:"flagged_items"`
	HasPaymentMethod   bool      `json:"has_payment_method"`
	ActiveDaysLast30   int       `json:"active_days_last_30"`
	RecentSecurityHits int       `json:"recent_security_events"`
}

// TrustProfile is derived per request and never stored as truth.
type TrustProfile struct {
	Score      int       `json:"score"`
	Tier       TrustTier `json:"tier"`
	AccountAge time.Duration
	Reasons    []string `json:"reasons"`
}

// ClientFingerprint carries browser environment facts gathered client-side.
type ClientFingerprint struct {
	Hash               string `json:"hash"`
	Webdriver          bool   `json:"webdriver"`
	PluginCount        int    `json:"plugin_count"`
	LanguageCount      int    `json:"language_count"`
	HasOuterDimensions bool   `json:"has_outer_dimensions"`
	Renderer           string `json:"renderer"`
	TimezoneMismatch   bool   `json:"timezone_mismatch"`
	TouchPoints        int    `json:"touch_points"`
	Collected          bool   `json:"collected"`
}

// Telemetry is session interaction data.
type Telemetry struct {
	SessionSeconds     int  `json:"session_seconds"`
	PointerEvents      int  `json:"pointer_events"`
	KeyEvents          int  `json:"key_events"`
	ScrollEvents       int  `json:"scroll_events"`
	FormFillMillis     int  `json:"form_fill_ms"`
	ContentThisSession int  `json:"content_items_this_session"`
	Collected          bool `json:"collected"`
}

// Interactions sums all interaction events.
func (t Telemetry) Interactions() int {
	return t.PointerEvents + t.KeyEvents + t.ScrollEvents
}

// SignalInput is the read-only view every provider evaluates.
type SignalInput struct {
	Subject     string
	Action      Action
	IP          string
	UserAgent   string
	Fingerprint ClientFingerprint
	Trust       TrustFacts
	Telemetry   Telemetry
	Now         time.Time
}
