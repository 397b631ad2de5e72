// Package audit defines security events emitted by the risk pipeline and the
// helper used to log and publish them.
package audit

import "time"

// AuditEvent names a security-relevant action.
type AuditEvent string

const (
	EventAssessmentBlocked  AuditEvent = "assessment_blocked"
	EventSignalUnavailable  AuditEvent = "signal_unavailable"
	EventRateLimitExceeded  AuditEvent = "rate_limit_exceeded"
	EventRateLimitDegraded  AuditEvent = "rate_limit_degraded"
	EventAllowlistBypassed  AuditEvent = "allowlist_bypassed"
	EventLimiterMissing     AuditEvent = "rate_limit_config_missing"
	EventChallengeIssued    AuditEvent = "challenge_issued"
	EventChallengeFailed    AuditEvent = "challenge_failed"
	EventChallengeVerified  AuditEvent = "challenge_verified"
	EventContentRejected    AuditEvent = "content_rejected"
	EventPayoutRejected     AuditEvent = "payout_rejected"
	EventPayoutSuspended    AuditEvent = "payout_suspended"
	EventApprovalResolved   AuditEvent = "approval_resolved"
	EventApprovalConflicted AuditEvent = "approval_conflicted"
)

// Severity routes events in the SIEM.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

var eventSeverity = map[AuditEvent]Severity{
	EventAssessmentBlocked:  SeverityCritical,
	EventPayoutRejected:     SeverityCritical,
	EventApprovalConflicted: SeverityWarning,
	EventRateLimitExceeded:  SeverityWarning,
	EventRateLimitDegraded:  SeverityWarning,
	EventAllowlistBypassed:  SeverityWarning,
	EventLimiterMissing:     SeverityCritical,
	EventChallengeFailed:    SeverityWarning,
	EventContentRejected:    SeverityWarning,
	EventSignalUnavailable:  SeverityWarning,
	EventPayoutSuspended:    SeverityInfo,
	EventApprovalResolved:   SeverityInfo,
	EventChallengeIssued:    SeverityInfo,
	EventChallengeVerified:  SeverityInfo,
}

// Severity returns the routing severity; unknown events are informational.
func (e AuditEvent) Severity() Severity {
	if s, ok := eventSeverity[e]; ok {
		return s
	}
	return SeverityInfo
}

// SecurityEvent is the transport-agnostic record handed to publishers.
type SecurityEvent struct {
	Timestamp time.Time
	Subject   string
	Action    string
	Reason    string
	IP        string
	RequestID string
	ActorID   string
	Severity  Severity
}
