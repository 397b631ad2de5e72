// Package notify tells reviewers about new approvals and subjects about
// decisions. Delivery is fire-and-forget: a failed notification is logged and
// never affects the approval it describes.
package notify

import (
	"time"

	"github.com/google/uuid"

	"riskgate/internal/approval/models"
)

type EventType string

const (
	EventApprovalCreated  EventType = "approval.created"
	EventApprovalResolved EventType = "approval.resolved"
)

// Audience is who the notification is meant for.
type Audience string

const (
	AudienceReviewers Audience = "reviewers"
	AudienceSubject   Audience = "subject"
)

// Event is the payload published for an approval change. Amount is a decimal
// string so consumers never round through floats.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Audience   Audience  `json:"audience"`
	ApprovalID string    `json:"approval_id"`
	PayoutID   string    `json:"payout_id"`
	Subject    string    `json:"subject"`
	Status     string    `json:"status"`
	Amount     string    `json:"amount"`
	Flags      []string  `json:"flags,omitempty"`
	ReviewedBy string    `json:"reviewed_by,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newEvent(t EventType, rec *models.Record, at time.Time) Event {
	audience := AudienceReviewers
	if t == EventApprovalResolved {
		audience = AudienceSubject
	}
	flags := make([]string, 0, len(rec.Flags))
	for _, f := range rec.Flags {
		flags = append(flags, string(f))
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Audience:   audience,
		ApprovalID: rec.ID,
		PayoutID:   rec.PayoutID,
		Subject:    rec.Subject,
		Status:     string(rec.Status),
		Amount:     rec.Amount.StringFixed(2),
		Flags:      flags,
		ReviewedBy: rec.ReviewedBy,
		OccurredAt: at,
	}
}
