package audit

import (
	"context"
	"log/slog"

	"riskgate/pkg/platform/privacy"
	"riskgate/pkg/requestcontext"
)

// Emitter accepts security events without blocking the caller.
type Emitter interface {
	Emit(ctx context.Context, event SecurityEvent)
}

// LogAudit writes event to the structured log and, when publisher is non-nil,
// emits a SecurityEvent. Subject and reason are lifted from attrList.
func LogAudit(ctx context.Context, logger *slog.Logger, publisher Emitter, event AuditEvent, attrList ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attrList = append(attrList, "request_id", requestID)
	}
	args := append(attrList, "event", string(event), "log_type", "audit")

	if logger != nil {
		logger.InfoContext(ctx, string(event), args...)
	}
	if publisher == nil {
		return
	}

	publisher.Emit(ctx, SecurityEvent{
		Timestamp: requestcontext.Now(ctx),
		Action:    string(event),
		Subject:   firstString(attrList, "subject", "payout_id", "approval_id", "key"),
		Reason:    firstString(attrList, "reason", "reason_code"),
		IP:        privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
		RequestID: requestID,
		ActorID:   requestcontext.Reviewer(ctx),
		Severity:  event.Severity(),
	})
}

// firstString returns the value of the first key, in keys order, that is
// present in attrList with a non-empty string value.
func firstString(attrList []any, keys ...string) string {
	values := make(map[string]string, len(attrList)/2)
	for i := 0; i+1 < len(attrList); i += 2 {
		k, ok := attrList[i].(string)
		if !ok {
			continue
		}
		if v, ok := attrList[i+1].(string); ok && v != "" {
			if _, seen := values[k]; !seen {
				values[k] = v
			}
		}
	}
	for _, key := range keys {
		if v, ok := values[key]; ok {
			return v
		}
	}
	return ""
}
