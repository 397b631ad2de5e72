package httptransport

import (
	"strings"

	"riskgate/internal/risk/models"
	dErrors "riskgate/pkg/domain-errors"
)

const maxContentBytes = 64 << 10

// EvaluateRequest is the body of POST /v1/actions/evaluate. Network facts
// (IP, user agent) come from the connection, never the body.
type EvaluateRequest struct {
	Subject     string                   `json:"subject"`
	Action      string                   `json:"action"`
	Content     string                   `json:"content,omitempty"`
	Trust       models.TrustFacts        `json:"trust"`
	Fingerprint models.ClientFingerprint `json:"fingerprint"`
	Telemetry   models.Telemetry         `json:"telemetry"`
}

func (r *EvaluateRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	r.Fingerprint.Hash = strings.TrimSpace(r.Fingerprint.Hash)
}

func (r *EvaluateRequest) Validate() error {
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if _, err := models.ParseAction(r.Action); err != nil {
		return err
	}
	if len(r.Content) > maxContentBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "content is too large")
	}
	return nil
}

// AnalyzeRequest is the body of POST /v1/content/analyze.
type AnalyzeRequest struct {
	Subject string            `json:"subject"`
	Content string            `json:"content"`
	Trust   models.TrustFacts `json:"trust"`
}

func (r *AnalyzeRequest) Normalize() {
	r.Subject = strings.TrimSpace(r.Subject)
}

func (r *AnalyzeRequest) Validate() error {
	if r.Subject == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "content is required")
	}
	if len(r.Content) > maxContentBytes {
		return dErrors.New(dErrors.CodeInvalidInput, "content is too large")
	}
	return nil
}
