package models

import (
	"strings"
	"time"

	dErrors "riskgate/pkg/domain-errors"
)

type AddAllowlistRequest struct {
	Identifier string     `json:"identifier"`
	Reason     string     `json:"reason"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

func (r *AddAllowlistRequest) Normalize() {
	if r == nil {
		return
	}
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Reason = strings.TrimSpace(r.Reason)
}

// Validate checks size, then presence.
func (r *AddAllowlistRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if len(r.Identifier) > 255 {
		return dErrors.New(dErrors.CodeInvalidInput, "identifier must be 255 characters or less")
	}
	if len(r.Reason) > 500 {
		return dErrors.New(dErrors.CodeInvalidInput, "reason must be 500 characters or less")
	}
	if r.Identifier == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "identifier is required")
	}
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	return nil
}

// ResetRequest clears the current window of one limiter for a key.
type ResetRequest struct {
	Limiter string `json:"limiter"`
	Key     string `json:"key"`
}

func (r *ResetRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	r.Limiter = strings.TrimSpace(r.Limiter)
	r.Key = strings.TrimSpace(r.Key)
	if r.Limiter == "" || r.Key == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "limiter and key are required")
	}
	return nil
}
