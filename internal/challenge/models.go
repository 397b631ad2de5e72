package challenge

import (
	"time"

	"riskgate/internal/risk/models"
)

// State is a challenge's position in its lifecycle.
type State string

const (
	StateIssued    State = "issued"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateVerified || s == StateFailed || s == StateExpired
}

// Mode is the widget presentation the client must render.
type Mode string

const (
	ModeInvisible Mode = "invisible"
	ModeVisible   Mode = "visible"
)

// ModeFor returns the widget mode for a level. Allow needs no challenge and
// block never enters the state machine.
func ModeFor(l models.Level) (Mode, bool) {
	switch l {
	case models.LevelSoftChallenge:
		return ModeInvisible, true
	case models.LevelHardChallenge:
		return ModeVisible, true
	}
	return "", false
}

// Challenge is one in-flight verification. Handle is opaque to clients.
type Challenge struct {
	Handle       string        `json:"handle"`
	Subject      string        `json:"subject"`
	Action       models.Action `json:"action"`
	Mode         Mode          `json:"mode"`
	State        State         `json:"state"`
	AssessmentID string        `json:"assessment_id,omitempty"`
	IssuedAt     time.Time     `json:"issued_at"`
	ExpiresAt    time.Time     `json:"expires_at"`
	ResolvedAt   time.Time     `json:"resolved_at,omitzero"`
	ErrorCodes   []string      `json:"error_codes,omitempty"`
}

// IssueRequest carries the assessment that triggered the challenge.
type IssueRequest struct {
	Subject      string
	Action       models.Action
	Level        models.Level
	AssessmentID string
}

// VerifyInput is the client's submission.
type VerifyInput struct {
	Token    string `json:"token"`
	Hostname string `json:"hostname"`
	RemoteIP string `json:"-"`
}

func (v *VerifyInput) Validate() error {
	if v.Token == "" {
		return errTokenRequired
	}
	return nil
}

// ProviderRequest is sent to the external challenge provider.
type ProviderRequest struct {
	Token    string
	RemoteIP string
	Hostname string
	Action   string
}

// ProviderResponse is the provider's verdict. Only Success grants a pass.
type ProviderResponse struct {
	Success    bool
	ErrorCodes []string
	Hostname   string
	Action     string
}
