// Package gate runs a sensitive action through the full decision pipeline:
// risk assessment, rate limiting, content screening and, when the level calls
// for it, a challenge.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"riskgate/internal/audit"
	"riskgate/internal/challenge"
	"riskgate/internal/platform/tracing"
	rlmodels "riskgate/internal/ratelimit/models"
	"riskgate/internal/risk/models"
	"riskgate/internal/signals/trust"
	"riskgate/internal/spam"
	dErrors "riskgate/pkg/domain-errors"
	"riskgate/pkg/requestcontext"
)

type Assessor interface {
	Assess(ctx context.Context, in models.SignalInput) (*models.Assessment, error)
}

type Limiter interface {
	Check(ctx context.Context, name, key string) (*rlmodels.RateLimitResult, error)
}

type ContentAnalyzer interface {
	Analyze(ctx context.Context, content string, subject spam.Subject, use spam.Use) (*spam.Result, error)
}

type ChallengeIssuer interface {
	Issue(ctx context.Context, req challenge.IssueRequest) (*challenge.Challenge, error)
}

type BlockLog interface {
	Record(ctx context.Context, a audit.BlockedAttempt) (*audit.BlockedAttempt, error)
}

// Reason codes returned with denials.
const (
	ReasonRiskBlocked    = "risk_blocked"
	ReasonRateLimited    = "rate_limited"
	ReasonContentBlocked = "content_blocked"
)

// Request is one action to evaluate. Content is only screened for content
// actions.
type Request struct {
	Input   models.SignalInput
	Content string
}

// ContentVerdict is the caller-safe part of a spam analysis.
type ContentVerdict struct {
	Action     spam.Action     `json:"action"`
	Categories []spam.Category `json:"categories"`
	Duplicate  bool            `json:"duplicate"`
}

// Outcome is the caller-facing result for allowed and challenged actions.
// Decision is final. RiskDecision is what the stored assessment says before
// content screening.
type Outcome struct {
	Decision     models.Decision           `json:"decision"`
	RiskDecision models.Decision           `json:"risk_decision"`
	Level        models.Level              `json:"level"`
	AssessmentID string                    `json:"assessment_id"`
	Challenge    *challenge.Challenge      `json:"challenge,omitempty"`
	RateLimit    *rlmodels.RateLimitResult `json:"rate_limit,omitempty"`
	Content      *ContentVerdict           `json:"content,omitempty"`
}

// Gate composes the pipeline stages.
type Gate struct {
	risk       Assessor
	limiter    Limiter
	content    ContentAnalyzer
	challenges ChallengeIssuer
	blocks     BlockLog
	limiterFor map[models.Action]string
	logger     *slog.Logger
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// WithLimiter routes action to the named limiter.
func WithLimiter(action models.Action, name string) Option {
	return func(g *Gate) { g.limiterFor[action] = name }
}

func New(risk Assessor, limiter Limiter, content ContentAnalyzer, challenges ChallengeIssuer, blocks BlockLog, opts ...Option) (*Gate, error) {
	if risk == nil || limiter == nil || content == nil || challenges == nil || blocks == nil {
		return nil, errors.New("gate requires risk, limiter, content, challenge and block log collaborators")
	}
	g := &Gate{
		risk:       risk,
		limiter:    limiter,
		content:    content,
		challenges: challenges,
		blocks:     blocks,
		limiterFor: map[models.Action]string{
			models.ActionLogin:         rlmodels.LimiterLogin,
			models.ActionRegister:      rlmodels.LimiterRegister,
			models.ActionCreateContent: rlmodels.LimiterContentPublish,
			models.ActionEditContent:   rlmodels.LimiterContentPublish,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Evaluate returns an Outcome for allowed or challenged actions. Blocked and
// rate-limited actions come back as policy_blocked or limit_exceeded errors.
// A rate-limited result is still returned alongside limit_exceeded so the
// transport can set quota headers.
func (g *Gate) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	in := req.Input
	ctx, span := tracing.StartSpan(ctx, "gate.evaluate",
		tracing.Subject(in.Subject),
		tracing.Action(string(in.Action)),
	)
	defer span.End()

	assessment, err := g.risk.Assess(ctx, in)
	if err != nil {
		tracing.Fail(span, err, "assessment failed")
		return nil, err
	}
	out := &Outcome{Level: assessment.Level, AssessmentID: assessment.ID, RiskDecision: assessment.Decision}
	if assessment.Level == models.LevelBlock {
		return nil, dErrors.New(dErrors.CodePolicyBlocked, "action denied").
			WithMeta("reason_code", ReasonRiskBlocked).
			WithMeta("assessment_id", assessment.ID)
	}

	rl, err := g.limiter.Check(ctx, g.limiterName(in.Action), rlmodels.SubjectKey(in.Subject))
	if err != nil {
		tracing.Fail(span, err, "rate limiter unavailable")
		return nil, err
	}
	out.RateLimit = rl
	if !rl.Allowed {
		return out, dErrors.New(dErrors.CodeLimitExceeded, "too many requests").
			WithMeta("reason_code", ReasonRateLimited).
			WithMeta("remaining", rl.Remaining).
			WithMeta("reset_at", rl.ResetAt).
			WithMeta("retry_after", rl.RetryAfter)
	}

	if isContentAction(in.Action) && req.Content != "" {
		level, err := g.screen(ctx, req, assessment, out)
		if err != nil {
			return nil, err
		}
		out.Level = level
	}

	out.Decision = models.DecisionFor(out.Level)
	if out.Decision == models.DecisionChallenge {
		c, err := g.challenges.Issue(ctx, challenge.IssueRequest{
			Subject:      in.Subject,
			Action:       in.Action,
			Level:        out.Level,
			AssessmentID: assessment.ID,
		})
		if err != nil {
			tracing.Fail(span, err, "challenge not issued")
			return nil, err
		}
		out.Challenge = c
	}
	span.SetAttributes(tracing.Level(string(out.Level)))
	return out, nil
}

// screen runs the spam analyzer. Content held for review raises the level to a
// visible challenge; blocked content is denied and logged.
func (g *Gate) screen(ctx context.Context, req Request, a *models.Assessment, out *Outcome) (models.Level, error) {
	tier := trust.Profile(req.Input.Trust, requestcontext.Now(ctx)).Tier
	use := spam.UsePublish
	if req.Input.Action == models.ActionEditContent {
		use = spam.UseEdit
	}
	res, err := g.content.Analyze(ctx, req.Content, spam.Subject{ID: req.Input.Subject, Tier: tier}, use)
	if err != nil {
		return "", err
	}
	out.Content = &ContentVerdict{Action: res.Action, Categories: res.Categories, Duplicate: res.Duplicate}

	switch res.Action {
	case spam.ActionBlock:
		rec, err := g.blocks.Record(ctx, audit.BlockedAttempt{
			Subject:      req.Input.Subject,
			Action:       string(req.Input.Action),
			Source:       audit.SourceContent,
			ReasonCode:   ReasonContentBlocked,
			Message:      "content rejected",
			Reasons:      res.Reasons,
			Score:        res.Score,
			AssessmentID: a.ID,
		})
		if err != nil {
			return "", err
		}
		return "", dErrors.New(dErrors.CodePolicyBlocked, "content rejected").
			WithMeta("reason_code", ReasonContentBlocked).
			WithMeta("blocked_attempt_id", rec.ID)
	case spam.ActionReview:
		g.logger.InfoContext(ctx, "content held for challenge",
			"subject", req.Input.Subject,
			"assessment_id", a.ID,
		)
		return models.Stricter(out.Level, models.LevelHardChallenge), nil
	}
	return out.Level, nil
}

func (g *Gate) limiterName(a models.Action) string {
	if name, ok := g.limiterFor[a]; ok {
		return name
	}
	return rlmodels.LimiterAPI
}

func isContentAction(a models.Action) bool {
	return a == models.ActionCreateContent || a == models.ActionEditContent
}
