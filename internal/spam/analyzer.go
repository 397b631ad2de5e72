// Package spam scores submitted content for spam.
//
// Independent dimensions (keyword lexicons, link density and domains,
// duplicate detection, superficial formatting) each add a partial score; the
// sum is clamped to 0..100 and mapped to allow, review or block.
package spam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"riskgate/pkg/platform/audit"
)

// Thresholds maps the clamped score to an action.
type Thresholds struct {
	Review int
	Block  int
}

func DefaultThresholds() Thresholds {
	return Thresholds{Review: 40, Block: 70}
}

const (
	defaultDuplicateTTL = 24 * time.Hour

	keywordCategoryPoints = 25
	keywordExtraHitPoints = 5
	keywordCategoryCap    = 40

	excessLinkPoints   = 10
	excessLinkCap      = 40
	densityLimit       = 0.1
	densityPoints      = 20
	suspiciousPoints   = 15
	suspiciousCap      = 45
	duplicatePoints    = 50
	capsPoints         = 15
	runPoints          = 10
	repetitionPoints   = 15
	minLettersForCaps  = 20
	capsRatioLimit     = 0.6
	charRunLimit       = 6
	minWordsRepetition = 10
	wordShareLimit     = 0.3
)

type Analyzer struct {
	index          HashIndex
	thresholds     Thresholds
	duplicateTTL   time.Duration
	logger         *slog.Logger
	auditPublisher audit.Emitter
}

type Option func(*Analyzer)

func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) { a.thresholds = t }
}

func WithDuplicateTTL(ttl time.Duration) Option {
	return func(a *Analyzer) {
		if ttl > 0 {
			a.duplicateTTL = ttl
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

func WithAuditPublisher(p audit.Emitter) Option {
	return func(a *Analyzer) { a.auditPublisher = p }
}

func New(index HashIndex, opts ...Option) (*Analyzer, error) {
	if index == nil {
		return nil, errors.New("hash index is required")
	}
	a := &Analyzer{
		index:        index,
		thresholds:   DefaultThresholds(),
		duplicateTTL: defaultDuplicateTTL,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.thresholds.Review <= 0 || a.thresholds.Block <= a.thresholds.Review || a.thresholds.Block > 100 {
		return nil, fmt.Errorf("invalid spam thresholds %d/%d", a.thresholds.Review, a.thresholds.Block)
	}
	return a, nil
}

// Analyze scores content. Duplicates are the subject's own recent posts; use
// decides whether the content is recorded and whether a match is flagged. It
// never fails on an index outage; the duplicate dimension is skipped and the
// reason recorded instead.
func (a *Analyzer) Analyze(ctx context.Context, content string, subject Subject, use Use) (*Result, error) {
	res := &Result{Hash: Hash(content)}
	score := 0
	flag := func(c Category, points int, reason string) {
		score += points
		res.Reasons = append(res.Reasons, reason)
		if len(res.Categories) == 0 || res.Categories[len(res.Categories)-1] != c {
			res.Categories = append(res.Categories, c)
		}
	}

	normalized := Normalize(content)
	for _, cat := range keywordOrder {
		hits := len(lexiconPatterns[cat].FindAllStringIndex(normalized, -1))
		if hits == 0 {
			continue
		}
		points := min(keywordCategoryCap, keywordCategoryPoints+keywordExtraHitPoints*(hits-1))
		flag(cat, points, fmt.Sprintf("%s terms", cat))
	}

	res.LinkStats = extractLinks(content, subject.Tier)
	if excess := res.LinkStats.Total - res.LinkStats.Allowed; excess > 0 {
		flag(CategoryLinks, min(excessLinkCap, excessLinkPoints*excess), "more links than allowed for trust tier")
		if res.LinkStats.Density > densityLimit {
			flag(CategoryLinks, densityPoints, "high link density")
		}
	}
	if n := len(res.LinkStats.SuspiciousDomains); n > 0 {
		flag(CategoryDomains, min(suspiciousCap, suspiciousPoints*n), "links to suspicious domains")
	}

	seen, err := a.duplicate(ctx, duplicateKey(subject.ID, res.Hash), use)
	switch {
	case err != nil:
		a.logger.WarnContext(ctx, "duplicate index unavailable", "subject", subject.ID, "error", err)
		res.Reasons = append(res.Reasons, "duplicate check unavailable")
	case seen && use != UseEdit:
		res.Duplicate = true
		flag(CategoryDuplicate, duplicatePoints, "duplicate of recent content")
	}

	for _, f := range formattingFindings(content) {
		flag(CategoryFormatting, f.points, f.reason)
	}

	res.Score = min(100, max(0, score))
	res.Action = a.actionFor(res.Score)
	if res.Action == ActionBlock {
		audit.LogAudit(ctx, a.logger, a.auditPublisher, audit.EventContentRejected,
			"subject", subject.ID,
			"reason", "spam",
			"categories", categoriesString(res.Categories),
		)
	}
	return res, nil
}

func (a *Analyzer) duplicate(ctx context.Context, key string, use Use) (bool, error) {
	if use == UsePreview {
		return a.index.Contains(ctx, key)
	}
	return a.index.Seen(ctx, key, a.duplicateTTL)
}

func (a *Analyzer) actionFor(score int) Action {
	switch {
	case score >= a.thresholds.Block:
		return ActionBlock
	case score >= a.thresholds.Review:
		return ActionReview
	default:
		return ActionAllow
	}
}

type finding struct {
	points int
	reason string
}

func formattingFindings(content string) []finding {
	var out []finding

	letters, upper := 0, 0
	run, prev := 0, rune(0)
	longestRun := 0
	for _, r := range content {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
		if r == prev && !unicode.IsSpace(r) {
			run++
		} else {
			run = 1
		}
		longestRun = max(longestRun, run)
		prev = r
	}
	if letters >= minLettersForCaps && float64(upper)/float64(letters) > capsRatioLimit {
		out = append(out, finding{capsPoints, "excessive capitalization"})
	}
	if longestRun >= charRunLimit {
		out = append(out, finding{runPoints, "repeated characters"})
	}

	words := strings.Fields(strings.ToLower(content))
	if len(words) >= minWordsRepetition {
		counts := map[string]int{}
		top := 0
		for _, w := range words {
			w = strings.TrimFunc(w, unicode.IsPunct)
			if len(w) < 3 {
				continue
			}
			counts[w]++
			top = max(top, counts[w])
		}
		if float64(top)/float64(len(words)) > wordShareLimit {
			out = append(out, finding{repetitionPoints, "repetitive wording"})
		}
	}
	return out
}

func categoriesString(cs []Category) string {
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}
