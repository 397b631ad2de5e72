// Package bot scores automation likelihood from the user agent and the
// client fingerprint.
package bot

import (
	"context"
	"regexp"
	"strings"

	"github.com/mssola/useragent"

	"riskgate/internal/risk/models"
)

var automationPatterns = compilePatterns(
	`(?i)headless`,
	`(?i)phantomjs`,
	`(?i)selenium`,
	`(?i)webdriver`,
	`(?i)puppeteer`,
	`(?i)playwright`,
	`(?i)cypress`,
	`(?i)nightwatch`,
	`(?i)zombie`,
	`(?i)electron`,
)

var scriptedClientPatterns = compilePatterns(
	`(?i)^curl/`,
	`(?i)^wget/`,
	`(?i)python-requests`,
	`(?i)go-http-client`,
	`(?i)okhttp`,
	`(?i)libwww-perl`,
	`(?i)^java/`,
)

func compilePatterns(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}

// corroboration maps the number of weak anomalies to a score. A single
// anomaly is common on real browsers; confidence grows with agreement.
var corroboration = []int{0, 15, 40, 65, 85}

const (
	scoreMissingUA      = 70
	scoreScriptedClient = 80
	scoreAutomationUA   = 85
	scoreDeclaredBot    = 90
	scoreWebdriver      = 95
	strongBonusPerWeak  = 5
)

type Provider struct{}

func New() *Provider { return &Provider{} }

func (p *Provider) Category() models.Category { return models.CategoryBot }

func (p *Provider) Evaluate(_ context.Context, in models.SignalInput) (models.SignalResult, error) {
	var (
		strong  int
		reasons []string
	)
	raiseStrong := func(score int, reason string) {
		strong = max(strong, score)
		reasons = append(reasons, reason)
	}

	ua := strings.TrimSpace(in.UserAgent)
	mobile := false
	if ua == "" {
		raiseStrong(scoreMissingUA, "missing user agent")
	} else {
		parsed := useragent.New(ua)
		mobile = parsed.Mobile()
		if parsed.Bot() {
			raiseStrong(scoreDeclaredBot, "self-declared crawler user agent")
		}
		if matchAny(automationPatterns, ua) {
			raiseStrong(scoreAutomationUA, "automation framework user agent")
		}
		if matchAny(scriptedClientPatterns, ua) {
			raiseStrong(scoreScriptedClient, "scripted http client user agent")
		}
	}

	weak := 0
	fp := in.Fingerprint
	if fp.Collected {
		if fp.Webdriver {
			raiseStrong(scoreWebdriver, "webdriver flag set")
		}
		for _, a := range anomalies(fp, mobile) {
			weak++
			reasons = append(reasons, a)
		}
	}

	score := corroboration[min(weak, len(corroboration)-1)]
	if strong > 0 {
		score = strong + strongBonusPerWeak*weak
	}
	return models.SignalResult{
		Category: models.CategoryBot,
		Score:    min(100, score),
		Reasons:  reasons,
	}, nil
}

func anomalies(fp models.ClientFingerprint, mobile bool) []string {
	var out []string
	if fp.PluginCount == 0 && !mobile {
		out = append(out, "no browser plugins")
	}
	if fp.LanguageCount == 0 {
		out = append(out, "no navigator languages")
	}
	if !fp.HasOuterDimensions {
		out = append(out, "zero outer window dimensions")
	}
	renderer := strings.ToLower(fp.Renderer)
	if strings.Contains(renderer, "swiftshader") || strings.Contains(renderer, "llvmpipe") {
		out = append(out, "software webgl renderer")
	}
	if fp.TimezoneMismatch {
		out = append(out, "timezone inconsistent with locale")
	}
	if mobile && fp.TouchPoints == 0 {
		out = append(out, "mobile user agent without touch support")
	}
	return out
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
