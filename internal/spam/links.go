package spam

import (
	"net"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/net/publicsuffix"

	"riskgate/internal/risk/models"
)

var linkPattern = regexp.MustCompile(`(?i)\b(?:https?://|www\.)[^\s<>"']+`)

var suspiciousTLDs = []string{"xyz", "top", "click", "loan", "work", "gq", "tk", "ml", "cf", "ga", "zip", "mov"}

var shorteners = []string{"bit.ly", "tinyurl.com", "t.co", "goo.gl", "ow.ly", "is.gd", "cutt.ly", "rb.gy"}

// LinkAllowance is the number of links each tier may post before link
// density counts against it.
var LinkAllowance = map[models.TrustTier]int{
	models.TierNew:      1,
	models.TierBasic:    2,
	models.TierVerified: 4,
	models.TierTrusted:  8,
	models.TierPremium:  15,
}

func extractLinks(content string, tier models.TrustTier) LinkStats {
	stats := LinkStats{Allowed: LinkAllowance[tier]}
	words := len(strings.Fields(content))
	seen := map[string]bool{}
	for _, raw := range linkPattern.FindAllString(content, -1) {
		stats.Total++
		domain, suspicious := classifyLink(raw)
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		stats.Domains = append(stats.Domains, domain)
		if suspicious {
			stats.SuspiciousDomains = append(stats.SuspiciousDomains, domain)
		}
	}
	if words > 0 {
		stats.Density = float64(stats.Total) / float64(words)
	}
	slices.Sort(stats.Domains)
	slices.Sort(stats.SuspiciousDomains)
	return stats
}

// classifyLink returns the registrable domain and whether it looks abusive.
func classifyLink(raw string) (string, bool) {
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(strings.TrimRight(raw, ".,;:!?)"))
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if net.ParseIP(host) != nil {
		return host, true
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, true
	}
	if strings.HasPrefix(host, "xn--") || strings.Contains(host, ".xn--") {
		return domain, true
	}
	if slices.Contains(shorteners, domain) {
		return domain, true
	}
	tld, _ := publicsuffix.PublicSuffix(host)
	return domain, slices.Contains(suspiciousTLDs, tld)
}
