package spam

import "riskgate/internal/risk/models"

// Action is the analyzer's verdict.
type Action string

const (
	ActionAllow  Action = "allow"
	ActionReview Action = "review"
	ActionBlock  Action = "block"
)

// Category labels a dimension that contributed to the score.
type Category string

const (
	CategoryGambling   Category = "gambling"
	CategoryPharma     Category = "pharma"
	CategoryCryptoScam Category = "crypto_scam"
	CategoryPhishing   Category = "phishing"
	CategoryMLM        Category = "mlm"
	CategoryLinks      Category = "excessive_links"
	CategoryDomains    Category = "suspicious_domains"
	CategoryDuplicate  Category = "duplicate"
	CategoryFormatting Category = "formatting"
)

// Use says how an analysis touches the duplicate index.
type Use int

const (
	// UsePublish flags content the subject already posted and records it.
	UsePublish Use = iota
	// UseEdit records the content without flagging; an edit may keep the
	// author's own text.
	UseEdit
	// UsePreview checks for a duplicate without recording anything.
	UsePreview
)

// Subject is who submitted the content.
type Subject struct {
	ID   string
	Tier models.TrustTier
}

// LinkStats summarizes links found in the content.
type LinkStats struct {
	Total             int      `json:"total"`
	Allowed           int      `json:"allowed"`
	Density           float64  `json:"density"`
	Domains           []string `json:"domains"`
	SuspiciousDomains []string `json:"suspicious_domains,omitempty"`
}

// Result is the outcome of Analyze.
type Result struct {
	Score      int        `json:"score"`
	Action     Action     `json:"action"`
	Categories []Category `json:"categories"`
	LinkStats  LinkStats  `json:"link_stats"`
	Hash       string     `json:"hash"`
	Duplicate  bool       `json:"duplicate"`
	Reasons    []string   `json:"reasons"`
}
