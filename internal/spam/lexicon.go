package spam

import (
	"regexp"
	"strings"
)

var lexicons = map[Category][]string{
	CategoryGambling: {
		"casino", "jackpot", "slot machine", "free spins", "sports betting", "bet now",
		"poker bonus", "roulette", "no deposit bonus",
	},
	CategoryPharma: {
		"viagra", "cialis", "no prescription", "online pharmacy", "cheap pills",
		"weight loss pills", "diet pills", "tramadol", "oxycodone",
	},
	CategoryCryptoScam: {
		"double your bitcoin", "guaranteed returns", "crypto giveaway", "send eth",
		"airdrop claim", "wallet recovery", "investment opportunity", "100x gains",
	},
	CategoryPhishing: {
		"verify your account", "account suspended", "confirm your password",
		"login to continue", "update your payment", "unusual activity", "click here to claim",
	},
	CategoryMLM: {
		"work from home", "be your own boss", "passive income", "join my team",
		"financial freedom", "earn money fast", "ground floor opportunity",
	},
}

var lexiconPatterns = compileLexicons()

func compileLexicons() map[Category]*regexp.Regexp {
	out := make(map[Category]*regexp.Regexp, len(lexicons))
	for cat, terms := range lexicons {
		quoted := make([]string, len(terms))
		for i, t := range terms {
			quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(t), " ", `\s+`)
		}
		out[cat] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}

// keywordOrder fixes iteration order so results are deterministic.
var keywordOrder = []Category{CategoryGambling, CategoryPharma, CategoryCryptoScam, CategoryPhishing, CategoryMLM}
