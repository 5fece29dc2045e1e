package heuristic

import (
	"regexp"
	"strings"
)

// Pattern set names. Each classification task maps to one set.
const (
	SetFinancial = "financial"
	SetUrgent    = "urgent"
	SetLeads     = "leads"
	SetSocial    = "social"
)

// Matcher classifies message text against fixed keyword pattern sets.
// It is a pure function of its input: no network calls, no failure mode.
// A heuristic match short-circuits the semantic classifier, so patterns
// are chosen for precision over recall.
type Matcher struct {
	sets map[string]*regexp.Regexp
}

// NewMatcher compiles the built-in pattern sets.
func NewMatcher() *Matcher {
	sets := make(map[string]*regexp.Regexp, len(rawSets))
	for name, words := range rawSets {
		sets[name] = compileSet(words)
	}
	return &Matcher{sets: sets}
}

// Matches reports whether text matches the named pattern set. Unknown
// set names never match. Matching is case-insensitive.
func (m *Matcher) Matches(set, text string) bool {
	re, ok := m.sets[set]
	if !ok {
		return false
	}
	return re.MatchString(strings.ToLower(text))
}

// compileSet builds a single word-boundary alternation from domain terms.
func compileSet(words []string) *regexp.Regexp {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
}

var rawSets = map[string][]string{
	SetFinancial: {
		"invoice", "receipt", "payment", "bill", "billing", "statement",
		"subscription", "renewal", "charge", "charged", "refund",
		"transaction", "payment due", "amount due", "past due",
		"direct debit", "autopay", "balance",
	},
	SetUrgent: {
		"urgent", "asap", "immediately", "action required", "deadline",
		"expires today", "expiring soon", "final notice", "last chance",
		"overdue", "time sensitive", "respond by", "due today",
		"important update", "account locked", "suspended",
	},
	SetLeads: {
		"proposal", "quote", "quotation", "partnership", "collaboration",
		"business opportunity", "interested in your", "demo", "pricing",
		"contract", "new client", "lead", "rfp", "work together",
		"schedule a call", "follow up on our",
	},
	SetSocial: {
		"birthday", "congratulations", "wedding", "party", "invitation",
		"dinner", "lunch", "catch up", "miss you", "family",
		"happy new year", "holiday", "vacation", "weekend", "get together",
	},
}
