// Package pattern scores classification rules against account descriptions.
package pattern

import (
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// Matcher evaluates classification rules against a description and amount.
type Matcher interface {
	// Match returns every amount-eligible rule in evaluation order.
	Match(description string, amount decimal.Decimal) []Match
	// Best returns the winning candidate, if any.
	Best(description string, amount decimal.Decimal) (Match, bool)
	// BestHit returns the winning candidate among those with keyword evidence.
	BestHit(description string, amount decimal.Decimal) (Match, bool)
}

// Match is a rule that passed the amount gate, with its score.
type Match struct {
	Rule    *model.ClassificationRule
	Matched []string
	Score   int
}

// Rule is an alias to the model.ClassificationRule type for convenience.
type Rule = model.ClassificationRule

// Hit reports whether the rule matched a keyword or declares no keywords.
func (m Match) Hit() bool {
	return len(m.Matched) > 0 || len(m.Rule.Keywords) == 0
}
