package pattern

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var _ Matcher = (*MatcherImpl)(nil)

// MatcherImpl implements Matcher for a fixed rule list.
type MatcherImpl struct {
	keywords map[string][]string
	rules    []Rule
}

// NewMatcher keeps the active rules, ordered by priority descending.
// Rules of equal priority keep their registration order.
func NewMatcher(rules []Rule) *MatcherImpl {
	m := &MatcherImpl{
		keywords: make(map[string][]string),
	}

	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		m.rules = append(m.rules, rule)

		lowered := make([]string, 0, len(rule.Keywords))
		for _, kw := range rule.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				lowered = append(lowered, kw)
			}
		}
		m.keywords[rule.RuleID] = lowered
	}

	sortByPriority(m.rules)

	return m
}

// Rules returns the active rules in evaluation order.
func (m *MatcherImpl) Rules() []Rule {
	return m.rules
}

// Match returns every active rule that accepts amount, in evaluation order,
// scored as keyword hits times priority. A rule with no hits scores 0.
func (m *MatcherImpl) Match(description string, amount decimal.Decimal) []Match {
	text := strings.ToLower(description)

	var matches []Match
	for i := range m.rules {
		rule := &m.rules[i]
		if !rule.AcceptsAmount(amount) {
			continue
		}

		var hit []string
		for _, kw := range m.keywords[rule.RuleID] {
			if strings.Contains(text, kw) {
				hit = append(hit, kw)
			}
		}

		matches = append(matches, Match{
			Rule:    rule,
			Matched: hit,
			Score:   len(hit) * rule.Priority,
		})
	}

	return matches
}

// Best returns the candidate with the strictly greatest score. The earliest
// candidate wins ties, so with no keyword hits anywhere the first eligible
// rule wins with score 0.
func (m *MatcherImpl) Best(description string, amount decimal.Decimal) (Match, bool) {
	return best(m.Match(description, amount))
}

// BestHit is Best restricted to candidates that hit a keyword or declare none.
func (m *MatcherImpl) BestHit(description string, amount decimal.Decimal) (Match, bool) {
	var hits []Match
	for _, match := range m.Match(description, amount) {
		if match.Hit() {
			hits = append(hits, match)
		}
	}
	return best(hits)
}

// BestInCategory is BestHit restricted to rules of one category.
func (m *MatcherImpl) BestInCategory(description string, amount decimal.Decimal, category string) (Match, bool) {
	var inCategory []Match
	for _, match := range m.Match(description, amount) {
		if match.Hit() && strings.EqualFold(match.Rule.Category, category) {
			inCategory = append(inCategory, match)
		}
	}
	return best(inCategory)
}

func best(matches []Match) (Match, bool) {
	if len(matches) == 0 {
		return Match{}, false
	}
	winner := matches[0]
	for _, match := range matches[1:] {
		if match.Score > winner.Score {
			winner = match
		}
	}
	return winner, true
}

// sortByPriority sorts rules by priority (highest first), keeping the order of
// equal-priority rules.
func sortByPriority(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
}
