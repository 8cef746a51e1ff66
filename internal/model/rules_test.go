package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestClassificationRule_AcceptsAmount(t *testing.T) {
	rule := ClassificationRule{
		RuleID: "R1",
		AmountRanges: []AmountRange{
			{Min: dec("0"), Max: dec("100")},
			{Min: dec("500"), Max: dec("1000")},
		},
	}

	assert.True(t, rule.AcceptsAmount(dec("0")))
	assert.True(t, rule.AcceptsAmount(dec("100")))
	assert.False(t, rule.AcceptsAmount(dec("100.01")))
	assert.True(t, rule.AcceptsAmount(dec("500")))
	assert.True(t, rule.AcceptsAmount(dec("1000")))
	assert.False(t, rule.AcceptsAmount(dec("1000.01")))

	open := ClassificationRule{RuleID: "R2"}
	assert.True(t, open.AcceptsAmount(dec("99999999")))
}

func TestApprovalConditions_Matches(t *testing.T) {
	tests := []struct {
		name     string
		cond     ApprovalConditions
		amount   string
		category string
		want     bool
	}{
		{name: "no conditions", cond: ApprovalConditions{}, amount: "5", category: "Operating", want: true},
		{name: "below min", cond: ApprovalConditions{MinAmount: decPtr("10000")}, amount: "9999.99", want: false},
		{name: "equal to min", cond: ApprovalConditions{MinAmount: decPtr("10000")}, amount: "10000", want: true},
		{name: "equal to max", cond: ApprovalConditions{MaxAmount: decPtr("10000")}, amount: "10000", want: true},
		{name: "above max", cond: ApprovalConditions{MaxAmount: decPtr("10000")}, amount: "10000.01", want: false},
		{
			name:     "category in set",
			cond:     ApprovalConditions{Categories: []string{"Operating", "Administrative"}},
			amount:   "1",
			category: "Administrative",
			want:     true,
		},
		{
			name:     "category outside set",
			cond:     ApprovalConditions{Categories: []string{"Capital"}},
			amount:   "1",
			category: "Vendor",
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Matches(dec(tt.amount), tt.category))
		})
	}
}

func TestRuleSet_Validate(t *testing.T) {
	valid := func() RuleSet {
		return RuleSet{
			ClassificationRules: []ClassificationRule{
				{RuleID: "OP-001", Category: "Operating", Priority: 100, GLAccountPatterns: []string{"6*"}},
			},
			ApprovalRules: []ApprovalRule{
				{RuleID: "APP-001", ApprovalLevel: ApprovalStandard},
			},
			ValidationRules: []ValidationRule{
				{RuleID: "VAL-001", RuleType: ValidateAmount},
			},
		}
	}

	tests := []struct {
		mutate func(*RuleSet)
		name   string
		errMsg string
	}{
		{name: "valid set", mutate: func(*RuleSet) {}},
		{
			name:   "duplicate classification id",
			mutate: func(s *RuleSet) { s.ClassificationRules = append(s.ClassificationRules, s.ClassificationRules[0]) },
			errMsg: "duplicate classification rule id OP-001",
		},
		{
			name:   "same id across kinds is allowed",
			mutate: func(s *RuleSet) { s.ApprovalRules[0].RuleID = "OP-001" },
		},
		{
			name:   "unknown approval level",
			mutate: func(s *RuleSet) { s.ApprovalRules[0].ApprovalLevel = "Urgent" },
			errMsg: "unknown approval level",
		},
		{
			name: "inverted range",
			mutate: func(s *RuleSet) {
				s.ClassificationRules[0].AmountRanges = []AmountRange{{Min: dec("10"), Max: dec("1")}}
			},
			errMsg: "min greater than max",
		},
		{
			name:   "non trailing wildcard",
			mutate: func(s *RuleSet) { s.ClassificationRules[0].GLAccountPatterns = []string{"6*1"} },
			errMsg: "wildcard must be trailing",
		},
		{
			name:   "unknown validation type",
			mutate: func(s *RuleSet) { s.ValidationRules[0].RuleType = "vibes" },
			errMsg: "unknown rule type",
		},
		{
			name:   "gl rule without patterns",
			mutate: func(s *RuleSet) { s.ValidationRules[0].RuleType = ValidateGLAccount },
			errMsg: "needs category_patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := valid()
			tt.mutate(&set)
			err := set.Validate()
			if tt.errMsg == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidRule)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRuleSet_RulesToggleThroughInterface(t *testing.T) {
	set := RuleSet{
		ClassificationRules: []ClassificationRule{{RuleID: "A", IsActive: true}},
		ApprovalRules:       []ApprovalRule{{RuleID: "B", IsActive: true}},
	}

	for _, r := range set.Rules() {
		r.SetActive(false)
	}

	assert.False(t, set.ClassificationRules[0].IsActive)
	assert.False(t, set.ApprovalRules[0].IsActive)
}
