package pattern

import (
	"testing"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rng(min, max int64) []model.AmountRange {
	return []model.AmountRange{{Min: decimal.NewFromInt(min), Max: decimal.NewFromInt(max)}}
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name        string
		description string
		amount      string
		rules       []Rule
		wantIDs     []string
		wantScores  []int
	}{
		{
			name:        "case insensitive keyword match",
			description: "OFFICE SUPPLIES - Stationery",
			amount:      "500",
			rules: []Rule{
				{RuleID: "OP-001", Keywords: []string{"office supplies", "stationery", "pens"}, Priority: 100, IsActive: true},
			},
			wantIDs:    []string{"OP-001"},
			wantScores: []int{200},
		},
		{
			name:        "inactive rules are ignored",
			description: "stationery",
			amount:      "1",
			rules: []Rule{
				{RuleID: "OFF", Keywords: []string{"stationery"}, Priority: 100, IsActive: false},
				{RuleID: "ON", Keywords: []string{"stationery"}, Priority: 10, IsActive: true},
			},
			wantIDs:    []string{"ON"},
			wantScores: []int{10},
		},
		{
			name:        "amount gate excludes rule entirely",
			description: "laptop",
			amount:      "2000000",
			rules: []Rule{
				{RuleID: "CAP", Keywords: []string{"laptop"}, Priority: 100, IsActive: true, AmountRanges: rng(0, 1000000)},
			},
			wantIDs: nil,
		},
		{
			name:        "rules without keyword hits score zero",
			description: "electricity bill",
			amount:      "100",
			rules: []Rule{
				{RuleID: "OP-001", Keywords: []string{"stationery"}, Priority: 100, IsActive: true},
				{RuleID: "OP-002", Keywords: []string{"electricity"}, Priority: 100, IsActive: true},
			},
			wantIDs:    []string{"OP-001", "OP-002"},
			wantScores: []int{0, 100},
		},
		{
			name:        "keywordless rule is a zero score candidate",
			description: "mystery",
			amount:      "100",
			rules: []Rule{
				{RuleID: "ANY", Priority: 5, IsActive: true},
			},
			wantIDs:    []string{"ANY"},
			wantScores: []int{0},
		},
		{
			name:        "evaluation order is priority descending",
			description: "general travel",
			amount:      "100",
			rules: []Rule{
				{RuleID: "LOW", Keywords: []string{"general"}, Priority: 50, IsActive: true},
				{RuleID: "HIGH", Keywords: []string{"travel"}, Priority: 100, IsActive: true},
			},
			wantIDs:    []string{"HIGH", "LOW"},
			wantScores: []int{100, 50},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.rules)
			matches := m.Match(tt.description, decimal.RequireFromString(tt.amount))

			var ids []string
			var scores []int
			for _, match := range matches {
				ids = append(ids, match.Rule.RuleID)
				scores = append(scores, match.Score)
			}
			assert.Equal(t, tt.wantIDs, ids)
			if tt.wantScores != nil {
				assert.Equal(t, tt.wantScores, scores)
			}
		})
	}
}

func TestMatcher_BestTieBreak(t *testing.T) {
	amount := decimal.NewFromInt(100)

	t.Run("equal scores resolve to first registered", func(t *testing.T) {
		m := NewMatcher([]Rule{
			{RuleID: "FIRST", Keywords: []string{"vendor"}, Priority: 100, IsActive: true},
			{RuleID: "SECOND", Keywords: []string{"supplier"}, Priority: 100, IsActive: true},
		})
		best, ok := m.Best("vendor supplier invoice", amount)
		require.True(t, ok)
		assert.Equal(t, "FIRST", best.Rule.RuleID)
	})

	t.Run("higher priority evaluated first wins ties", func(t *testing.T) {
		m := NewMatcher([]Rule{
			{RuleID: "P50", Keywords: []string{"a", "b"}, Priority: 50, IsActive: true},
			{RuleID: "P100", Keywords: []string{"a"}, Priority: 100, IsActive: true},
		})
		best, ok := m.Best("a b", amount)
		require.True(t, ok)
		assert.Equal(t, "P100", best.Rule.RuleID)
		assert.Equal(t, 100, best.Score)
	})

	t.Run("more matches beat higher priority", func(t *testing.T) {
		m := NewMatcher([]Rule{
			{RuleID: "ONE", Keywords: []string{"salary"}, Priority: 100, IsActive: true},
			{RuleID: "THREE", Keywords: []string{"salary", "bonus", "payroll"}, Priority: 50, IsActive: true},
		})
		best, ok := m.Best("salary bonus payroll run", amount)
		require.True(t, ok)
		assert.Equal(t, "THREE", best.Rule.RuleID)
		assert.Equal(t, 150, best.Score)
	})

	t.Run("catch all loses to any keyword hit", func(t *testing.T) {
		m := NewMatcher([]Rule{
			{RuleID: "CATCHALL", Priority: 200, IsActive: true},
			{RuleID: "HIT", Keywords: []string{"hotel"}, Priority: 1, IsActive: true},
		})
		best, ok := m.Best("hotel stay", amount)
		require.True(t, ok)
		assert.Equal(t, "HIT", best.Rule.RuleID)

		best, ok = m.Best("nothing relevant", amount)
		require.True(t, ok)
		assert.Equal(t, "CATCHALL", best.Rule.RuleID)
	})

	t.Run("zero score eligible rule wins without hits", func(t *testing.T) {
		m := NewMatcher([]Rule{
			{RuleID: "LOW", Keywords: []string{"x-ray"}, Priority: 1, IsActive: true},
			{RuleID: "HIGH", Keywords: []string{"scan"}, Priority: 90, IsActive: true},
		})
		best, ok := m.Best("nothing", amount)
		require.True(t, ok)
		assert.Equal(t, "HIGH", best.Rule.RuleID)
		assert.Equal(t, 0, best.Score)

		_, ok = m.BestHit("nothing", amount)
		assert.False(t, ok)
	})

	t.Run("no amount eligible rule", func(t *testing.T) {
		m := NewMatcher([]Rule{{RuleID: "X", Keywords: []string{"x-ray"}, Priority: 1, IsActive: true, AmountRanges: rng(0, 10)}})
		_, ok := m.Best("x-ray", amount)
		assert.False(t, ok)
	})
}

func TestMatcher_BestHit(t *testing.T) {
	m := NewMatcher([]Rule{
		{RuleID: "MISS", Keywords: []string{"coupon"}, Priority: 100, IsActive: true},
		{RuleID: "CATCHALL", Priority: 1, IsActive: true},
	})

	best, ok := m.BestHit("sundry receipts", decimal.NewFromInt(10))
	require.True(t, ok)
	assert.Equal(t, "CATCHALL", best.Rule.RuleID)

	best, ok = m.BestHit("coupon receipts", decimal.NewFromInt(10))
	require.True(t, ok)
	assert.Equal(t, "MISS", best.Rule.RuleID)
}

func TestMatcher_BestInCategory(t *testing.T) {
	m := NewMatcher([]Rule{
		{RuleID: "OP", Category: "Operating", Subcategory: "Travel", Keywords: []string{"travel"}, Priority: 100, IsActive: true},
		{RuleID: "VEN", Category: "Vendor", Subcategory: "Service Provider", Keywords: []string{"consultant", "travel"}, Priority: 100, IsActive: true},
	})

	best, ok := m.BestInCategory("consultant travel", decimal.NewFromInt(10), "vendor")
	require.True(t, ok)
	assert.Equal(t, "VEN", best.Rule.RuleID)

	_, ok = m.BestInCategory("consultant travel", decimal.NewFromInt(10), "Capital")
	assert.False(t, ok)

	_, ok = m.BestInCategory("stationery", decimal.NewFromInt(10), "Vendor")
	assert.False(t, ok, "zero score rules give no subcategory evidence")
}

func TestMatchGL(t *testing.T) {
	tests := []struct {
		pattern string
		account string
		want    bool
	}{
		{"6*", "610101", true},
		{"601*", "601000", true},
		{"601*", "602000", false},
		{"*", "123456", true},
		{"610101", "610101", true},
		{"610101", "610102", false},
		{"1*", "610101", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.account, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchGL(tt.pattern, tt.account))
		})
	}
}

func TestGLCategoryValidator(t *testing.T) {
	v := NewGLCategoryValidator(map[string][]string{
		"Operating": {"6*"},
		"Vendor":    {"6*", "2*"},
	})

	require.NoError(t, v.Validate("Operating", "610101"))
	require.NoError(t, v.Validate("vendor", "210000"))
	require.NoError(t, v.Validate("Personnel", "110000"))

	err := v.Validate("Operating", "120000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GL account 120000 does not match Operating patterns")
}
