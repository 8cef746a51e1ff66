package rules

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRuleSet_Valid(t *testing.T) {
	set := DefaultRuleSet()
	require.NoError(t, set.Validate())
	assert.Len(t, set.ClassificationRules, 8)
	assert.Len(t, set.ApprovalRules, 5)
	assert.Len(t, set.ValidationRules, 4)
	assert.Equal(t, "PV", set.GlobalSettings.VoucherNumberPrefix)

	require.NoError(t, TreasuryRuleSet().Validate())
}

func TestManager_ClassificationRules(t *testing.T) {
	m := NewManager(DefaultRuleSet(), nil)

	all := m.ClassificationRules("")
	require.NotEmpty(t, all)
	assert.Equal(t, "OP-001", all[0].RuleID)
	assert.Equal(t, "ADM-001", all[len(all)-1].RuleID, "lower priority sorts last")

	capital := m.ClassificationRules(model.CategoryCapital)
	require.Len(t, capital, 2)
	assert.Equal(t, "CAP-001", capital[0].RuleID)
}

func TestManager_ApprovalRuleFor(t *testing.T) {
	m := NewManager(DefaultRuleSet(), nil)

	tests := []struct {
		name     string
		amount   int64
		category string
		wantID   string
		wantOK   bool
	}{
		{"small operating", 500, model.CategoryOperating, "APP-001", true},
		{"boundary max inclusive", 10000, model.CategoryAdministrative, "APP-001", true},
		{"mid range any category", 20000, model.CategoryPersonnel, "APP-002", true},
		{"executive", 150000, model.CategoryOperating, "APP-003", true},
		{"small capital has no rule", 1000, model.CategoryCapital, "", false},
		{"capital above 100k hits executive first", 200000, model.CategoryCapital, "APP-003", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, ok := m.ApprovalRuleFor(decimal.NewFromInt(tt.amount), tt.category)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, rule.RuleID)
		})
	}
}

func TestManager_AddRemoveToggle(t *testing.T) {
	m := NewManager(DefaultRuleSet(), nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return fixed })

	rule := &model.ClassificationRule{
		RuleID:            "CUS-001",
		Category:          model.CategoryOperating,
		Subcategory:       "Cleaning",
		Keywords:          []string{"cleaning"},
		GLAccountPatterns: []string{"6*"},
		Priority:          80,
		IsActive:          true,
	}
	require.NoError(t, m.Add(rule))
	assert.ErrorIs(t, m.Add(rule), common.ErrDuplicateEntry)

	got, err := m.Get("CUS-001")
	require.NoError(t, err)
	assert.Equal(t, model.KindClassification, got.Kind())
	assert.Equal(t, fixed, got.(*model.ClassificationRule).CreatedDate)

	require.NoError(t, m.Disable("APP-001"))
	_, ok := m.ApprovalRuleFor(decimal.NewFromInt(10), model.CategoryOperating)
	assert.False(t, ok)
	require.NoError(t, m.Enable("APP-001"))
	_, ok = m.ApprovalRuleFor(decimal.NewFromInt(10), model.CategoryOperating)
	assert.True(t, ok)

	require.NoError(t, m.UpdateClassificationRule("CUS-001", func(r *model.ClassificationRule) {
		r.Priority = 120
	}))
	assert.Equal(t, "CUS-001", m.ClassificationRules("")[0].RuleID)

	err = m.UpdateClassificationRule("CUS-001", func(r *model.ClassificationRule) {
		r.Priority = -1
	})
	assert.ErrorIs(t, err, model.ErrInvalidRule)

	require.NoError(t, m.Remove("VAL-003"))
	assert.Len(t, m.ValidationRules(""), 3)
	assert.ErrorIs(t, m.Remove("VAL-003"), common.ErrNotFound)
	assert.ErrorIs(t, m.Enable("NOPE"), common.ErrNotFound)
}

func TestManager_Validate(t *testing.T) {
	set := DefaultRuleSet()
	set.ClassificationRules = append(set.ClassificationRules,
		model.ClassificationRule{RuleID: "OP-001", Category: model.CategoryOperating, Keywords: []string{"x"}, GLAccountPatterns: []string{"6*"}},
		model.ClassificationRule{RuleID: "BARE-001", Category: model.CategoryOperating},
	)

	issues := NewManager(set, nil).Validate()
	assert.Contains(t, issues, "Duplicate classification rule IDs found")
	assert.Contains(t, issues, "Classification rule BARE-001 has no keywords")
	assert.Contains(t, issues, "Classification rule BARE-001 has no GL account patterns")

	assert.Empty(t, NewManager(DefaultRuleSet(), nil).Validate())
}

func TestCodec_RoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var first bytes.Buffer
			require.NoError(t, Encode(&first, DefaultRuleSet(), format))

			decoded, err := Decode(bytes.NewReader(first.Bytes()), format)
			require.NoError(t, err)

			var second bytes.Buffer
			require.NoError(t, Encode(&second, decoded, format))
			assert.Equal(t, first.String(), second.String())

			require.Len(t, decoded.ClassificationRules, 8)
			assert.Equal(t, "OP-001", decoded.ClassificationRules[0].RuleID)
			assert.Equal(t, []string{"6*", "601*", "602*"}, decoded.ClassificationRules[0].GLAccountPatterns)
			assert.True(t, decoded.ApprovalRules[0].Conditions.MaxAmount.Equal(decimal.NewFromInt(10000)))
			assert.Equal(t, []string{"6*", "2*"}, decoded.ValidationRules[1].Conditions.CategoryPatterns[model.CategoryVendor])
		})
	}
}

func TestDecode_RejectsInvalid(t *testing.T) {
	doc := `{"version":"1.0.0","classification_rules":[{"rule_id":"X","category":"Operating","gl_account_patterns":["6*1"]}]}`
	_, err := Decode(strings.NewReader(doc), FormatJSON)
	assert.ErrorIs(t, err, model.ErrInvalidRule)

	_, err = Decode(strings.NewReader(`{"bogus": true}`), FormatJSON)
	assert.Error(t, err)
}

func TestFormatForPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatForPath("rules.YAML"))
	assert.Equal(t, FormatYAML, FormatForPath("/tmp/rules.yml"))
	assert.Equal(t, FormatJSON, FormatForPath("rules.json"))
	assert.Equal(t, FormatJSON, FormatForPath("rules"))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	for _, name := range []string{"rules.json", "rules.yaml"} {
		t.Run(name, func(t *testing.T) {
			store := NewFileStore(filepath.Join(t.TempDir(), "nested", name))

			set, err := store.LoadRuleSet(ctx)
			require.NoError(t, err)
			assert.Len(t, set.ClassificationRules, 8, "missing file falls back to defaults")

			set.ClassificationRules = set.ClassificationRules[:2]
			require.NoError(t, store.SaveRuleSet(ctx, set))

			loaded, err := store.LoadRuleSet(ctx)
			require.NoError(t, err)
			require.Len(t, loaded.ClassificationRules, 2)
			assert.Equal(t, "OP-002", loaded.ClassificationRules[1].RuleID)
		})
	}
}
