package main

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
)

func TestRulesCommands_FileSource(t *testing.T) {
	env := newTestEnv(t, "").withRulesFile()

	res := env.run("", "rules", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "OP-001")
	assert.Contains(t, res.stdout, "APP-003")

	res = env.run("", "rules", "disable", "OP-001")
	require.NoError(t, res.err)
	_, err := os.Stat(env.path("rules.yaml"))
	require.NoError(t, err, "first change writes the rules file")

	res = env.run("", "rules", "list", "--kind", "classification")
	require.NoError(t, res.err)
	assert.NotContains(t, res.stdout, "OP-001")
	assert.NotContains(t, res.stdout, "APP-003")

	res = env.run("", "rules", "list", "--all", "--category", "operating")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "OP-001")
	assert.NotContains(t, res.stdout, "CAP-001")

	res = env.run("", "rules", "add", "--id", "CLN-001", "--category", "Operating",
		"--subcategory", "Cleaning", "--keywords", "cleaning,janitorial", "--gl-patterns", "6*",
		"--priority", "120", "--max-amount", "5,000")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Added CLN-001")

	res = env.run("", "rules", "show", "CLN-001")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "rule_id: CLN-001")
	assert.Contains(t, res.stdout, "- janitorial")

	res = env.run("", "rules", "test", "Janitorial services", "--amount", "800")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Operating / Cleaning")
	assert.Contains(t, res.stdout, "CLN-001")

	res = env.run("", "rules", "delete", "CLN-001", "--yes")
	require.NoError(t, res.err)

	res = env.run("", "rules", "validate")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Rule set is valid")

	f, err := os.Open(env.path("rules.yaml"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	saved, err := rules.Decode(f, rules.FormatYAML)
	require.NoError(t, err)
	assert.False(t, saved.ClassificationRules[0].IsActive)
	assert.Len(t, saved.ClassificationRules, len(rules.DefaultClassificationRules()))
}

func TestRulesCommands_ExportImportRoundTrip(t *testing.T) {
	env := newTestEnv(t, "").withRulesFile()
	exported := env.path("export.json")

	require.NoError(t, env.run("", "rules", "disable", "VEN-001").err)
	require.NoError(t, env.run("", "rules", "export", exported).err)

	res := env.run("", "rules", "delete", "VEN-001", "--yes")
	require.NoError(t, res.err)

	res = env.run("", "rules", "import", exported)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Imported 8 classification")

	res = env.run("", "rules", "export", "--format", "yaml")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "rule_id: VEN-001")
	assert.Contains(t, res.stdout, "is_active: false")
}

func TestRulesCommands_DefaultsAreReadOnly(t *testing.T) {
	env := newTestEnv(t, "")

	for _, args := range [][]string{
		{"rules", "disable", "OP-001"},
		{"rules", "delete", "OP-001", "--yes"},
		{"rules", "add", "--id", "X-1", "--category", "Operating"},
	} {
		res := env.run("", args...)
		assert.ErrorIs(t, res.err, errReadOnlyRules, args)
		assert.Equal(t, "set rules.source to file or database", common.HintFor(res.err), args)
	}

	res := env.run("", "rules", "list")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "(defaults)")
}

func TestRulesCommands_DeleteDeclined(t *testing.T) {
	env := newTestEnv(t, "").withRulesFile()

	res := env.run("n\n", "rules", "delete", "OP-002")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Nothing deleted")

	res = env.run("", "rules", "show", "OP-002")
	require.NoError(t, res.err)
}

func TestRulesCommands_Errors(t *testing.T) {
	env := newTestEnv(t, "").withRulesFile()

	tests := []struct {
		name string
		args []string
	}{
		{"show unknown", []string{"rules", "show", "NOPE"}},
		{"enable unknown", []string{"rules", "enable", "NOPE"}},
		{"duplicate add", []string{"rules", "add", "--id", "OP-001", "--category", "Operating"}},
		{"add without category", []string{"rules", "add", "--id", "X-1"}},
		{"bad amount", []string{"rules", "test", "paper", "--amount", "lots"}},
		{"import missing file", []string{"rules", "import", env.path("missing.json")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, env.run("", tt.args...).err)
		})
	}
}

func TestAddRules_FromFile(t *testing.T) {
	doc := `classification_rules:
  - rule_id: FUEL-001
    name: Fuel
    category: Operating
    subcategory: Fuel
    keywords: [fuel, diesel]
    gl_account_patterns: ["6*"]
    priority: 90
    is_active: true
approval_rules:
  - rule_id: APP-FUEL
    approval_level: High
    conditions:
      categories: [Operating]
      min_amount: "5000"
    is_active: true
`
	path := t.TempDir() + "/extra.yaml"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	manager := rules.NewManager(rules.DefaultRuleSet(), nil)
	added, err := addRules(manager, addRuleOptions{file: path})
	require.NoError(t, err)
	assert.Equal(t, []string{"FUEL-001", "APP-FUEL"}, added)

	rule, err := manager.Get("APP-FUEL")
	require.NoError(t, err)
	assert.Equal(t, model.KindApproval, rule.Kind())
}

func TestAmountRange(t *testing.T) {
	tests := []struct {
		name    string
		min     string
		max     string
		wantMin string
		wantMax string
		wantErr bool
	}{
		{name: "both bounds", min: "100", max: "1,000.50", wantMin: "100", wantMax: "1000.5"},
		{name: "open max", min: "250", wantMin: "250", wantMax: "999999999999"},
		{name: "open min", max: "10", wantMin: "0", wantMax: "10"},
		{name: "invalid", min: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := amountRange(tt.min, tt.max)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, rng.Min.Equal(decimal.RequireFromString(tt.wantMin)), rng.Min.String())
			assert.True(t, rng.Max.Equal(decimal.RequireFromString(tt.wantMax)), rng.Max.String())
		})
	}
}

func TestExportFormat(t *testing.T) {
	assert.Equal(t, rules.FormatYAML, exportFormat("yml", "out.json"))
	assert.Equal(t, rules.FormatJSON, exportFormat("JSON", "out.yaml"))
	assert.Equal(t, rules.FormatYAML, exportFormat("", "out.yaml"))
	assert.Equal(t, rules.FormatJSON, exportFormat("", ""))
}
