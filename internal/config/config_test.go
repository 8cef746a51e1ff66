package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/engine"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, engine.ModePaymentVoucher, cfg.Processing.Mode)
	assert.Equal(t, "standard", cfg.Processing.Template)
	assert.Equal(t, OutputText, cfg.Processing.Output)
	assert.Equal(t, "USD", cfg.Processing.Currency)
	assert.Equal(t, RulesFromDefaults, cfg.Rules.Source)
	assert.False(t, cfg.LLM.Enabled)
	assert.Equal(t, 2, cfg.Workflow.MaxRejections)
	assert.True(t, cfg.Workflow.HighAmountThreshold.Equal(decimal.NewFromInt(500000)))
	assert.False(t, strings.HasPrefix(cfg.Database.Path, "~"), "database path is expanded")
}

func TestLoadFrom_YAML(t *testing.T) {
	doc := `
processing:
  mode: treasury_receipt
  template: executive
  output: Markdown
  currency: eur
rules:
  source: file
  file: /etc/voucher/rules.yaml
llm:
  enabled: true
  provider: gemini
  timeout: 3s
workflow:
  high_amount_threshold: "250000"
  max_rejections: 3
`
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(doc)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	assert.Equal(t, engine.ModeTreasury, cfg.Processing.Mode)
	assert.Equal(t, OutputMarkdown, cfg.Processing.Output)
	assert.Equal(t, "EUR", cfg.Processing.Currency)
	assert.Equal(t, "/etc/voucher/rules.yaml", cfg.Rules.File)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, 3*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, 3, cfg.Workflow.MaxRejections)
	assert.True(t, cfg.Workflow.HighAmountThreshold.Equal(decimal.NewFromInt(250000)))
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value any
	}{
		{"processing.mode", "ledger"},
		{"processing.template", "fancy"},
		{"processing.output", "pdf"},
		{"rules.source", "s3"},
		{"workflow.max_rejections", 0},
		{"workflow.high_amount_threshold", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v := viper.New()
			v.Set(tt.key, tt.value)
			_, err := LoadFrom(v)
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}

	v := viper.New()
	v.Set("llm.enabled", true)
	v.Set("llm.provider", "anthropic")
	_, err := LoadFrom(v)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("VOUCHER_TEST_DIR", "/srv/data")

	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"~", home},
		{"~/voucher.db", filepath.Join(home, "voucher.db")},
		{"$VOUCHER_TEST_DIR/voucher.db", "/srv/data/voucher.db"},
		{"/abs/path", "/abs/path"},
		{"~user/x", "~user/x"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}

func TestLoadSheetsConfig(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_CLIENT_ID", "env-id")
	t.Setenv("GOOGLE_SHEETS_CLIENT_SECRET", "env-secret")
	t.Setenv("GOOGLE_SHEETS_TOKEN_FILE", "")

	v := viper.New()
	v.Set("sheets.client_id", "file-id")
	v.Set("sheets.refresh_token", "refresh")
	v.Set("sheets.enable_formatting", false)

	sc := LoadSheetsConfig(v)
	assert.Equal(t, "file-id", sc.ClientID, "viper wins over environment")
	assert.Equal(t, "env-secret", sc.ClientSecret)
	assert.Equal(t, "Voucher Register", sc.SpreadsheetName)
	assert.False(t, sc.EnableFormatting)
	assert.Equal(t, ExpandPath(DefaultTokenFile), sc.TokenFile)
	require.NoError(t, sc.Validate())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)
	cfg.Reference.SpreadsheetID = "ref-id"
	assert.Equal(t, "ref-id", ReferenceSheetsConfig(v, cfg).SpreadsheetID)
}
