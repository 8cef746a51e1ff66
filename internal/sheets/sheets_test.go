package sheets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
)

type fakeAPI struct {
	getErr    error
	sheets    map[string][][]any
	updates   map[string][][]any
	titles    []string
	cleared   []string
	created   []string
	bolded    []string
	failCalls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sheets: map[string][][]any{}, updates: map[string][][]any{}}
}

func (f *fakeAPI) SheetTitles(context.Context, string) ([]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.titles, nil
}

func (f *fakeAPI) Values(_ context.Context, _ string, rng string) ([][]any, error) {
	if f.failCalls > 0 {
		f.failCalls--
		return nil, errors.New("backend error")
	}
	return f.sheets[rng], nil
}

func (f *fakeAPI) Clear(_ context.Context, _ string, rng string) error {
	f.cleared = append(f.cleared, rng)
	return nil
}

func (f *fakeAPI) Update(_ context.Context, _ string, rng string, values [][]any) error {
	f.updates[rng] = values
	return nil
}

func (f *fakeAPI) Create(_ context.Context, title, _ string, tabs []string) (string, string, error) {
	f.created = append(f.created, title)
	f.titles = tabs
	return "new-sheet", "https://example.invalid/new-sheet", nil
}

func (f *fakeAPI) BoldHeader(_ context.Context, _ string, tab string) error {
	f.bolded = append(f.bolded, tab)
	return nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ServiceAccountPath = "/tmp/key.json"
	cfg.SpreadsheetID = "ref-sheet"
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr bool
	}{
		{func(*Config) {}, "service account", false},
		{func(c *Config) {
			c.ServiceAccountPath = ""
			c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "refresh"
		}, "oauth refresh token", false},
		{func(c *Config) {
			c.ServiceAccountPath = ""
			c.ClientID, c.ClientSecret, c.TokenFile = "id", "secret", "/tmp/token.json"
		}, "oauth token file", false},
		{func(c *Config) { c.ServiceAccountPath = "" }, "no auth", true},
		{func(c *Config) { c.ClientID, c.ClientSecret, c.RefreshToken = "id", "secret", "refresh" }, "both auth", true},
		{func(c *Config) { c.RetryAttempts = -1 }, "negative retries", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestReader_Workbook(t *testing.T) {
	api := newFakeAPI()
	api.titles = []string{"Entity", "GL Account"}
	api.sheets["'Entity'"] = [][]any{{"Code", "Description"}, {float64(10), "Treasury"}, {"20", "Customs"}}
	api.sheets["'GL Account'"] = [][]any{{"Code", "Description"}, {"6010", "Office Supplies"}, {nil}}
	api.failCalls = 1

	wb, err := newReader(api, testConfig(), nil).Workbook(context.Background())
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)
	assert.Equal(t, "Entity", wb.Sheets[0].Name)
	assert.Equal(t, []string{"10", "Treasury"}, wb.Sheets[0].Rows[1])
	assert.Equal(t, []string{""}, wb.Sheets[1].Rows[2])
}

func TestReader_Unavailable(t *testing.T) {
	api := newFakeAPI()
	api.getErr = &common.RetryableError{Err: errors.New("forbidden"), Retryable: false}

	_, err := newReader(api, testConfig(), nil).Workbook(context.Background())
	assert.ErrorIs(t, err, common.ErrReferenceUnavailable)
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "6010", cellString(float64(6010)))
	assert.Equal(t, "12.5", cellString(12.5))
	assert.Equal(t, "true", cellString(true))
	assert.Equal(t, "", cellString(nil))
}

func sampleRecords() []model.VoucherRecord {
	return []model.VoucherRecord{
		{
			CreatedDate:   time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC),
			Amount:        decimal.RequireFromString("1200.5"),
			VoucherNumber: "PV-20240115093000-001",
			RunID:         "run-1",
			Status:        "Pending Approval",
			WorkflowID:    "WF-1",
			Classification: model.VoucherClassification{
				Category:      model.CategoryOperating,
				Subcategory:   "Supplies",
				ApprovalLevel: model.ApprovalStandard,
			},
		},
	}
}

func TestWriter_ExistingSpreadsheet(t *testing.T) {
	api := newFakeAPI()
	api.titles = []string{"Summary", RegisterTab}

	id, err := newWriter(api, testConfig(), nil).Write(context.Background(), sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, "ref-sheet", id)
	assert.Equal(t, []string{"'Vouchers'"}, api.cleared)
	assert.Equal(t, []string{RegisterTab}, api.bolded)

	values := api.updates["'Vouchers'!A1"]
	require.Len(t, values, 2)
	assert.Equal(t, "Voucher Number", values[0][0])
	assert.Equal(t, "Workflow ID", values[0][8])
	assert.Equal(t, []any{
		"PV-20240115093000-001", "1200.50", "Operating", "Supplies", "Standard",
		"Pending Approval", "2024-01-15", "run-1", "WF-1",
	}, values[1])
}

func TestWriter_CreatesSpreadsheet(t *testing.T) {
	api := newFakeAPI()
	cfg := testConfig()
	cfg.SpreadsheetID = ""
	cfg.EnableFormatting = false

	id, err := newWriter(api, cfg, nil).Write(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "new-sheet", id)
	assert.Equal(t, []string{DefaultSpreadsheetName}, api.created)
	assert.Empty(t, api.bolded)
	assert.Len(t, api.updates["'Vouchers'!A1"], 1, "header only")
}

func TestWriter_MissingRegisterTab(t *testing.T) {
	api := newFakeAPI()
	api.titles = []string{"Summary"}

	_, err := newWriter(api, testConfig(), nil).Write(context.Background(), sampleRecords())
	assert.Error(t, err)
}

func TestTokenFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	_, err := LoadToken(path)
	require.Error(t, err)

	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer"}
	require.NoError(t, SaveToken(path, token))

	loaded, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "refresh", loaded.RefreshToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
