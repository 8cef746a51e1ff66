package storage

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/rules"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "voucher.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage(" ")
	assert.ErrorIs(t, err, ErrEmptyString)
}

func TestRuleSet_RoundTrip(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	empty, err := store.LoadRuleSet(ctx)
	require.NoError(t, err)
	assert.Len(t, empty.ClassificationRules, 8, "empty database yields defaults")

	set := rules.TreasuryRuleSet()
	require.NoError(t, store.SaveRuleSet(ctx, set))

	loaded, err := store.LoadRuleSet(ctx)
	require.NoError(t, err)

	var want, got bytes.Buffer
	require.NoError(t, rules.Encode(&want, set, rules.FormatJSON))
	require.NoError(t, rules.Encode(&got, loaded, rules.FormatJSON))
	assert.JSONEq(t, want.String(), got.String())

	// Saving again replaces rather than appends.
	loaded.ClassificationRules = loaded.ClassificationRules[:1]
	require.NoError(t, store.SaveRuleSet(ctx, loaded))
	again, err := store.LoadRuleSet(ctx)
	require.NoError(t, err)
	assert.Len(t, again.ClassificationRules, 1)

	assert.ErrorIs(t, store.SaveRuleSet(ctx, nil), ErrNilParameter)
}

func sampleVoucher(number, runID string, created time.Time, category string) *model.VoucherRecord {
	return &model.VoucherRecord{
		CreatedDate:   created,
		Amount:        decimal.RequireFromString("1250.75"),
		VoucherNumber: number,
		RunID:         runID,
		Account: model.AccountKey{
			Entity: "10", CostCenter: "200", GLAccount: "6010", BudgetGroup: "B1",
		},
		Descriptions: model.AccountDescriptions{
			Entity: "Treasury", CostCenter: "Operations", GLAccount: "Office Supplies", BudgetGroup: "Recurrent",
		},
		Status:  "Pending Approval",
		Content: "PAYMENT VOUCHER",
		Classification: model.VoucherClassification{
			Category:      category,
			Subcategory:   "Supplies",
			ApprovalLevel: model.ApprovalStandard,
		},
	}
}

func TestVouchers(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	require.NoError(t, store.SaveVoucher(ctx, sampleVoucher("PV-1", "run-a", base, model.CategoryOperating)))
	require.NoError(t, store.SaveVoucher(ctx, sampleVoucher("PV-2", "run-a", base.Add(time.Hour), model.CategoryCapital)))
	require.NoError(t, store.SaveVoucher(ctx, sampleVoucher("PV-3", "run-b", base.Add(48*time.Hour), model.CategoryOperating)))

	got, err := store.GetVoucher(ctx, "PV-1")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1250.75")))
	assert.Equal(t, base, got.CreatedDate)
	assert.Equal(t, "6010", got.Account.GLAccount)
	assert.Equal(t, "Office Supplies", got.Descriptions.GLAccount)
	assert.Equal(t, "Supplies", got.Classification.Subcategory)
	assert.Empty(t, got.WorkflowID)

	_, err = store.GetVoucher(ctx, "PV-404")
	assert.ErrorIs(t, err, common.ErrNotFound)

	// Upsert keeps the row but refreshes status.
	updated := sampleVoucher("PV-1", "run-a", base, model.CategoryOperating)
	updated.Status = "Approved"
	updated.WorkflowID = "WF-1"
	require.NoError(t, store.SaveVoucher(ctx, updated))
	got, err = store.GetVoucher(ctx, "PV-1")
	require.NoError(t, err)
	assert.Equal(t, "Approved", got.Status)
	assert.Equal(t, "WF-1", got.WorkflowID)

	since := base.Add(30 * time.Minute)
	tests := []struct {
		name   string
		filter service.VoucherFilter
		want   []string
	}{
		{"all newest first", service.VoucherFilter{}, []string{"PV-3", "PV-2", "PV-1"}},
		{"by run", service.VoucherFilter{RunID: "run-a"}, []string{"PV-2", "PV-1"}},
		{"by category", service.VoucherFilter{Category: model.CategoryOperating}, []string{"PV-3", "PV-1"}},
		{"since", service.VoucherFilter{Since: &since}, []string{"PV-3", "PV-2"}},
		{"limit", service.VoucherFilter{Limit: 1}, []string{"PV-3"}},
		{"no match", service.VoucherFilter{RunID: "run-z"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := store.ListVouchers(ctx, tt.filter)
			require.NoError(t, err)
			var numbers []string
			for _, v := range list {
				numbers = append(numbers, v.VoucherNumber)
			}
			assert.Equal(t, tt.want, numbers)
		})
	}
}

func TestSaveVoucher_Invalid(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveVoucher(ctx, nil), ErrNilParameter)
	v := sampleVoucher("", "run", time.Now(), model.CategoryOperating)
	assert.ErrorIs(t, store.SaveVoucher(ctx, v), ErrInvalidVoucher)
	v = sampleVoucher("PV-1", "run", time.Time{}, model.CategoryOperating)
	assert.ErrorIs(t, store.SaveVoucher(ctx, v), ErrInvalidVoucher)
}

func sampleWorkflow(id, voucher string, created time.Time) *model.ApprovalWorkflow {
	due := created.Add(48 * time.Hour)
	return &model.ApprovalWorkflow{
		CreatedDate:   created,
		Amount:        decimal.NewFromInt(25000),
		WorkflowID:    id,
		VoucherNumber: voucher,
		ApprovalLevel: model.ApprovalHigh,
		Status:        model.StatusPending,
		Steps: []model.ApprovalStep{
			{StepID: id + "-1", Role: "Department Head", Status: model.StatusPending, Required: true, DueDate: &due},
			{StepID: id + "-2", Role: "Finance Manager", Status: model.StatusPending, Required: true},
		},
	}
}

func TestWorkflows(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	wf := sampleWorkflow("WF-1", "PV-1", base)
	require.NoError(t, store.SaveWorkflow(ctx, wf))
	require.NoError(t, store.SaveWorkflow(ctx, sampleWorkflow("WF-2", "PV-2", base.Add(time.Minute))))

	got, err := store.GetWorkflow(ctx, "WF-1")
	require.NoError(t, err)
	require.Len(t, got.Steps, 2)
	assert.Equal(t, "Department Head", got.Steps[0].Role)
	require.NotNil(t, got.Steps[0].DueDate)
	assert.Equal(t, base.Add(48*time.Hour), *got.Steps[0].DueDate)
	assert.Nil(t, got.Steps[1].DueDate)
	assert.Nil(t, got.CompletedDate)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(25000)))

	// Progress the workflow and persist it again.
	acted := base.Add(2 * time.Hour)
	wf.Steps[0].Status = model.StatusApproved
	wf.Steps[0].ApproverName = "J. Mensah"
	wf.Steps[0].ActedAt = &acted
	wf.CurrentStep = 1
	require.NoError(t, store.SaveWorkflow(ctx, wf))

	got, err = store.GetWorkflowByVoucher(ctx, "PV-1")
	require.NoError(t, err)
	assert.Equal(t, "WF-1", got.WorkflowID)
	assert.Equal(t, 1, got.CurrentStep)
	require.Len(t, got.Steps, 2, "steps are replaced, not duplicated")
	assert.Equal(t, "J. Mensah", got.Steps[0].ApproverName)
	require.NotNil(t, got.Steps[0].ActedAt)
	assert.Equal(t, acted, *got.Steps[0].ActedAt)

	completed := base.Add(3 * time.Hour)
	wf.Status = model.StatusApproved
	wf.CompletedDate = &completed
	require.NoError(t, store.SaveWorkflow(ctx, wf))

	pending, err := store.ListWorkflows(ctx, model.StatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "WF-2", pending[0].WorkflowID)
	assert.Len(t, pending[0].Steps, 2)

	all, err := store.ListWorkflows(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "WF-1", all[0].WorkflowID)
	require.NotNil(t, all[0].CompletedDate)

	_, err = store.GetWorkflow(ctx, "WF-404")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.GetWorkflowByVoucher(ctx, "PV-404")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSaveWorkflow_Invalid(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.ApprovalWorkflow)
		name   string
	}{
		{func(wf *model.ApprovalWorkflow) { wf.WorkflowID = "" }, "missing id"},
		{func(wf *model.ApprovalWorkflow) { wf.VoucherNumber = "" }, "missing voucher"},
		{func(wf *model.ApprovalWorkflow) { wf.ApprovalLevel = "Urgent" }, "unknown level"},
		{func(wf *model.ApprovalWorkflow) { wf.Steps[1].StepID = "" }, "step without id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := sampleWorkflow("WF-1", "PV-1", time.Now())
			tt.mutate(wf)
			assert.ErrorIs(t, store.SaveWorkflow(ctx, wf), ErrInvalidWorkflow)
		})
	}
}
