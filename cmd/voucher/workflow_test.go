package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/storage"
	"github.com/Veraticus/treasury-vouchers/internal/testutil"
	"github.com/Veraticus/treasury-vouchers/internal/voucher"
	"github.com/Veraticus/treasury-vouchers/internal/workflow"
)

var created = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)

// seedWorkflow stores a high-level voucher and its workflow.
func seedWorkflow(t *testing.T, db *storage.SQLiteStorage, number string) *model.ApprovalWorkflow {
	t.Helper()
	ctx := context.Background()

	manager := workflow.NewManager(workflow.DefaultConfig(), func() time.Time { return created }, nil)
	wf, err := manager.Create(number, model.ApprovalHigh, decimal.NewFromInt(25000))
	require.NoError(t, err)

	require.NoError(t, db.SaveVoucher(ctx, &model.VoucherRecord{
		VoucherNumber: number,
		RunID:         "run-1",
		CreatedDate:   created,
		Amount:        decimal.NewFromInt(25000),
		Status:        voucher.StatusPendingApproval,
		WorkflowID:    wf.WorkflowID,
		Classification: model.VoucherClassification{
			Category:      model.CategoryVendor,
			ApprovalLevel: model.ApprovalHigh,
		},
	}))
	require.NoError(t, db.SaveWorkflow(ctx, wf))
	return wf
}

func TestDecide(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t).Storage
	wf := seedWorkflow(t, db, "PV-20240304090000-001")
	manager := workflow.NewManager(workflow.DefaultConfig(), func() time.Time { return created.Add(time.Hour) }, nil)

	got, err := decide(ctx, db, manager, "approve", wf.VoucherNumber, decisionOptions{approver: "Dana"})
	require.NoError(t, err)
	assert.Equal(t, "dept_head", got.Steps[0].StepID)
	assert.Equal(t, model.StatusApproved, got.Steps[0].Status)
	assert.Equal(t, 1, got.CurrentStep)

	_, err = decide(ctx, db, manager, "approve", wf.WorkflowID, decisionOptions{approver: "Dana", step: "dept_head"})
	assert.ErrorIs(t, err, workflow.ErrStepNotPending)

	_, err = decide(ctx, db, manager, "reject", wf.WorkflowID, decisionOptions{approver: "Eli"})
	require.NoError(t, err)

	got, err = decide(ctx, db, manager, "reject", wf.WorkflowID, decisionOptions{approver: "Eli", step: "finance_processing"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, got.Status)
	assert.Equal(t, "Escalated after 2 rejections", got.EscalationReason)

	stored, err := db.GetWorkflow(ctx, wf.WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusEscalated, stored.Status)

	record, err := db.GetVoucher(ctx, wf.VoucherNumber)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusEscalated, record.Status)
}

func TestDecide_ApproveAll(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t).Storage
	wf := seedWorkflow(t, db, "PV-20240304090000-002")
	manager := workflow.NewManager(workflow.DefaultConfig(), nil, nil)

	var got *model.ApprovalWorkflow
	for range wf.Steps {
		var err error
		got, err = decide(ctx, db, manager, "approve", wf.VoucherNumber, decisionOptions{approver: "Dana"})
		require.NoError(t, err)
	}
	assert.Equal(t, model.StatusApproved, got.Status)
	require.NotNil(t, got.CompletedDate)

	_, err := decide(ctx, db, manager, "approve", wf.VoucherNumber, decisionOptions{approver: "Dana"})
	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))

	record, err := db.GetVoucher(ctx, wf.VoucherNumber)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusApproved, record.Status)
}

func TestFindWorkflow_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t).Storage

	for _, ref := range []string{"WF-missing", "PV-missing"} {
		_, err := findWorkflow(context.Background(), db, ref)
		assert.ErrorIs(t, err, common.ErrNotFound, ref)
	}
}

func TestCheckTimeouts(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t).Storage
	wf := seedWorkflow(t, db, "PV-20240304090000-003")

	tests := []struct {
		name       string
		after      time.Duration
		wantLines  int
		wantStatus model.ApprovalStatus
	}{
		{"within deadlines", time.Hour, 0, model.StatusPending},
		{"first step overdue", 30 * time.Hour, 1, model.StatusPending},
		{"overall timeout escalates", 80 * time.Hour, 4, model.StatusEscalated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := created.Add(tt.after)
			manager := workflow.NewManager(workflow.DefaultConfig(), func() time.Time { return now }, nil)

			report, err := checkTimeouts(ctx, db, manager)
			require.NoError(t, err)
			assert.Len(t, report, tt.wantLines, report)

			stored, err := db.GetWorkflow(ctx, wf.WorkflowID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.Status)
		})
	}

	record, err := db.GetVoucher(ctx, wf.VoucherNumber)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusEscalated, record.Status)
}
