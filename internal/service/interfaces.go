// Package service defines the interfaces shared between application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// RuleStore loads and saves the complete business rule configuration.
type RuleStore interface {
	LoadRuleSet(ctx context.Context) (*model.RuleSet, error)
	SaveRuleSet(ctx context.Context, set *model.RuleSet) error
}

// VoucherStore keeps processed vouchers.
type VoucherStore interface {
	SaveVoucher(ctx context.Context, voucher *model.VoucherRecord) error
	GetVoucher(ctx context.Context, voucherNumber string) (*model.VoucherRecord, error)
	ListVouchers(ctx context.Context, filter VoucherFilter) ([]model.VoucherRecord, error)
}

// WorkflowStore keeps approval workflows and their steps.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, wf *model.ApprovalWorkflow) error
	GetWorkflow(ctx context.Context, workflowID string) (*model.ApprovalWorkflow, error)
	GetWorkflowByVoucher(ctx context.Context, voucherNumber string) (*model.ApprovalWorkflow, error)
	ListWorkflows(ctx context.Context, status model.ApprovalStatus) ([]model.ApprovalWorkflow, error)
}

// Storage is the full persistence contract.
type Storage interface {
	RuleStore
	VoucherStore
	WorkflowStore
	Migrate(ctx context.Context) error
	Close() error
}

// VoucherFilter narrows voucher register queries.
type VoucherFilter struct {
	Since    *time.Time
	RunID    string
	Category string
	Limit    int
}

// OracleQuery is a request to the remote classification oracle.
type OracleQuery struct {
	Description string
	Amount      decimal.Decimal
	Vocabulary  []string
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
