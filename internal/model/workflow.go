package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the state of a workflow or one of its steps.
type ApprovalStatus string

// Approval statuses.
const (
	StatusPending   ApprovalStatus = "pending"
	StatusApproved  ApprovalStatus = "approved"
	StatusRejected  ApprovalStatus = "rejected"
	StatusCancelled ApprovalStatus = "cancelled"
	StatusEscalated ApprovalStatus = "escalated"
)

// ApprovalStep is one sign-off in a workflow.
type ApprovalStep struct {
	DueDate      *time.Time     `json:"due_date,omitempty"`
	ActedAt      *time.Time     `json:"acted_at,omitempty"`
	StepID       string         `json:"step_id"`
	Role         string         `json:"role"`
	ApproverName string         `json:"approver_name,omitempty"`
	Comments     string         `json:"comments,omitempty"`
	Status       ApprovalStatus `json:"status"`
	Required     bool           `json:"required"`
}

// ApprovalWorkflow is the ordered approval path attached to a voucher.
type ApprovalWorkflow struct {
	CreatedDate      time.Time       `json:"created_date"`
	CompletedDate    *time.Time      `json:"completed_date,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	WorkflowID       string          `json:"workflow_id"`
	VoucherNumber    string          `json:"voucher_number"`
	ApprovalLevel    ApprovalLevel   `json:"approval_level"`
	Status           ApprovalStatus  `json:"status"`
	EscalationReason string          `json:"escalation_reason,omitempty"`
	Steps            []ApprovalStep  `json:"steps"`
	CurrentStep      int             `json:"current_step"`
}

// VoucherRecord is a processed voucher as kept in the voucher register.
type VoucherRecord struct {
	CreatedDate    time.Time             `json:"created_date"`
	Amount         decimal.Decimal       `json:"amount"`
	VoucherNumber  string                `json:"voucher_number"`
	RunID          string                `json:"run_id"`
	Account        AccountKey            `json:"account"`
	Descriptions   AccountDescriptions   `json:"descriptions"`
	Status         string                `json:"status"`
	Content        string                `json:"content"`
	WorkflowID     string                `json:"workflow_id,omitempty"`
	Classification VoucherClassification `json:"classification"`
}
