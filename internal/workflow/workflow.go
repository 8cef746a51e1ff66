// Package workflow steps payment vouchers through their approval path.
package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/shopspring/decimal"
)

// Workflow errors.
var (
	ErrStepNotFound   = errors.New("approval step not found")
	ErrStepNotPending = errors.New("approval step is not pending")
	ErrWorkflowClosed = errors.New("approval workflow is closed")
)

// Role names used by the workflow templates.
const (
	RoleDepartmentHead   = "Department Head"
	RoleFinanceDirector  = "Finance Director"
	RoleExecutive        = "Executive"
	RoleFinanceProcessor = "Finance Processor"
)

// StepTemplate describes one step to create.
type StepTemplate struct {
	StepID       string
	Role         string
	TimeoutHours int
	Required     bool
}

var (
	deptHead          = StepTemplate{StepID: "dept_head", Role: RoleDepartmentHead, TimeoutHours: 24, Required: true}
	financeDirector   = StepTemplate{StepID: "finance_director", Role: RoleFinanceDirector, TimeoutHours: 48, Required: true}
	executive         = StepTemplate{StepID: "executive", Role: RoleExecutive, TimeoutHours: 72, Required: true}
	financeProcessing = StepTemplate{StepID: "finance_processing", Role: RoleFinanceProcessor, TimeoutHours: 48, Required: true}
)

// Templates returns the step sequence for each approval level.
func Templates() map[model.ApprovalLevel][]StepTemplate {
	return map[model.ApprovalLevel][]StepTemplate{
		model.ApprovalStandard:  {deptHead, financeProcessing},
		model.ApprovalHigh:      {deptHead, financeDirector, financeProcessing},
		model.ApprovalExecutive: {deptHead, financeDirector, executive, financeProcessing},
	}
}

// Config holds escalation thresholds.
type Config struct {
	HighAmountThreshold decimal.Decimal
	MaxRejections       int
	OverallTimeoutHours int
}

// DefaultConfig returns the default escalation thresholds.
func DefaultConfig() Config {
	return Config{
		HighAmountThreshold: decimal.NewFromInt(500000),
		MaxRejections:       2,
		OverallTimeoutHours: 72,
	}
}

// Manager creates and advances approval workflows.
type Manager struct {
	templates map[model.ApprovalLevel][]StepTemplate
	logger    *slog.Logger
	now       func() time.Time
	config    Config
}

// NewManager creates a manager. A nil clock uses time.Now.
func NewManager(config Config, now func() time.Time, logger *slog.Logger) *Manager {
	defaults := DefaultConfig()
	if config.HighAmountThreshold.IsZero() {
		config.HighAmountThreshold = defaults.HighAmountThreshold
	}
	if config.MaxRejections <= 0 {
		config.MaxRejections = defaults.MaxRejections
	}
	if config.OverallTimeoutHours <= 0 {
		config.OverallTimeoutHours = defaults.OverallTimeoutHours
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		templates: Templates(),
		logger:    logger,
		now:       now,
		config:    config,
	}
}

// Create builds a pending workflow for a voucher.
func (m *Manager) Create(voucherNumber string, level model.ApprovalLevel, amount decimal.Decimal) (*model.ApprovalWorkflow, error) {
	template, ok := m.templates[level]
	if !ok {
		return nil, fmt.Errorf("no workflow template for approval level %q", level)
	}

	now := m.now()
	steps := make([]model.ApprovalStep, 0, len(template)+1)
	hasExecutive := false
	for _, tmpl := range template {
		steps = append(steps, newStep(tmpl, now, ""))
		if tmpl.Role == RoleExecutive {
			hasExecutive = true
		}
	}

	if amount.Abs().GreaterThanOrEqual(m.config.HighAmountThreshold) && !hasExecutive {
		escalation := StepTemplate{StepID: "executive_escalation", Role: RoleExecutive, TimeoutHours: 72, Required: true}
		steps = append(steps, newStep(escalation, now, "Escalated due to high amount"))
	}

	wf := &model.ApprovalWorkflow{
		WorkflowID:    fmt.Sprintf("WF-%s-%s", voucherNumber, now.Format("20060102150405")),
		VoucherNumber: voucherNumber,
		Amount:        amount,
		ApprovalLevel: level,
		Status:        model.StatusPending,
		Steps:         steps,
		CreatedDate:   now,
	}

	m.logger.Info("Created approval workflow",
		"workflow_id", wf.WorkflowID,
		"voucher", voucherNumber,
		"steps", len(steps))
	return wf, nil
}

func newStep(tmpl StepTemplate, now time.Time, comments string) model.ApprovalStep {
	due := now.Add(time.Duration(tmpl.TimeoutHours) * time.Hour)
	return model.ApprovalStep{
		StepID:   tmpl.StepID,
		Role:     tmpl.Role,
		Status:   model.StatusPending,
		Comments: comments,
		DueDate:  &due,
		Required: tmpl.Required,
	}
}

// Approve signs off a pending step and moves the cursor to the next pending
// step. Approving the last step approves the workflow.
func (m *Manager) Approve(wf *model.ApprovalWorkflow, stepID, approver, comments string) error {
	if wf.Status != model.StatusPending && wf.Status != model.StatusEscalated {
		return fmt.Errorf("%w: %s is %s", ErrWorkflowClosed, wf.WorkflowID, wf.Status)
	}

	step, err := pendingStep(wf, stepID)
	if err != nil {
		return err
	}

	now := m.now()
	step.Status = model.StatusApproved
	step.ApproverName = approver
	step.Comments = comments
	step.ActedAt = &now

	wf.CurrentStep = nextPending(wf)
	if wf.CurrentStep >= len(wf.Steps) {
		wf.Status = model.StatusApproved
		wf.CompletedDate = &now
		m.logger.Info("Workflow completed", "workflow_id", wf.WorkflowID)
		return nil
	}

	m.logger.Info("Workflow advanced", "workflow_id", wf.WorkflowID, "current_step", wf.CurrentStep)
	return nil
}

// Reject declines a pending step. The workflow becomes rejected, or
// escalated once the rejection count reaches the configured maximum.
func (m *Manager) Reject(wf *model.ApprovalWorkflow, stepID, approver, comments string) error {
	if wf.Status == model.StatusApproved || wf.Status == model.StatusCancelled {
		return fmt.Errorf("%w: %s is %s", ErrWorkflowClosed, wf.WorkflowID, wf.Status)
	}

	step, err := pendingStep(wf, stepID)
	if err != nil {
		return err
	}

	now := m.now()
	step.Status = model.StatusRejected
	step.ApproverName = approver
	step.Comments = comments
	step.ActedAt = &now

	rejections := 0
	for _, s := range wf.Steps {
		if s.Status == model.StatusRejected {
			rejections++
		}
	}

	if rejections >= m.config.MaxRejections {
		wf.Status = model.StatusEscalated
		wf.EscalationReason = fmt.Sprintf("Escalated after %d rejections", rejections)
		wf.CompletedDate = nil
		m.logger.Warn("Workflow escalated due to rejections", "workflow_id", wf.WorkflowID, "rejections", rejections)
		return nil
	}

	wf.Status = model.StatusRejected
	wf.CompletedDate = &now
	m.logger.Info("Workflow rejected", "workflow_id", wf.WorkflowID, "step", stepID)
	return nil
}

// Cancel closes an open workflow and cancels its pending steps.
func (m *Manager) Cancel(wf *model.ApprovalWorkflow, reason string) error {
	if wf.Status == model.StatusApproved || wf.Status == model.StatusCancelled {
		return fmt.Errorf("%w: %s is %s", ErrWorkflowClosed, wf.WorkflowID, wf.Status)
	}

	now := m.now()
	for i := range wf.Steps {
		if wf.Steps[i].Status == model.StatusPending {
			wf.Steps[i].Status = model.StatusCancelled
			wf.Steps[i].Comments = reason
		}
	}
	wf.Status = model.StatusCancelled
	wf.CompletedDate = &now
	m.logger.Info("Workflow cancelled", "workflow_id", wf.WorkflowID, "reason", reason)
	return nil
}

// CheckTimeouts reports overdue pending steps. A pending workflow older than
// the overall timeout is escalated.
func (m *Manager) CheckTimeouts(wf *model.ApprovalWorkflow) []string {
	now := m.now()

	var timeouts []string
	for _, s := range wf.Steps {
		if s.Status == model.StatusPending && s.DueDate != nil && now.After(*s.DueDate) {
			timeouts = append(timeouts, fmt.Sprintf("Step %s (%s) timed out", s.StepID, s.Role))
		}
	}

	overall := time.Duration(m.config.OverallTimeoutHours) * time.Hour
	if wf.Status == model.StatusPending && now.Sub(wf.CreatedDate) > overall {
		timeouts = append(timeouts, "Workflow overall timeout - escalation required")
		wf.Status = model.StatusEscalated
		wf.EscalationReason = "Workflow timeout"
		m.logger.Warn("Workflow escalated due to timeout", "workflow_id", wf.WorkflowID)
	}

	return timeouts
}

// Summary is a compact view of a workflow's progress.
type Summary struct {
	CreatedDate      time.Time            `json:"created_date"`
	CompletedDate    *time.Time           `json:"completed_date,omitempty"`
	WorkflowID       string               `json:"workflow_id"`
	VoucherNumber    string               `json:"voucher_number"`
	Status           model.ApprovalStatus `json:"status"`
	Progress         string               `json:"progress"`
	EscalationReason string               `json:"escalation_reason,omitempty"`
	NextApprover     string               `json:"next_approver,omitempty"`
	Pending          int                  `json:"pending_steps"`
	Completed        int                  `json:"completed_steps"`
	Rejected         int                  `json:"rejected_steps"`
}

// Status summarizes wf.
func Status(wf *model.ApprovalWorkflow) Summary {
	s := Summary{
		WorkflowID:       wf.WorkflowID,
		VoucherNumber:    wf.VoucherNumber,
		Status:           wf.Status,
		EscalationReason: wf.EscalationReason,
		CreatedDate:      wf.CreatedDate,
		CompletedDate:    wf.CompletedDate,
		NextApprover:     NextApprover(wf),
	}
	for _, step := range wf.Steps {
		switch step.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusApproved:
			s.Completed++
		case model.StatusRejected:
			s.Rejected++
		}
	}
	s.Progress = fmt.Sprintf("%d/%d", s.Completed, len(wf.Steps))
	return s
}

// NextApprover returns the role of the current pending step, or "".
func NextApprover(wf *model.ApprovalWorkflow) string {
	if wf.CurrentStep < len(wf.Steps) && wf.Steps[wf.CurrentStep].Status == model.StatusPending {
		return wf.Steps[wf.CurrentStep].Role
	}
	return ""
}

func pendingStep(wf *model.ApprovalWorkflow, stepID string) (*model.ApprovalStep, error) {
	for i := range wf.Steps {
		if wf.Steps[i].StepID != stepID {
			continue
		}
		if wf.Steps[i].Status != model.StatusPending {
			return nil, fmt.Errorf("%w: %s is %s", ErrStepNotPending, stepID, wf.Steps[i].Status)
		}
		return &wf.Steps[i], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
}

// nextPending returns the index of the first pending step, or len(steps)
// when none remain.
func nextPending(wf *model.ApprovalWorkflow) int {
	for i := range wf.Steps {
		if wf.Steps[i].Status == model.StatusPending {
			return i
		}
	}
	return len(wf.Steps)
}
