package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// SaveWorkflow inserts or replaces a workflow and all of its steps.
func (s *SQLiteStorage) SaveWorkflow(ctx context.Context, wf *model.ApprovalWorkflow) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateWorkflow(wf); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO workflows (
				workflow_id, voucher_number, approval_level, status, amount,
				current_step, escalation_reason, created_date, completed_date
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(workflow_id) DO UPDATE SET
				status = excluded.status,
				current_step = excluded.current_step,
				escalation_reason = excluded.escalation_reason,
				completed_date = excluded.completed_date`,
			wf.WorkflowID, wf.VoucherNumber, string(wf.ApprovalLevel), string(wf.Status), wf.Amount.String(),
			wf.CurrentStep, wf.EscalationReason, formatTime(wf.CreatedDate), formatTimePtr(wf.CompletedDate))
		if err != nil {
			return fmt.Errorf("failed to save workflow %s: %w", wf.WorkflowID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM approval_steps WHERE workflow_id = ?`, wf.WorkflowID); err != nil {
			return fmt.Errorf("failed to clear workflow steps: %w", err)
		}
		for i, step := range wf.Steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO approval_steps (
					workflow_id, position, step_id, role, approver_name, comments,
					status, required, due_date, acted_at
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				wf.WorkflowID, i, step.StepID, step.Role, step.ApproverName, step.Comments,
				string(step.Status), step.Required, formatTimePtr(step.DueDate), formatTimePtr(step.ActedAt))
			if err != nil {
				return fmt.Errorf("failed to save step %s: %w", step.StepID, err)
			}
		}
		return nil
	})
}

const workflowColumns = `workflow_id, voucher_number, approval_level, status, amount,
	current_step, escalation_reason, created_date, completed_date`

func scanWorkflow(row rowScanner) (*model.ApprovalWorkflow, error) {
	var (
		wf                    model.ApprovalWorkflow
		level, status, amount string
		reason                sql.NullString
		created               string
		completed             sql.NullString
	)
	if err := row.Scan(&wf.WorkflowID, &wf.VoucherNumber, &level, &status, &amount,
		&wf.CurrentStep, &reason, &created, &completed); err != nil {
		return nil, err
	}

	var err error
	wf.ApprovalLevel = model.ApprovalLevel(level)
	wf.Status = model.ApprovalStatus(status)
	wf.EscalationReason = reason.String
	if wf.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if wf.CreatedDate, err = parseTime(created); err != nil {
		return nil, err
	}
	if wf.CompletedDate, err = parseTimePtr(completed); err != nil {
		return nil, err
	}
	return &wf, nil
}

func (s *SQLiteStorage) loadSteps(ctx context.Context, wf *model.ApprovalWorkflow) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step_id, role, approver_name, comments, status, required, due_date, acted_at
		FROM approval_steps WHERE workflow_id = ? ORDER BY position`, wf.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to query workflow steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	wf.Steps = nil
	for rows.Next() {
		var (
			step              model.ApprovalStep
			approver, comment sql.NullString
			status            string
			due, acted        sql.NullString
		)
		if err := rows.Scan(&step.StepID, &step.Role, &approver, &comment, &status,
			&step.Required, &due, &acted); err != nil {
			return fmt.Errorf("failed to scan workflow step: %w", err)
		}
		step.ApproverName = approver.String
		step.Comments = comment.String
		step.Status = model.ApprovalStatus(status)
		if step.DueDate, err = parseTimePtr(due); err != nil {
			return err
		}
		if step.ActedAt, err = parseTimePtr(acted); err != nil {
			return err
		}
		wf.Steps = append(wf.Steps, step)
	}
	return rows.Err()
}

func (s *SQLiteStorage) getWorkflowWhere(ctx context.Context, clause, arg string) (*model.ApprovalWorkflow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workflowColumns+` FROM workflows WHERE `+clause+` ORDER BY created_date DESC LIMIT 1`, arg)
	wf, err := scanWorkflow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("workflow %s: %w", arg, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	if err := s.loadSteps(ctx, wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// GetWorkflow returns the workflow with the given ID.
func (s *SQLiteStorage) GetWorkflow(ctx context.Context, workflowID string) (*model.ApprovalWorkflow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(workflowID, "workflowID"); err != nil {
		return nil, err
	}
	return s.getWorkflowWhere(ctx, "workflow_id = ?", workflowID)
}

// GetWorkflowByVoucher returns the latest workflow of a voucher.
func (s *SQLiteStorage) GetWorkflowByVoucher(ctx context.Context, voucherNumber string) (*model.ApprovalWorkflow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(voucherNumber, "voucherNumber"); err != nil {
		return nil, err
	}
	return s.getWorkflowWhere(ctx, "voucher_number = ?", voucherNumber)
}

// ListWorkflows returns workflows with the given status, or all when status is empty.
func (s *SQLiteStorage) ListWorkflows(ctx context.Context, status model.ApprovalStatus) ([]model.ApprovalWorkflow, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + workflowColumns + ` FROM workflows`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_date, workflow_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	var out []model.ApprovalWorkflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, *wf)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		if err := s.loadSteps(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
