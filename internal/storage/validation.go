package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/treasury-vouchers/internal/model"
)

// Validation errors.
var (
	ErrNilContext      = errors.New("context cannot be nil")
	ErrEmptyString     = errors.New("string parameter cannot be empty")
	ErrNilParameter    = errors.New("parameter cannot be nil")
	ErrInvalidVoucher  = errors.New("invalid voucher")
	ErrInvalidWorkflow = errors.New("invalid workflow")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRuleSet(set *model.RuleSet) error {
	if set == nil {
		return fmt.Errorf("%w: rule set", ErrNilParameter)
	}
	return set.Validate()
}

func validateVoucher(v *model.VoucherRecord) error {
	if v == nil {
		return fmt.Errorf("%w: voucher", ErrNilParameter)
	}
	if strings.TrimSpace(v.VoucherNumber) == "" {
		return fmt.Errorf("%w: missing voucher number", ErrInvalidVoucher)
	}
	if strings.TrimSpace(v.RunID) == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidVoucher)
	}
	if v.CreatedDate.IsZero() {
		return fmt.Errorf("%w: missing creation date", ErrInvalidVoucher)
	}
	return nil
}

func validateWorkflow(wf *model.ApprovalWorkflow) error {
	if wf == nil {
		return fmt.Errorf("%w: workflow", ErrNilParameter)
	}
	if strings.TrimSpace(wf.WorkflowID) == "" {
		return fmt.Errorf("%w: missing workflow ID", ErrInvalidWorkflow)
	}
	if strings.TrimSpace(wf.VoucherNumber) == "" {
		return fmt.Errorf("%w: missing voucher number", ErrInvalidWorkflow)
	}
	if !wf.ApprovalLevel.Valid() {
		return fmt.Errorf("%w: unknown approval level %q", ErrInvalidWorkflow, wf.ApprovalLevel)
	}
	for i, step := range wf.Steps {
		if step.StepID == "" {
			return fmt.Errorf("%w: step %d has no ID", ErrInvalidWorkflow, i)
		}
	}
	return nil
}
