package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/treasury-vouchers/internal/common"
	"github.com/Veraticus/treasury-vouchers/internal/model"
	"github.com/Veraticus/treasury-vouchers/internal/service"
)

// SaveVoucher inserts or replaces a voucher register entry.
func (s *SQLiteStorage) SaveVoucher(ctx context.Context, v *model.VoucherRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVoucher(v); err != nil {
		return err
	}

	descriptions, err := marshalJSON(v.Descriptions)
	if err != nil {
		return err
	}
	classification, err := marshalJSON(v.Classification)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vouchers (
			voucher_number, run_id, created_date, amount,
			entity, cost_center, gl_account, budget_group,
			descriptions, category, classification, status, content, workflow_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(voucher_number) DO UPDATE SET
			status = excluded.status,
			classification = excluded.classification,
			category = excluded.category,
			content = excluded.content,
			workflow_id = excluded.workflow_id`,
		v.VoucherNumber, v.RunID, formatTime(v.CreatedDate), v.Amount.String(),
		v.Account.Entity, v.Account.CostCenter, v.Account.GLAccount, v.Account.BudgetGroup,
		descriptions, v.Classification.Category, classification, v.Status, v.Content,
		sql.NullString{String: v.WorkflowID, Valid: v.WorkflowID != ""})
	if err != nil {
		return fmt.Errorf("failed to save voucher %s: %w", v.VoucherNumber, err)
	}
	return nil
}

const voucherColumns = `voucher_number, run_id, created_date, amount,
	entity, cost_center, gl_account, budget_group,
	descriptions, classification, status, content, workflow_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVoucher(row rowScanner) (*model.VoucherRecord, error) {
	var (
		v                            model.VoucherRecord
		created, amount              string
		descriptions, classification string
		content, workflowID          sql.NullString
	)
	if err := row.Scan(&v.VoucherNumber, &v.RunID, &created, &amount,
		&v.Account.Entity, &v.Account.CostCenter, &v.Account.GLAccount, &v.Account.BudgetGroup,
		&descriptions, &classification, &v.Status, &content, &workflowID); err != nil {
		return nil, err
	}

	var err error
	if v.CreatedDate, err = parseTime(created); err != nil {
		return nil, err
	}
	if v.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("invalid stored amount %q: %w", amount, err)
	}
	if err := unmarshalJSON(descriptions, &v.Descriptions); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(classification, &v.Classification); err != nil {
		return nil, err
	}
	v.Content = content.String
	v.WorkflowID = workflowID.String
	return &v, nil
}

// GetVoucher returns the voucher with the given number.
func (s *SQLiteStorage) GetVoucher(ctx context.Context, voucherNumber string) (*model.VoucherRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(voucherNumber, "voucherNumber"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE voucher_number = ?`, voucherNumber)
	v, err := scanVoucher(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("voucher %s: %w", voucherNumber, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get voucher: %w", err)
	}
	return v, nil
}

// ListVouchers returns vouchers matching filter, newest first.
func (s *SQLiteStorage) ListVouchers(ctx context.Context, filter service.VoucherFilter) ([]model.VoucherRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Since != nil {
		where = append(where, "created_date >= ?")
		args = append(args, formatTime(*filter.Since))
	}

	query := `SELECT ` + voucherColumns + ` FROM vouchers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_date DESC, voucher_number DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vouchers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.VoucherRecord
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voucher: %w", err)
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
